/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"fmt"
	"time"

	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/lock"
	"mining-ledger-go/internal/metrics"
	"mining-ledger-go/internal/mining"
	"mining-ledger-go/internal/notify"
	"mining-ledger-go/internal/referral"
	"mining-ledger-go/internal/store"
)

// Dependencies wires the collaborators a LedgerService drives
type Dependencies struct {
	Store    store.LedgerStore
	Locker   lock.Locker
	Mining   *mining.Engine
	Referral *referral.Engine
	Notifier notify.Notifier
	Audit    *notify.AuditLogger
}

// LedgerService runs the deposit, withdrawal, transfer and admin flows on top
// of the ledger primitives. Every balance change happens inside one store
// transaction under the owning user's lock; side effects run after commit.
type LedgerService struct {
	store    store.LedgerStore
	locker   lock.Locker
	mining   *mining.Engine
	referral *referral.Engine
	notifier notify.Notifier
	audit    *notify.AuditLogger
	now      func() time.Time
}

func NewLedgerService(deps Dependencies) *LedgerService {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	audit := deps.Audit
	if audit == nil {
		audit = notify.NewAuditLogger(deps.Store)
	}
	return &LedgerService{
		store:    deps.Store,
		locker:   deps.Locker,
		mining:   deps.Mining,
		referral: deps.Referral,
		notifier: notifier,
		audit:    audit,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the service's time source
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	_, err := s.store.GetUsers(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// lockUsers takes the per-user locks for every given user in a stable order
func (s *LedgerService) lockUsers(ctx context.Context, userIds ...string) (func(), error) {
	keys := make([]string, len(userIds))
	for i, id := range userIds {
		keys[i] = lock.UserKey(id)
	}
	return lock.LockAll(ctx, s.locker, keys...)
}

// fail maps err onto a caller-facing error and counts it per operation
func fail(operation string, err error, message string) error {
	appErr := apperror.From(err, message)
	metrics.OperationErrors.WithLabelValues(operation, string(apperror.KindOf(appErr))).Inc()
	return appErr
}
