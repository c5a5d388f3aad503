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

package notify

import (
	"context"
	"sync"
	"time"

	"mining-ledger-go/internal/metrics"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"go.uber.org/zap"
)

// DispatcherConfig contains configuration for Dispatcher
type DispatcherConfig struct {
	Store           store.LedgerStore
	Sender          Sender
	PollingInterval time.Duration
	BatchSize       int
	MaxAttempts     int
	SendTimeout     time.Duration
}

// Dispatcher polls the email queue and hands pending messages to a Sender
type Dispatcher struct {
	store  store.LedgerStore
	sender Sender

	pollingInterval time.Duration
	batchSize       int
	maxAttempts     int
	sendTimeout     time.Duration
	now             func() time.Time

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		store:           cfg.Store,
		sender:          cfg.Sender,
		pollingInterval: cfg.PollingInterval,
		batchSize:       cfg.BatchSize,
		maxAttempts:     cfg.MaxAttempts,
		sendTimeout:     cfg.SendTimeout,
		now:             func() time.Time { return time.Now().UTC() },
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
	if d.pollingInterval <= 0 {
		d.pollingInterval = 30 * time.Second
	}
	if d.batchSize <= 0 {
		d.batchSize = 10
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = 3
	}
	if d.sendTimeout <= 0 {
		d.sendTimeout = 10 * time.Second
	}
	return d
}

// Start begins polling in the background
func (d *Dispatcher) Start(ctx context.Context) {
	zap.L().Info("Starting email dispatcher",
		zap.Duration("polling_interval", d.pollingInterval),
		zap.Int("batch_size", d.batchSize),
		zap.Int("max_attempts", d.maxAttempts))
	go d.pollLoop(ctx)
}

// Stop gracefully stops the dispatcher and waits for the current batch
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		zap.L().Info("Stopping email dispatcher")
		close(d.stopChan)
		<-d.doneChan
		zap.L().Info("Email dispatcher stopped")
	})
}

func (d *Dispatcher) pollLoop(ctx context.Context) {
	defer close(d.doneChan)

	ticker := time.NewTicker(d.pollingInterval)
	defer ticker.Stop()

	d.DispatchPending(ctx)

	for {
		select {
		case <-ticker.C:
			d.DispatchPending(ctx)
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// DispatchPending sends one batch of queued emails and returns how many were delivered
func (d *Dispatcher) DispatchPending(ctx context.Context) int {
	// a claim older than this belongs to a dispatcher that never finished
	cutoff := d.now().Add(-2 * d.sendTimeout)
	if released, err := d.store.ReleaseStaleEmails(ctx, cutoff); err != nil {
		zap.L().Error("Failed to release stale emails", zap.Error(err))
	} else if released > 0 {
		zap.L().Warn("Released stale email claims", zap.Int64("count", released))
	}

	pending, err := d.store.ListPendingEmails(ctx, d.batchSize, d.maxAttempts)
	if err != nil {
		zap.L().Error("Failed to list pending emails", zap.Error(err))
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	sent := 0

	for _, email := range pending {
		wg.Add(1)

		go func(e models.EmailNotification) {
			defer wg.Done()
			if d.deliver(ctx, e) {
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}(email)
	}

	wg.Wait()

	zap.L().Info("Email batch dispatched",
		zap.Int("pending", len(pending)),
		zap.Int("sent", sent))
	return sent
}

func (d *Dispatcher) deliver(ctx context.Context, email models.EmailNotification) bool {
	claimed, err := d.store.ClaimEmail(ctx, email.Id, d.now())
	if err != nil {
		zap.L().Error("Failed to claim email",
			zap.String("email_id", email.Id),
			zap.Error(err))
		return false
	}
	if !claimed {
		zap.L().Debug("Email already claimed by another dispatcher", zap.String("email_id", email.Id))
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	if err := d.sender.SendEmail(sendCtx, email); err != nil {
		zap.L().Warn("Failed to send email",
			zap.String("email_id", email.Id),
			zap.String("recipient", email.Recipient),
			zap.Int("attempt", email.Attempts+1),
			zap.Error(err))
		metrics.EmailsProcessed.WithLabelValues("failed").Inc()
		if markErr := d.store.MarkEmailFailed(ctx, email.Id, err.Error(), d.maxAttempts); markErr != nil {
			zap.L().Error("Failed to record email failure",
				zap.String("email_id", email.Id),
				zap.Error(markErr))
		}
		return false
	}

	metrics.EmailsProcessed.WithLabelValues("sent").Inc()
	if err := d.store.MarkEmailSent(ctx, email.Id, d.now()); err != nil {
		zap.L().Error("Failed to mark email sent",
			zap.String("email_id", email.Id),
			zap.Error(err))
	}
	return true
}
