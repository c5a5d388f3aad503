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

package mining

import (
	"context"
	"fmt"
	"time"

	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/lock"
	"mining-ledger-go/internal/metrics"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	pausedMessage = "Mining is paused for this account"
	syncedMessage = "Mining progress synced"
)

// Engine advances a user's sessions and posts the yield through the ledger
type Engine struct {
	store  store.LedgerStore
	locker lock.Locker
	now    func() time.Time
}

func NewEngine(ledger store.LedgerStore, locker lock.Locker) *Engine {
	return &Engine{
		store:  ledger,
		locker: locker,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the engine's time source
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// AccrueActiveSessions credits every active session of the user with the
// yield earned since its last_mined. It holds the user's lock for the whole
// read-compute-write sequence so concurrent syncs cannot pay the same interval.
func (e *Engine) AccrueActiveSessions(ctx context.Context, userId string) (*models.AccrualResult, error) {
	user, err := e.store.GetUserById(ctx, userId)
	if err != nil {
		return nil, apperror.From(err, "user not found")
	}

	if user.MiningPaused {
		zap.L().Info("Skipping accrual for paused user", zap.String("user_id", userId))
		return e.pausedResult(ctx, user)
	}

	release, err := e.locker.Lock(ctx, lock.UserKey(userId))
	if err != nil {
		return nil, apperror.Internal("failed to lock user for accrual", err)
	}
	defer release()

	start := time.Now()
	defer metrics.ObserveAccrual(start)

	var result *models.AccrualResult
	err = e.store.RunInTx(ctx, func(tx store.Tx) error {
		now := e.now().UTC()
		result = &models.AccrualResult{
			UserId:     userId,
			Message:    syncedMessage,
			TotalMined: decimal.Zero,
			SyncedAt:   now,
		}

		// the pause may have landed while this sync waited for the lock
		current, err := tx.GetUser(ctx, userId)
		if err != nil {
			return err
		}
		if current.MiningPaused {
			result.MiningPaused = true
			result.Message = pausedMessage
			return nil
		}

		settled, err := e.SettleUser(ctx, tx, userId, now)
		if err != nil {
			return err
		}
		for _, breakdown := range settled {
			result.TotalMined = result.TotalMined.Add(breakdown.Accrued)
		}
		result.Sessions = settled
		return nil
	})
	if err != nil {
		zap.L().Error("Accrual failed",
			zap.String("user_id", userId),
			zap.Error(err))
		return nil, apperror.From(err, "accrual failed")
	}

	ObserveAccruals(result.Sessions)

	zap.L().Info("Accrual completed",
		zap.String("user_id", userId),
		zap.Int("sessions", len(result.Sessions)),
		zap.String("total_mined", result.TotalMined.String()))

	return result, nil
}

// SettleUser credits every active session of the user up to now inside tx.
// The caller holds the user's lock.
func (e *Engine) SettleUser(ctx context.Context, tx store.Tx, userId string, now time.Time) ([]models.SessionAccrual, error) {
	sessions, err := tx.ListActiveSessions(ctx, userId)
	if err != nil {
		return nil, err
	}

	settled := make([]models.SessionAccrual, 0, len(sessions))
	for i := range sessions {
		breakdown, err := e.accrueSession(ctx, tx, &sessions[i], now)
		if err != nil {
			return nil, err
		}
		settled = append(settled, breakdown)
	}
	return settled, nil
}

// RestartUser moves last_mined of every active session to now, so the time
// the user spent paused earns nothing. The caller holds the user's lock.
func (e *Engine) RestartUser(ctx context.Context, tx store.Tx, userId string, now time.Time) error {
	sessions, err := tx.ListActiveSessions(ctx, userId)
	if err != nil {
		return err
	}

	for _, session := range sessions {
		if err := tx.RecordSessionAccrual(ctx, store.SessionAccrualParams{
			SessionId:       session.Id,
			MinedAmount:     session.MinedAmount,
			LastMined:       now,
			ExpectedVersion: session.Version,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ObserveAccruals records metrics for committed accruals
func ObserveAccruals(sessions []models.SessionAccrual) {
	for _, s := range sessions {
		if s.Accrued.IsPositive() {
			metrics.ObserveMined(string(s.CryptoType), s.Accrued)
			metrics.LedgerEntries.WithLabelValues(string(models.TransactionMining)).Inc()
		}
	}
}

func (e *Engine) accrueSession(ctx context.Context, tx store.Tx, session *models.MiningSession, now time.Time) (models.SessionAccrual, error) {
	breakdown := models.SessionAccrual{
		SessionId:       session.Id,
		CryptoType:      session.CryptoType,
		DepositedAmount: session.DepositedAmount,
		MiningRate:      session.MiningRate,
		Accrued:         decimal.Zero,
		MinedAmount:     session.MinedAmount,
	}

	credited, lastMined := Advance(session, now)
	if credited.IsZero() {
		return breakdown, nil
	}

	minedAmount := session.MinedAmount.Add(credited)
	if err := tx.RecordSessionAccrual(ctx, store.SessionAccrualParams{
		SessionId:       session.Id,
		MinedAmount:     minedAmount,
		LastMined:       lastMined,
		ExpectedVersion: session.Version,
	}); err != nil {
		return breakdown, err
	}
	session.Version++
	session.MinedAmount = minedAmount
	session.LastMined = lastMined

	entry, err := tx.ApplyLedgerEntry(ctx, store.LedgerEntryParams{
		UserId:          session.UserId,
		CryptoType:      session.CryptoType,
		Amount:          credited,
		TransactionType: models.TransactionMining,
		Description:     fmt.Sprintf("Mining yield at %s%% on %s %s", session.MiningRate, session.DepositedAmount, session.CryptoType.Symbol()),
		ReferenceId:     session.Id,
		At:              now,
	})
	if err != nil {
		return breakdown, err
	}

	breakdown.Accrued = credited
	breakdown.MinedAmount = minedAmount
	breakdown.Balance = entry.BalanceAfter
	return breakdown, nil
}

func (e *Engine) pausedResult(ctx context.Context, user *models.User) (*models.AccrualResult, error) {
	sessions, err := e.store.ListSessions(ctx, user.Id)
	if err != nil {
		return nil, apperror.From(err, "failed to list sessions")
	}

	result := &models.AccrualResult{
		UserId:       user.Id,
		MiningPaused: true,
		Message:      pausedMessage,
		TotalMined:   decimal.Zero,
		SyncedAt:     e.now().UTC(),
	}
	for _, s := range sessions {
		if !s.IsActive() {
			continue
		}
		result.Sessions = append(result.Sessions, models.SessionAccrual{
			SessionId:       s.Id,
			CryptoType:      s.CryptoType,
			DepositedAmount: s.DepositedAmount,
			MiningRate:      s.MiningRate,
			Accrued:         decimal.Zero,
			MinedAmount:     s.MinedAmount,
			Balance:         user.Balance(s.CryptoType),
		})
	}
	return result, nil
}

// PauseSession stops accrual on an active session. Yield earned up to the
// pause instant is credited first.
func (e *Engine) PauseSession(ctx context.Context, sessionId string) (*models.MiningSession, error) {
	return e.transition(ctx, sessionId, models.SessionPaused)
}

// ResumeSession reactivates a paused session. last_mined restarts at the
// resume instant so the paused interval never accrues.
func (e *Engine) ResumeSession(ctx context.Context, sessionId string) (*models.MiningSession, error) {
	return e.transition(ctx, sessionId, models.SessionActive)
}

// CloseSession ends a session for good
func (e *Engine) CloseSession(ctx context.Context, sessionId string) (*models.MiningSession, error) {
	return e.transition(ctx, sessionId, models.SessionClosed)
}

func (e *Engine) transition(ctx context.Context, sessionId string, to models.SessionStatus) (*models.MiningSession, error) {
	existing, err := e.store.GetSession(ctx, sessionId)
	if err != nil {
		return nil, apperror.From(err, "mining session not found")
	}

	release, err := e.locker.Lock(ctx, lock.UserKey(existing.UserId))
	if err != nil {
		return nil, apperror.Internal("failed to lock user for session change", err)
	}
	defer release()

	err = e.store.RunInTx(ctx, func(tx store.Tx) error {
		now := e.now().UTC()
		session, err := tx.GetSession(ctx, sessionId)
		if err != nil {
			return err
		}
		if !CanTransition(session.Status, to) {
			return apperror.Conflict("cannot move mining session %s from %s to %s", sessionId, session.Status, to)
		}

		owner, err := tx.GetUser(ctx, session.UserId)
		if err != nil {
			return err
		}
		// a paused user was settled at the pause instant
		if session.IsActive() && !owner.MiningPaused {
			if _, err := e.accrueSession(ctx, tx, session, now); err != nil {
				return err
			}
		}

		params := store.SessionTransitionParams{
			SessionId:       session.Id,
			From:            session.Status,
			To:              to,
			LastMined:       session.LastMined,
			PausedAt:        session.PausedAt,
			ClosedAt:        session.ClosedAt,
			ExpectedVersion: session.Version,
			At:              now,
		}
		switch to {
		case models.SessionPaused:
			params.PausedAt = &now
		case models.SessionActive:
			params.PausedAt = nil
			params.LastMined = now
		case models.SessionClosed:
			params.ClosedAt = &now
		}
		return tx.TransitionSession(ctx, params)
	})
	if err != nil {
		return nil, apperror.From(err, "failed to change mining session")
	}

	updated, err := e.store.GetSession(ctx, sessionId)
	if err != nil {
		return nil, apperror.From(err, "mining session not found")
	}
	return updated, nil
}
