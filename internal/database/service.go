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

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	db           *sqlx.DB
	maxRetries   int
	retryBackoff time.Duration
	now          func() time.Time
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = 1
	}

	// Every write transaction begins IMMEDIATE so a check-then-mutate sequence
	// holds the write lock from its first read.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=%d&_txlock=immediate&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{
		db:           db,
		maxRetries:   cfg.MaxTxRetries,
		retryBackoff: cfg.TxRetryBackoff,
		now:          func() time.Time { return time.Now().UTC() },
	}
	if err := service.initSchema(ctx, cfg.CreateDummyUsers); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() error {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
		return err
	}
	return nil
}

// RunInTx runs fn inside one write transaction. Conflicts and transient lock
// errors roll the attempt back and run fn again with exponential backoff.
func (s *Service) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	backoff := s.retryBackoff
	for attempt := 1; ; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) || attempt >= s.maxRetries {
			return err
		}

		zap.L().Warn("Retrying transaction after conflict",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (s *Service) runOnce(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit returns sql.ErrTxDone and is ignored.
		_ = sqlTx.Rollback()
	}()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	if errors.Is(err, store.ErrConcurrentModification) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// txStore implements store.Tx on top of one sqlx transaction
type txStore struct {
	tx *sqlx.Tx
}

var _ store.Tx = (*txStore)(nil)

// fixedCrypto renders an amount with the 8 fractional digits crypto columns store.
func fixedCrypto(d decimal.Decimal) string {
	return d.StringFixed(8)
}

// fixedUSD renders an amount with the 2 fractional digits USD columns store.
func fixedUSD(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func (s *Service) initSchema(ctx context.Context, createDummyUsers bool) error {
	schema := `
	-- Users carry both crypto balances; version guards every balance update
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		referral_code TEXT NOT NULL UNIQUE,
		referred_by_code TEXT NOT NULL DEFAULT '',
		bitcoin_balance TEXT NOT NULL DEFAULT '0.00000000',
		ethereum_balance TEXT NOT NULL DEFAULT '0.00000000',
		personal_mining_rate TEXT,
		mining_paused BOOLEAN NOT NULL DEFAULT 0,
		withdrawal_suspended BOOLEAN NOT NULL DEFAULT 0,
		is_flagged BOOLEAN NOT NULL DEFAULT 0,
		is_admin BOOLEAN NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_users_referred_by ON users(referred_by_code);

	-- Singleton admin settings row
	CREATE TABLE IF NOT EXISTS admin_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		bitcoin_rate_usd TEXT NOT NULL,
		ethereum_rate_usd TEXT NOT NULL,
		global_mining_rate TEXT NOT NULL,
		bitcoin_wallet_address TEXT NOT NULL DEFAULT '',
		ethereum_wallet_address TEXT NOT NULL DEFAULT '',
		referral_reward_enabled BOOLEAN NOT NULL DEFAULT 1,
		referrer_reward_percent TEXT NOT NULL DEFAULT '5.0',
		rates_updated_at TIMESTAMP,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS crypto_deposits (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		crypto_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		usd_amount TEXT NOT NULL,
		wallet_address TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		transaction_hash TEXT NOT NULL DEFAULT '',
		evidence_url TEXT NOT NULL DEFAULT '',
		reviewed_by TEXT NOT NULL DEFAULT '',
		reviewed_at TIMESTAMP,
		submitted_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deposits_user ON crypto_deposits(user_id);
	CREATE INDEX IF NOT EXISTS idx_deposits_status ON crypto_deposits(status);

	-- One session per confirmed deposit
	CREATE TABLE IF NOT EXISTS mining_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		deposit_id TEXT NOT NULL UNIQUE REFERENCES crypto_deposits(id),
		crypto_type TEXT NOT NULL,
		deposited_amount TEXT NOT NULL,
		mining_rate TEXT NOT NULL,
		mined_amount TEXT NOT NULL DEFAULT '0.00000000',
		status TEXT NOT NULL,
		last_mined TIMESTAMP NOT NULL,
		paused_at TIMESTAMP,
		closed_at TIMESTAMP,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user_status ON mining_sessions(user_id, status);

	-- The frozen principal and rate can never be rewritten
	CREATE TRIGGER IF NOT EXISTS trg_sessions_frozen_terms
	BEFORE UPDATE OF deposited_amount, mining_rate ON mining_sessions
	WHEN NEW.deposited_amount != OLD.deposited_amount OR NEW.mining_rate != OLD.mining_rate
	BEGIN
		SELECT RAISE(ABORT, 'mining session terms are immutable');
	END;

	CREATE TABLE IF NOT EXISTS withdrawals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		crypto_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		usd_amount TEXT NOT NULL,
		wallet_address TEXT NOT NULL,
		status TEXT NOT NULL,
		transaction_hash TEXT NOT NULL UNIQUE,
		reviewed_by TEXT NOT NULL DEFAULT '',
		processed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_withdrawals_user ON withdrawals(user_id);
	CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawals(status);

	CREATE TABLE IF NOT EXISTS crypto_transfers (
		id TEXT PRIMARY KEY,
		from_user_id TEXT NOT NULL REFERENCES users(id),
		to_user_id TEXT NOT NULL REFERENCES users(id),
		crypto_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		usd_amount TEXT NOT NULL,
		transaction_hash TEXT NOT NULL UNIQUE,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_from ON crypto_transfers(from_user_id);
	CREATE INDEX IF NOT EXISTS idx_transfers_to ON crypto_transfers(to_user_id);

	CREATE TABLE IF NOT EXISTS referral_rewards (
		id TEXT PRIMARY KEY,
		referrer_id TEXT NOT NULL REFERENCES users(id),
		referred_user_id TEXT NOT NULL REFERENCES users(id),
		deposit_id TEXT NOT NULL UNIQUE,
		crypto_type TEXT NOT NULL,
		deposit_amount TEXT NOT NULL,
		reward_percent TEXT NOT NULL,
		reward_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_referral_rewards_referrer ON referral_rewards(referrer_id);

	-- Append-only audit trail of balance changes
	CREATE TABLE IF NOT EXISTS transaction_history (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		transaction_type TEXT NOT NULL,
		crypto_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		reference_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_user_created ON transaction_history(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_history_reference ON transaction_history(reference_id);

	CREATE TRIGGER IF NOT EXISTS trg_history_append_only_update
	BEFORE UPDATE ON transaction_history
	BEGIN
		SELECT RAISE(ABORT, 'transaction history is append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS trg_history_append_only_delete
	BEFORE DELETE ON transaction_history
	BEGIN
		SELECT RAISE(ABORT, 'transaction history is append-only');
	END;

	CREATE TABLE IF NOT EXISTS admin_action_logs (
		id TEXT PRIMARY KEY,
		admin_id TEXT NOT NULL,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activity_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS email_notifications (
		id TEXT PRIMARY KEY,
		recipient TEXT NOT NULL,
		subject TEXT NOT NULL,
		template TEXT NOT NULL,
		variables TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		claimed_at TIMESTAMP,
		sent_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_email_status ON email_notifications(status, created_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	if !createDummyUsers {
		zap.L().Info("Skipping dummy user creation (CREATE_DUMMY_USERS=false)")
		return nil
	}

	users := []store.CreateUserParams{
		{Name: "Alice Johnson", Email: "alice.johnson@example.com", IsAdmin: true},
		{Name: "Bob Smith", Email: "bob.smith@example.com"},
		{Name: "Carol Williams", Email: "carol.williams@example.com"},
	}
	for _, params := range users {
		user, err := s.CreateUser(ctx, params)
		if err != nil {
			zap.L().Error("Failed to insert dummy user", zap.String("name", params.Name), zap.Error(err))
			continue
		}
		zap.L().Info("Dummy user created", zap.String("id", user.Id), zap.String("name", user.Name))
	}

	return nil
}
