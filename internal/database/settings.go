package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetSettings returns the admin settings row, or nil when none has been saved yet.
func (s *Service) GetSettings(ctx context.Context) (*models.AdminSettings, error) {
	return getSettings(ctx, s.db)
}

func (t *txStore) GetSettings(ctx context.Context) (*models.AdminSettings, error) {
	return getSettings(ctx, t.tx)
}

func getSettings(ctx context.Context, q sqlx.QueryerContext) (*models.AdminSettings, error) {
	var settings models.AdminSettings
	if err := sqlx.GetContext(ctx, q, &settings, queryGetSettings); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to query admin settings: %w", err)
	}
	return &settings, nil
}

func (s *Service) SaveSettings(ctx context.Context, settings models.AdminSettings) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx, queryUpsertSettings,
		fixedUSD(settings.BitcoinRateUSD), fixedUSD(settings.EthereumRateUSD), settings.GlobalMiningRate.String(),
		settings.BitcoinWalletAddress, settings.EthereumWalletAddress,
		settings.ReferralRewardEnabled, settings.ReferrerRewardPercent, settings.RatesUpdatedAt, now)
	if err != nil {
		return fmt.Errorf("unable to save admin settings: %w", err)
	}

	zap.L().Info("Admin settings saved",
		zap.String("bitcoin_rate_usd", settings.BitcoinRateUSD.String()),
		zap.String("ethereum_rate_usd", settings.EthereumRateUSD.String()),
		zap.String("global_mining_rate", settings.GlobalMiningRate.String()),
		zap.Bool("referral_reward_enabled", settings.ReferralRewardEnabled))
	return nil
}

// UpdateUSDRates overwrites only the conversion rates. It returns ErrNotFound
// when no settings row exists.
func (s *Service) UpdateUSDRates(ctx context.Context, bitcoinUSD, ethereumUSD decimal.Decimal, at time.Time) error {
	result, err := s.db.ExecContext(ctx, queryUpdateUSDRates, fixedUSD(bitcoinUSD), fixedUSD(ethereumUSD), at.UTC(), s.now())
	if err != nil {
		return fmt.Errorf("unable to update USD rates: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: admin settings", store.ErrNotFound)
	}
	return nil
}
