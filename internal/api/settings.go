package api

import (
	"context"
	"strings"

	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/mining"
	"mining-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

func (s *LedgerService) GetSettings(ctx context.Context) (*models.AdminSettings, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to load settings", err)
	}
	if settings == nil {
		return nil, apperror.NotFound("admin settings have not been configured")
	}
	return settings, nil
}

// UpdateSettings replaces the admin settings. Changes apply to conversions
// and sessions created afterwards only.
func (s *LedgerService) UpdateSettings(ctx context.Context, adminId string, settings models.AdminSettings) (*models.AdminSettings, error) {
	if err := ValidateSettings(&settings); err != nil {
		return nil, err
	}

	if current, err := s.store.GetSettings(ctx); err == nil && current != nil {
		settings.RatesUpdatedAt = current.RatesUpdatedAt
	}

	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return nil, apperror.Internal("failed to save settings", err)
	}

	s.audit.RecordAdminAction(ctx, adminId, "update_settings", "admin_settings", "", "")
	return s.GetSettings(ctx)
}

func (s *LedgerService) ListAdminActions(ctx context.Context, limit, offset int) ([]models.AdminAction, error) {
	actions, err := s.store.ListAdminActions(ctx, limit, offset)
	if err != nil {
		return nil, apperror.Internal("failed to list admin actions", err)
	}
	return actions, nil
}

// ValidateSettings checks admin settings before they are stored
func ValidateSettings(settings *models.AdminSettings) error {
	if !settings.BitcoinRateUSD.IsPositive() || !settings.EthereumRateUSD.IsPositive() {
		return apperror.Validation("usd rates must be positive")
	}
	if !mining.ValidRate(settings.GlobalMiningRate) {
		return apperror.Validation("global mining rate %s must be between 0 and 100", settings.GlobalMiningRate)
	}

	settings.ReferrerRewardPercent = strings.TrimSpace(settings.ReferrerRewardPercent)
	if settings.ReferrerRewardPercent == "" {
		settings.ReferrerRewardPercent = "0"
	}
	percent, err := decimal.NewFromString(settings.ReferrerRewardPercent)
	if err != nil {
		return apperror.Validation("referrer reward percent %q is not a number", settings.ReferrerRewardPercent)
	}
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return apperror.Validation("referrer reward percent %s must be between 0 and 100", percent)
	}

	settings.BitcoinWalletAddress = strings.TrimSpace(settings.BitcoinWalletAddress)
	settings.EthereumWalletAddress = strings.TrimSpace(settings.EthereumWalletAddress)
	return nil
}
