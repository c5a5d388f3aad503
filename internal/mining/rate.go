package mining

import (
	"mining-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// FallbackMiningRate applies when no settings row exists at all
var FallbackMiningRate = decimal.NewFromInt(70)

// ResolveMiningRate returns the percentage a new session is frozen at.
// Personal override wins, then the global admin rate, then the fallback.
func ResolveMiningRate(user *models.User, settings *models.AdminSettings) decimal.Decimal {
	if user != nil && user.PersonalMiningRate.Valid {
		return user.PersonalMiningRate.Decimal
	}
	if settings != nil {
		return settings.GlobalMiningRate
	}
	return FallbackMiningRate
}

// ValidRate reports whether rate is a usable percentage
func ValidRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(decimal.NewFromInt(100))
}
