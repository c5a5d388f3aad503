package rates

import (
	"fmt"

	"mining-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	CryptoPlaces = 8
	USDPlaces    = 2
)

// Used when no settings row exists or a rate was never set.
var (
	DefaultBitcoinUSD  = decimal.NewFromInt(50000)
	DefaultEthereumUSD = decimal.NewFromInt(3000)
)

// USDRate returns the price of one unit of cryptoType. settings may be nil.
func USDRate(settings *models.AdminSettings, cryptoType models.CryptoType) decimal.Decimal {
	if settings != nil {
		if rate := settings.USDRate(cryptoType); rate.IsPositive() {
			return rate
		}
	}
	if cryptoType == models.CryptoEthereum {
		return DefaultEthereumUSD
	}
	return DefaultBitcoinUSD
}

// CryptoToUSD values a crypto amount in USD, rounded to cents
func CryptoToUSD(settings *models.AdminSettings, cryptoType models.CryptoType, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(USDRate(settings, cryptoType)).Round(USDPlaces)
}

// USDToCrypto converts a USD amount to crypto, truncated to 8 places so the
// result is never worth more than the USD paid.
func USDToCrypto(settings *models.AdminSettings, cryptoType models.CryptoType, usdAmount decimal.Decimal) (decimal.Decimal, error) {
	rate := USDRate(settings, cryptoType)
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive %s rate %s", cryptoType, rate)
	}
	quotient, _ := usdAmount.QuoRem(rate, CryptoPlaces)
	return quotient, nil
}

// FitsCryptoPrecision reports whether amount needs no more than 8 places.
// Trailing zeros past the eighth place do not count.
func FitsCryptoPrecision(amount decimal.Decimal) bool {
	return amount.Truncate(CryptoPlaces).Equal(amount)
}

// Balances returns both balances of a user with their current USD value
func Balances(settings *models.AdminSettings, user *models.User) []models.UserBalance {
	balances := make([]models.UserBalance, 0, len(models.CryptoTypes))
	for _, c := range models.CryptoTypes {
		balance := user.Balance(c)
		balances = append(balances, models.UserBalance{
			CryptoType: c,
			Balance:    balance,
			USDValue:   CryptoToUSD(settings, c, balance),
		})
	}
	return balances
}
