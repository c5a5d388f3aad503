package rates

import (
	"testing"

	"mining-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

func TestConversions(t *testing.T) {
	settings := &models.AdminSettings{
		BitcoinRateUSD:  decimal.RequireFromString("60000"),
		EthereumRateUSD: decimal.RequireFromString("3333.33"),
	}

	tests := []struct {
		name     string
		settings *models.AdminSettings
		crypto   models.CryptoType
		usd      string
		crypto8  string
	}{
		{"btc from settings", settings, models.CryptoBitcoin, "1000", "0.01666666"},
		{"eth from settings", settings, models.CryptoEthereum, "100", "0.03000003"},
		{"btc default", nil, models.CryptoBitcoin, "25000", "0.5"},
		{"eth default", nil, models.CryptoEthereum, "1500", "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := USDToCrypto(tt.settings, tt.crypto, decimal.RequireFromString(tt.usd))
			if err != nil {
				t.Fatalf("USDToCrypto failed: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.crypto8)) {
				t.Errorf("Expected %s, got %s", tt.crypto8, got)
			}
		})
	}

	usd := CryptoToUSD(settings, models.CryptoBitcoin, decimal.RequireFromString("0.12345678"))
	if !usd.Equal(decimal.RequireFromString("7407.41")) {
		t.Errorf("Expected 7407.41, got %s", usd)
	}
}

func TestUSDRate_ZeroFallsBackToDefault(t *testing.T) {
	settings := &models.AdminSettings{BitcoinRateUSD: decimal.Zero}
	if !USDRate(settings, models.CryptoBitcoin).Equal(DefaultBitcoinUSD) {
		t.Errorf("Expected default bitcoin rate, got %s", USDRate(settings, models.CryptoBitcoin))
	}
}

func TestFitsCryptoPrecision(t *testing.T) {
	tests := []struct {
		amount string
		want   bool
	}{
		{"1", true},
		{"0.12345678", true},
		{"1.000000000", true},
		{"0.123456780000", true},
		{"0.123456789", false},
		{"0.000000001", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			if got := FitsCryptoPrecision(decimal.RequireFromString(tt.amount)); got != tt.want {
				t.Errorf("FitsCryptoPrecision(%s) = %v, want %v", tt.amount, got, tt.want)
			}
		})
	}
}
