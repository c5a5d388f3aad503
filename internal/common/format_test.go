package common

import (
	"testing"

	"mining-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

func TestFormatting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"crypto pads to eight places", FormatCrypto(decimal.RequireFromString("0.5"), models.CryptoBitcoin), "0.50000000 BTC"},
		{"usd rounds to cents", FormatUSD(decimal.RequireFromString("1234.567")), "$1234.57"},
		{"short id truncates", ShortId("0123456789abcdef"), "01234567..."},
		{"short id keeps short values", ShortId("abc"), "abc"},
		{"short id empty", ShortId(""), "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, tt.got)
			}
		})
	}
}
