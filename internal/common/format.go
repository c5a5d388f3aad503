package common

import (
	"fmt"
	"strings"

	"mining-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultWidth is the separator width used by the CLI reports
const DefaultWidth = 80

// FormatCrypto renders an amount at ledger precision with its unit
func FormatCrypto(amount decimal.Decimal, cryptoType models.CryptoType) string {
	return amount.StringFixed(8) + " " + cryptoType.Symbol()
}

// FormatUSD renders a dollar value with two decimals
func FormatUSD(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

// ShortId truncates long identifiers for tabular output
func ShortId(id string) string {
	if id == "" {
		return "none"
	}
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}
