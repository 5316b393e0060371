// Package money parses and formats the price strings the catalog returns.
// Amounts are shopspring decimals rounded to minor units.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of minor-unit digits kept for every amount.
const Places = 2

var (
	ErrEmptyPrice    = errors.New("price is empty")
	ErrInvalidPrice  = errors.New("price is not a number")
	ErrNegativePrice = errors.New("price is negative")
)

var (
	leadingCode = regexp.MustCompile(`(?i)^(rs\.?|inr)\s*`)
	// currency glyph in front of the number: ₹, $, and the mis-decoded "â‚¹"
	// some catalog rows still carry.
	leadingSymbol  = regexp.MustCompile(`^[^\d.+-]+`)
	trailingSymbol = regexp.MustCompile(`(?i)\s*(/-|inr|rs\.?)$`)
	plainNumber    = regexp.MustCompile(`^[+-]?(\d+(\.\d+)?|\.\d+)$`)
	separators     = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "_", "")
	// Commas only group whole digits, western (1,234,567) or lakh (12,34,567)
	// style, and never follow the decimal point.
	grouped        = regexp.MustCompile(`^[+-]?\d{1,3}((,\d{2})*|(,\d{3})*),\d{3}(\.\d+)?$`)
)

// ParsePrice converts a catalog price string into a non-negative amount.
func ParsePrice(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, ErrEmptyPrice
	}

	s = leadingCode.ReplaceAllString(s, "")
	s = leadingSymbol.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = trailingSymbol.ReplaceAllString(s, "")
	s = separators.Replace(s)
	if strings.Contains(s, ",") {
		if !grouped.MatchString(s) {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
		}
		s = strings.ReplaceAll(s, ",", "")
	}

	if !plainNumber.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNegativePrice, raw)
	}
	return d.Round(Places), nil
}

// FromInt returns a whole amount, e.g. a fixed delivery charge.
func FromInt(units int64) decimal.Decimal {
	return decimal.NewFromInt(units)
}

// Format renders an amount with two decimals behind the currency symbol.
func Format(symbol string, amount decimal.Decimal) string {
	return symbol + amount.StringFixed(Places)
}

// FormatNull renders unknown for a null amount.
func FormatNull(symbol string, amount decimal.NullDecimal) string {
	if !amount.Valid {
		return "unknown"
	}
	return Format(symbol, amount.Decimal)
}

// Sum adds amounts without intermediate rounding.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
