package importer

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var nonNumeric = regexp.MustCompile(`[^0-9,.\-]`)

// SanitizeNumber strips everything but digits, separators and minus, turns
// commas into dots and keeps only the last dot as the decimal point, so
// "1 234,50 грн" and "1.234,50" both become "1234.50".
func SanitizeNumber(s string) string {
	s = nonNumeric.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", ".")
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = strings.ReplaceAll(s[:i], ".", "") + s[i:]
	}
	if neg := strings.HasPrefix(s, "-"); strings.Contains(s, "-") {
		s = strings.ReplaceAll(s, "-", "")
		if neg {
			s = "-" + s
		}
	}
	return s
}

// ParseDecimal returns zero for empty or unparsable input.
func ParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(SanitizeNumber(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseInt rounds to the nearest integer and saturates at the int32 range
// used by the database columns.
func ParseInt(s string) int {
	d := ParseDecimal(s).Round(0)
	switch {
	case d.GreaterThan(decimal.NewFromInt(math.MaxInt32)):
		return math.MaxInt32
	case d.LessThan(decimal.NewFromInt(math.MinInt32)):
		return math.MinInt32
	}
	return int(d.IntPart())
}

var maxPrice = decimal.RequireFromString("9999999999.99")

func clampPrice(d decimal.Decimal) decimal.Decimal {
	switch {
	case d.IsNegative():
		return decimal.Zero
	case d.GreaterThan(maxPrice):
		return maxPrice
	}
	return d
}
