package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

// Display strings use fixed-point decimals so dashboards render stable
// values regardless of float64 noise. Non-finite inputs format as zero;
// the assembler replaces and flags them before formatting, this is the
// backstop.

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func fixed(v float64, places int32) string {
	if !finite(v) {
		return decimal.Zero.StringFixed(places)
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// money renders a capital amount with two decimal places.
func money(v float64) string {
	return fixed(v, 2)
}

// percent renders a decimal fraction as a percentage with two decimal
// places (0.1234 -> "12.34").
func percent(v float64) string {
	return fixed(v*100, 2)
}

// ratio renders a unitless quantity with four decimal places.
func ratio(v float64) string {
	return fixed(v, 4)
}
