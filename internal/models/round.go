package models

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds v to the given number of decimal places, half away from zero,
// working on the shortest decimal representation of v. Non-finite values are
// returned unchanged so validation can report them.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Round2 is Round(v, 2), the precision used for currency and percentages.
func Round2(v float64) float64 {
	return Round(v, 2)
}

// Round4 is Round(v, 4), the precision used for prices and share counts.
func Round4(v float64) float64 {
	return Round(v, 4)
}
