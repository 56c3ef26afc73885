package calc

import "github.com/shopspring/decimal"

// Intermediate values carry full decimal precision; rounding happens once
// when results are shaped.
const (
	moneyPlaces  = 2
	weightPlaces = 6
	daysPerYear  = 365
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
	days365 = decimal.NewFromInt(daysPerYear)
)

// fraction turns a percent value into its multiplier (15 -> 0.15).
func fraction(pct decimal.Decimal) decimal.Decimal {
	return pct.Div(hundred)
}

// onePlus turns a percent value into a growth multiplier (15 -> 1.15).
func onePlus(pct decimal.Decimal) decimal.Decimal {
	return one.Add(fraction(pct))
}

// dailyRate converts an annual percent rate to a daily fraction.
func dailyRate(annualPct decimal.Decimal) decimal.Decimal {
	return fraction(annualPct).Div(days365)
}
