package calc

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RateSource records where a rate snapshot came from.
type RateSource string

const (
	// RateSourceExternal marks rates fetched from the upstream central-bank feed.
	RateSourceExternal RateSource = "external"
	// RateSourceManual marks administrator-entered overrides.
	RateSourceManual RateSource = "manual"
)

// RateSnapshot is one frozen exchange rate. Never mutated after a run uses it.
type RateSnapshot struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	Source    RateSource      `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// RateSet is the complete, pre-fetched rate material for one run: a
// currency -> USD snapshot per product currency, plus the USD -> quote
// currency snapshot that is recorded on the summary for audit.
type RateSet struct {
	ToUSD     map[string]RateSnapshot
	QuoteRate RateSnapshot
}

// USD converts an amount in the given currency to USD. A missing rate is a
// fatal reference error: the engine never substitutes a default.
func (rs RateSet) USD(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	if currency == "USD" {
		return amount, nil
	}
	snap, ok := rs.ToUSD[currency]
	if !ok || snap.Rate.IsZero() {
		return decimal.Zero, fmt.Errorf("calc: %w: no USD rate for %s", ErrReferenceData, currency)
	}
	return amount.Mul(snap.Rate), nil
}

// QuoteCurrencyRate returns the frozen USD -> quote currency multiplier.
// USD quotes carry an implicit parity rate.
func (rs RateSet) QuoteCurrencyRate(quoteCurrency string) (decimal.Decimal, error) {
	if quoteCurrency == "USD" {
		if rs.QuoteRate.Rate.IsZero() {
			return decimal.NewFromInt(1), nil
		}
		return rs.QuoteRate.Rate, nil
	}
	if rs.QuoteRate.Rate.IsZero() || rs.QuoteRate.To != quoteCurrency {
		return decimal.Zero, fmt.Errorf("calc: %w: no rate for quote currency %s", ErrReferenceData, quoteCurrency)
	}
	return rs.QuoteRate.Rate, nil
}
