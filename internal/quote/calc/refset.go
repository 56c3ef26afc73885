package calc

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CountryRates holds supplier-country reference rates. InternalMarkupPct is
// keyed by selling entity code.
type CountryRates struct {
	VATRatePct        decimal.Decimal
	InternalMarkupPct map[string]decimal.Decimal
}

// VATCutover selects the output VAT rate by delivery date. Deliveries
// strictly before At use BeforePct, on or after use AfterPct.
type VATCutover struct {
	At        time.Time
	BeforePct decimal.Decimal
	AfterPct  decimal.Decimal
}

// RateFor returns the output VAT rate in force on the given delivery date.
func (c VATCutover) RateFor(delivery time.Time) decimal.Decimal {
	if delivery.Before(c.At) {
		return c.BeforePct
	}
	return c.AfterPct
}

// OrgSettings are administrator-owned organisation rates. The pointer
// fields double as the bottom merge layer for variable resolution.
type OrgSettings struct {
	ForexRiskPct           *decimal.Decimal
	FinancingCommissionPct decimal.Decimal
	AnnualLoanInterestPct  *decimal.Decimal
	CustomsPaymentTermDays *int
	TaxRatePct             map[string]decimal.Decimal
	VATCutover             VATCutover
}

// ReferenceSet bundles every read-only reference table a calculation run
// consumes. It is passed in by value and never mutated by the engine.
type ReferenceSet struct {
	Countries map[string]CountryRates
	Org       OrgSettings
}

// Validate checks the reference set is complete enough to calculate with.
// No financial rate is ever silently defaulted.
func (r ReferenceSet) Validate() error {
	if len(r.Countries) == 0 {
		return fmt.Errorf("calc: %w: supplier country table is empty", ErrReferenceData)
	}
	if r.Org.VATCutover.At.IsZero() {
		return fmt.Errorf("calc: %w: vat cutover date not configured", ErrReferenceData)
	}
	if len(r.Org.TaxRatePct) == 0 {
		return fmt.Errorf("calc: %w: jurisdiction tax rates not configured", ErrReferenceData)
	}
	return nil
}

// Country looks up supplier-country rates, failing validation-style on
// unknown codes.
func (r ReferenceSet) Country(code string) (CountryRates, error) {
	rates, ok := r.Countries[code]
	if !ok {
		return CountryRates{}, fmt.Errorf("calc: %w: unknown supplier country %q", ErrValidation, code)
	}
	return rates, nil
}
