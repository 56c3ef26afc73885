package refdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// CountryRate is one supplier-country row of the reference table.
// InternalMarkupPct is keyed by selling entity code.
type CountryRate struct {
	Country           string                     `json:"country"`
	VATRatePct        decimal.Decimal            `json:"vat_rate_pct"`
	InternalMarkupPct map[string]decimal.Decimal `json:"internal_markup_pct"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}

// OrgSettings are the administrator-owned organisation rates. They are
// read-only during calculation and mutated only through the admin surface.
type OrgSettings struct {
	OrgID                  int64                      `json:"org_id"`
	ForexRiskPct           decimal.Decimal            `json:"forex_risk_pct"`
	FinancingCommissionPct decimal.Decimal            `json:"financing_commission_pct"`
	AnnualLoanInterestPct  decimal.Decimal            `json:"annual_loan_interest_pct"`
	CustomsPaymentTermDays int                        `json:"customs_payment_term_days"`
	TaxRatePct             map[string]decimal.Decimal `json:"tax_rate_pct"`
	VATCutoverAt           time.Time                  `json:"vat_cutover_at"`
	VATBeforePct           decimal.Decimal            `json:"vat_before_pct"`
	VATAfterPct            decimal.Decimal            `json:"vat_after_pct"`
	UpdatedAt              time.Time                  `json:"updated_at"`
}
