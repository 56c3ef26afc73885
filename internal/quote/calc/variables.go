package calc

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteVariables is the quote-scoped input set for a calculation run.
// Numeric fields are pointers: nil means the value was never entered and
// must either come from organisation defaults or fail resolution.
type QuoteVariables struct {
	Currency      string `json:"currency"`
	SellingEntity string `json:"selling_entity"`
	DeliveryTerms string `json:"delivery_terms"`

	MarkupPct           *decimal.Decimal `json:"markup_pct,omitempty"`
	SupplierDiscountPct *decimal.Decimal `json:"supplier_discount_pct,omitempty"`
	ImportTariffPct     *decimal.Decimal `json:"import_tariff_pct,omitempty"`
	ExcisePct           *decimal.Decimal `json:"excise_pct,omitempty"`
	ImportVATPct        *decimal.Decimal `json:"import_vat_pct,omitempty"`

	ClientAdvancePct   *decimal.Decimal `json:"client_advance_pct,omitempty"`
	SupplierAdvancePct *decimal.Decimal `json:"supplier_advance_pct,omitempty"`

	SupplierPaymentTermDays *int `json:"supplier_payment_term_days,omitempty"`
	CustomsPaymentDueDays   *int `json:"customs_payment_due_days,omitempty"`

	CreditTermDays     *int             `json:"credit_term_days,omitempty"`
	CreditAnnualPct    *decimal.Decimal `json:"credit_annual_pct,omitempty"`
	FinancingAnnualPct *decimal.Decimal `json:"financing_annual_pct,omitempty"`

	FirstLegLogisticsCost *decimal.Decimal `json:"first_leg_logistics_cost,omitempty"`
	LastLegLogisticsCost  *decimal.Decimal `json:"last_leg_logistics_cost,omitempty"`

	// Shared handling costs. Quote-level like the logistics legs, but
	// optional: absent means the deal simply has none.
	CustomsBrokerageCost *decimal.Decimal `json:"customs_brokerage_cost,omitempty"`
	CertificationCost    *decimal.Decimal `json:"certification_cost,omitempty"`
	ExportPackagingCost  *decimal.Decimal `json:"export_packaging_cost,omitempty"`
	StorageCostPerDay    *decimal.Decimal `json:"storage_cost_per_day,omitempty"`
	StorageDays          *int             `json:"storage_days,omitempty"`

	InsurancePct       *decimal.Decimal `json:"insurance_pct,omitempty"`
	BankCommissionPct  *decimal.Decimal `json:"bank_commission_pct,omitempty"`
	WarrantyReservePct *decimal.Decimal `json:"warranty_reserve_pct,omitempty"`

	DMFeePct      *decimal.Decimal `json:"dm_fee_pct,omitempty"`
	ForexRiskPct  *decimal.Decimal `json:"forex_risk_pct,omitempty"`
	FinAgentPct   *decimal.Decimal `json:"fin_agent_pct,omitempty"`
	TransitPct    *decimal.Decimal `json:"transit_pct,omitempty"`
	TransitDeal   bool             `json:"transit_deal"`
	RestoreVAT    bool             `json:"restore_vat"`
}

// Overrides carries per-product values that win over the quote-level
// variables. A nil field inherits from the quote.
type Overrides struct {
	SellingEntity *string `json:"selling_entity,omitempty"`

	MarkupPct           *decimal.Decimal `json:"markup_pct,omitempty"`
	SupplierDiscountPct *decimal.Decimal `json:"supplier_discount_pct,omitempty"`
	ImportTariffPct     *decimal.Decimal `json:"import_tariff_pct,omitempty"`
	ExcisePct           *decimal.Decimal `json:"excise_pct,omitempty"`
	ImportVATPct        *decimal.Decimal `json:"import_vat_pct,omitempty"`

	ClientAdvancePct   *decimal.Decimal `json:"client_advance_pct,omitempty"`
	SupplierAdvancePct *decimal.Decimal `json:"supplier_advance_pct,omitempty"`

	SupplierPaymentTermDays *int `json:"supplier_payment_term_days,omitempty"`
	CustomsPaymentDueDays   *int `json:"customs_payment_due_days,omitempty"`

	CreditTermDays     *int             `json:"credit_term_days,omitempty"`
	CreditAnnualPct    *decimal.Decimal `json:"credit_annual_pct,omitempty"`
	FinancingAnnualPct *decimal.Decimal `json:"financing_annual_pct,omitempty"`

	InsurancePct       *decimal.Decimal `json:"insurance_pct,omitempty"`
	BankCommissionPct  *decimal.Decimal `json:"bank_commission_pct,omitempty"`
	WarrantyReservePct *decimal.Decimal `json:"warranty_reserve_pct,omitempty"`

	DMFeePct     *decimal.Decimal `json:"dm_fee_pct,omitempty"`
	ForexRiskPct *decimal.Decimal `json:"forex_risk_pct,omitempty"`
	FinAgentPct  *decimal.Decimal `json:"fin_agent_pct,omitempty"`
	TransitPct   *decimal.Decimal `json:"transit_pct,omitempty"`
	TransitDeal  *bool            `json:"transit_deal,omitempty"`
	RestoreVAT   *bool            `json:"restore_vat,omitempty"`
}

// Product is one quote line item. BasePrice includes supplier VAT and is
// denominated in the product's own currency.
type Product struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	BasePrice       decimal.Decimal `json:"base_price"`
	Currency        string          `json:"currency"`
	Quantity        decimal.Decimal `json:"quantity"`
	WeightKg        decimal.Decimal `json:"weight_kg"`
	CustomsCode     string          `json:"customs_code"`
	SupplierCountry string          `json:"supplier_country"`
	PickupCountry   string          `json:"pickup_country"`
	DeliveryDate    time.Time       `json:"delivery_date"`
	Overrides       Overrides       `json:"overrides"`
}

// Effective is the fully materialised variable set for one product after
// the three merge layers (organisation -> quote -> product) are settled.
// The pipeline never consults an override map again.
type Effective struct {
	Currency      string
	SellingEntity string
	DeliveryTerms string

	MarkupPct           decimal.Decimal
	SupplierDiscountPct decimal.Decimal
	ImportTariffPct     decimal.Decimal
	ExcisePct           decimal.Decimal
	ImportVATPct        decimal.Decimal

	ClientAdvancePct   decimal.Decimal
	SupplierAdvancePct decimal.Decimal

	SupplierPaymentTermDays int
	CustomsPaymentDueDays   int

	CreditTermDays     int
	CreditAnnualPct    decimal.Decimal
	FinancingAnnualPct decimal.Decimal

	InsurancePct       decimal.Decimal
	BankCommissionPct  decimal.Decimal
	WarrantyReservePct decimal.Decimal

	DMFeePct     decimal.Decimal
	ForexRiskPct decimal.Decimal
	FinAgentPct  decimal.Decimal
	TransitPct   decimal.Decimal
	TransitDeal  bool
	RestoreVAT   bool
}
