package calc

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Amounts carries every monetary quantity computed for one product. The
// same shape is used for the USD figures and the quote-currency copy.
type Amounts struct {
	PurchaseUnit  decimal.Decimal `json:"purchase_unit"`
	PurchaseTotal decimal.Decimal `json:"purchase_total"`

	FirstLegAllocated  decimal.Decimal `json:"first_leg_allocated"`
	LastLegAllocated   decimal.Decimal `json:"last_leg_allocated"`
	LogisticsAllocated decimal.Decimal `json:"logistics_allocated"`
	HandlingAllocated  decimal.Decimal `json:"handling_allocated"`

	InternalPrice            decimal.Decimal `json:"internal_price"`
	InternalPriceVATRestored decimal.Decimal `json:"internal_price_vat_restored"`
	CustomsDuty              decimal.Decimal `json:"customs_duty"`
	Excise                   decimal.Decimal `json:"excise"`
	ImportVAT                decimal.Decimal `json:"import_vat"`
	Insurance                decimal.Decimal `json:"insurance"`

	SupplierAdvance decimal.Decimal `json:"supplier_advance"`
	SupplierBalance decimal.Decimal `json:"supplier_balance"`

	RevenueEstimate decimal.Decimal `json:"revenue_estimate"`

	FinancingAllocated      decimal.Decimal `json:"financing_allocated"`
	CreditInterestAllocated decimal.Decimal `json:"credit_interest_allocated"`

	COGSUnit  decimal.Decimal `json:"cogs_unit"`
	COGSTotal decimal.Decimal `json:"cogs_total"`

	SalePriceUnit  decimal.Decimal `json:"sale_price_unit"`
	SalePriceTotal decimal.Decimal `json:"sale_price_total"`
	Margin         decimal.Decimal `json:"margin"`

	OutputVAT     decimal.Decimal `json:"output_vat"`
	NetVATPayable decimal.Decimal `json:"net_vat_payable"`
	GrossTotal    decimal.Decimal `json:"gross_total"`

	TransitCommission decimal.Decimal `json:"transit_commission"`
}

// apply maps fn over every field. Keeping the field list in one place keeps
// currency conversion and rounding honest when fields are added.
func (a Amounts) apply(fn func(decimal.Decimal) decimal.Decimal) Amounts {
	a.PurchaseUnit = fn(a.PurchaseUnit)
	a.PurchaseTotal = fn(a.PurchaseTotal)
	a.FirstLegAllocated = fn(a.FirstLegAllocated)
	a.LastLegAllocated = fn(a.LastLegAllocated)
	a.LogisticsAllocated = fn(a.LogisticsAllocated)
	a.HandlingAllocated = fn(a.HandlingAllocated)
	a.InternalPrice = fn(a.InternalPrice)
	a.InternalPriceVATRestored = fn(a.InternalPriceVATRestored)
	a.CustomsDuty = fn(a.CustomsDuty)
	a.Excise = fn(a.Excise)
	a.ImportVAT = fn(a.ImportVAT)
	a.Insurance = fn(a.Insurance)
	a.SupplierAdvance = fn(a.SupplierAdvance)
	a.SupplierBalance = fn(a.SupplierBalance)
	a.RevenueEstimate = fn(a.RevenueEstimate)
	a.FinancingAllocated = fn(a.FinancingAllocated)
	a.CreditInterestAllocated = fn(a.CreditInterestAllocated)
	a.COGSUnit = fn(a.COGSUnit)
	a.COGSTotal = fn(a.COGSTotal)
	a.SalePriceUnit = fn(a.SalePriceUnit)
	a.SalePriceTotal = fn(a.SalePriceTotal)
	a.Margin = fn(a.Margin)
	a.OutputVAT = fn(a.OutputVAT)
	a.NetVATPayable = fn(a.NetVATPayable)
	a.GrossTotal = fn(a.GrossTotal)
	a.TransitCommission = fn(a.TransitCommission)
	return a
}

// Mul returns a copy with every field multiplied by rate.
func (a Amounts) Mul(rate decimal.Decimal) Amounts {
	return a.apply(func(d decimal.Decimal) decimal.Decimal { return d.Mul(rate) })
}

// Round returns a copy with every field rounded to the given places.
func (a Amounts) Round(places int32) Amounts {
	return a.apply(func(d decimal.Decimal) decimal.Decimal { return d.Round(places) })
}

// add accumulates b into a field by field.
func (a Amounts) add(b Amounts) Amounts {
	a.PurchaseUnit = a.PurchaseUnit.Add(b.PurchaseUnit)
	a.PurchaseTotal = a.PurchaseTotal.Add(b.PurchaseTotal)
	a.FirstLegAllocated = a.FirstLegAllocated.Add(b.FirstLegAllocated)
	a.LastLegAllocated = a.LastLegAllocated.Add(b.LastLegAllocated)
	a.LogisticsAllocated = a.LogisticsAllocated.Add(b.LogisticsAllocated)
	a.HandlingAllocated = a.HandlingAllocated.Add(b.HandlingAllocated)
	a.InternalPrice = a.InternalPrice.Add(b.InternalPrice)
	a.InternalPriceVATRestored = a.InternalPriceVATRestored.Add(b.InternalPriceVATRestored)
	a.CustomsDuty = a.CustomsDuty.Add(b.CustomsDuty)
	a.Excise = a.Excise.Add(b.Excise)
	a.ImportVAT = a.ImportVAT.Add(b.ImportVAT)
	a.Insurance = a.Insurance.Add(b.Insurance)
	a.SupplierAdvance = a.SupplierAdvance.Add(b.SupplierAdvance)
	a.SupplierBalance = a.SupplierBalance.Add(b.SupplierBalance)
	a.RevenueEstimate = a.RevenueEstimate.Add(b.RevenueEstimate)
	a.FinancingAllocated = a.FinancingAllocated.Add(b.FinancingAllocated)
	a.CreditInterestAllocated = a.CreditInterestAllocated.Add(b.CreditInterestAllocated)
	a.COGSUnit = a.COGSUnit.Add(b.COGSUnit)
	a.COGSTotal = a.COGSTotal.Add(b.COGSTotal)
	a.SalePriceUnit = a.SalePriceUnit.Add(b.SalePriceUnit)
	a.SalePriceTotal = a.SalePriceTotal.Add(b.SalePriceTotal)
	a.Margin = a.Margin.Add(b.Margin)
	a.OutputVAT = a.OutputVAT.Add(b.OutputVAT)
	a.NetVATPayable = a.NetVATPayable.Add(b.NetVATPayable)
	a.GrossTotal = a.GrossTotal.Add(b.GrossTotal)
	a.TransitCommission = a.TransitCommission.Add(b.TransitCommission)
	return a
}

// PhaseResult is the per-product output of one calculation run. Immutable
// once produced; a recalculation supersedes it instead of editing it.
type PhaseResult struct {
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Weight       decimal.Decimal `json:"weight"`
	OutputVATPct decimal.Decimal `json:"output_vat_pct"`
	DeliveryDate time.Time       `json:"delivery_date"`

	USD   Amounts `json:"usd"`
	Local Amounts `json:"local"`
}

// JurisdictionTax is one leg of the organisation income-tax split.
type JurisdictionTax struct {
	Jurisdiction string          `json:"jurisdiction"`
	RatePct      decimal.Decimal `json:"rate_pct"`
	MarginUSD    decimal.Decimal `json:"margin_usd"`
	TaxUSD       decimal.Decimal `json:"tax_usd"`
	TaxLocal     decimal.Decimal `json:"tax_local"`
}

// SummaryTotals are the quote-level aggregates in one currency.
type SummaryTotals struct {
	Purchase           decimal.Decimal `json:"purchase"`
	LogisticsShared    decimal.Decimal `json:"logistics_shared"`
	LogisticsAllocated decimal.Decimal `json:"logistics_allocated"`
	Handling           decimal.Decimal `json:"handling"`
	Insurance          decimal.Decimal `json:"insurance"`
	CustomsDuty        decimal.Decimal `json:"customs_duty"`
	Excise             decimal.Decimal `json:"excise"`
	ImportVAT          decimal.Decimal `json:"import_vat"`
	SupplierAdvances   decimal.Decimal `json:"supplier_advances"`
	FinancingCost      decimal.Decimal `json:"financing_cost"`
	CreditInterest     decimal.Decimal `json:"credit_interest"`
	COGS               decimal.Decimal `json:"cogs"`
	Sale               decimal.Decimal `json:"sale"`
	OutputVAT          decimal.Decimal `json:"output_vat"`
	NetVATPayable      decimal.Decimal `json:"net_vat_payable"`
	Gross              decimal.Decimal `json:"gross"`
	TransitCommission  decimal.Decimal `json:"transit_commission"`
	InternalMargin     decimal.Decimal `json:"internal_margin"`
	SellingMargin      decimal.Decimal `json:"selling_margin"`
}

func (t SummaryTotals) apply(fn func(decimal.Decimal) decimal.Decimal) SummaryTotals {
	t.Purchase = fn(t.Purchase)
	t.LogisticsShared = fn(t.LogisticsShared)
	t.LogisticsAllocated = fn(t.LogisticsAllocated)
	t.Handling = fn(t.Handling)
	t.Insurance = fn(t.Insurance)
	t.CustomsDuty = fn(t.CustomsDuty)
	t.Excise = fn(t.Excise)
	t.ImportVAT = fn(t.ImportVAT)
	t.SupplierAdvances = fn(t.SupplierAdvances)
	t.FinancingCost = fn(t.FinancingCost)
	t.CreditInterest = fn(t.CreditInterest)
	t.COGS = fn(t.COGS)
	t.Sale = fn(t.Sale)
	t.OutputVAT = fn(t.OutputVAT)
	t.NetVATPayable = fn(t.NetVATPayable)
	t.Gross = fn(t.Gross)
	t.TransitCommission = fn(t.TransitCommission)
	t.InternalMargin = fn(t.InternalMargin)
	t.SellingMargin = fn(t.SellingMargin)
	return t
}

// Mul returns a copy with every total multiplied by rate.
func (t SummaryTotals) Mul(rate decimal.Decimal) SummaryTotals {
	return t.apply(func(d decimal.Decimal) decimal.Decimal { return d.Mul(rate) })
}

// Round returns a copy with every total rounded to the given places.
func (t SummaryTotals) Round(places int32) SummaryTotals {
	return t.apply(func(d decimal.Decimal) decimal.Decimal { return d.Round(places) })
}

// Summary is the quote-level calculation result: aggregates in both
// currencies plus the frozen rate and its source for audit.
type Summary struct {
	QuoteID      uuid.UUID       `json:"quote_id"`
	Currency     string          `json:"currency"`
	Rate         RateSnapshot    `json:"rate"`
	ProductCount int             `json:"product_count"`
	USD          SummaryTotals   `json:"usd"`
	Local        SummaryTotals   `json:"local"`
	TaxSplit     []JurisdictionTax `json:"tax_split"`
	Warnings     []string        `json:"warnings,omitempty"`
}

// Output bundles everything one run produces.
type Output struct {
	Results []PhaseResult `json:"results"`
	Summary Summary       `json:"summary"`
}
