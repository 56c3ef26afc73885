package calc

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// aggregate folds every per-product result into the quote summary. It
// fails closed: a product without a PhaseResult aborts aggregation instead
// of silently dropping the product from the totals.
func aggregate(st *runState, results []PhaseResult) (Summary, error) {
	byProduct := make(map[uuid.UUID]struct{}, len(results))
	for _, res := range results {
		byProduct[res.ProductID] = struct{}{}
	}
	for _, p := range st.in.Products {
		if _, ok := byProduct[p.ID]; !ok {
			return Summary{}, fmt.Errorf("calc: %w: product %q has no phase result", ErrIntegrity, p.Name)
		}
	}

	var totals SummaryTotals
	totals.LogisticsShared = st.firstLeg.Add(st.lastLeg)
	totals.FinancingCost = st.financingCost
	totals.CreditInterest = st.creditInterest

	internalByJurisdiction := map[string]decimal.Decimal{}
	sellingByJurisdiction := map[string]decimal.Decimal{}

	for _, ps := range st.products {
		totals.Purchase = totals.Purchase.Add(ps.usd.PurchaseTotal)
		totals.LogisticsAllocated = totals.LogisticsAllocated.Add(ps.usd.LogisticsAllocated)
		totals.Handling = totals.Handling.Add(ps.usd.HandlingAllocated)
		totals.Insurance = totals.Insurance.Add(ps.usd.Insurance)
		totals.CustomsDuty = totals.CustomsDuty.Add(ps.usd.CustomsDuty)
		totals.Excise = totals.Excise.Add(ps.usd.Excise)
		totals.ImportVAT = totals.ImportVAT.Add(ps.usd.ImportVAT)
		totals.SupplierAdvances = totals.SupplierAdvances.Add(ps.usd.SupplierAdvance)
		totals.COGS = totals.COGS.Add(ps.usd.COGSTotal)
		totals.Sale = totals.Sale.Add(ps.usd.SalePriceTotal)
		totals.OutputVAT = totals.OutputVAT.Add(ps.usd.OutputVAT)
		totals.NetVATPayable = totals.NetVATPayable.Add(ps.usd.NetVATPayable)
		totals.Gross = totals.Gross.Add(ps.usd.GrossTotal)
		totals.TransitCommission = totals.TransitCommission.Add(ps.usd.TransitCommission)

		// Internal margin accrues to the supplier country, the remainder of
		// the sale margin to the selling entity's jurisdiction.
		internal := ps.usd.InternalPrice.Sub(ps.usd.PurchaseTotal)
		selling := ps.usd.SalePriceTotal.Sub(ps.usd.InternalPrice).
			Sub(ps.usd.LogisticsAllocated).
			Sub(ps.usd.HandlingAllocated).
			Sub(ps.usd.Insurance).
			Sub(ps.usd.FinancingAllocated).
			Sub(ps.usd.CustomsDuty).
			Sub(ps.usd.Excise)
		totals.InternalMargin = totals.InternalMargin.Add(internal)
		totals.SellingMargin = totals.SellingMargin.Add(selling)

		internalByJurisdiction[ps.product.SupplierCountry] = internalByJurisdiction[ps.product.SupplierCountry].Add(internal)
		sellingByJurisdiction[ps.eff.SellingEntity] = sellingByJurisdiction[ps.eff.SellingEntity].Add(selling)
	}

	split, warnings, err := taxSplit(st, internalByJurisdiction, sellingByJurisdiction)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		QuoteID:      st.in.QuoteID,
		Currency:     st.in.Variables.Currency,
		Rate:         st.in.Rates.QuoteRate,
		ProductCount: len(st.products),
		USD:          totals.Round(moneyPlaces),
		Local:        totals.Mul(st.quoteRate).Round(moneyPlaces),
		TaxSplit:     split,
		Warnings:     append(st.warnings, warnings...),
	}, nil
}

// taxSplit prices the jurisdiction income tax on each margin pool. The
// selling entity's jurisdiction must be configured; a supplier country
// absent from the tax table is zero-rated with a warning since foreign
// supplier tax is not this organisation's liability.
func taxSplit(st *runState, internal, selling map[string]decimal.Decimal) ([]JurisdictionTax, []string, error) {
	var warnings []string
	merged := map[string]decimal.Decimal{}
	for j, m := range internal {
		merged[j] = merged[j].Add(m)
	}
	for j, m := range selling {
		merged[j] = merged[j].Add(m)
	}

	jurisdictions := make([]string, 0, len(merged))
	for j := range merged {
		jurisdictions = append(jurisdictions, j)
	}
	sort.Strings(jurisdictions)

	split := make([]JurisdictionTax, 0, len(merged))
	for _, j := range jurisdictions {
		margin := merged[j]
		rate, ok := st.in.Refs.Org.TaxRatePct[j]
		if !ok {
			if _, isSelling := selling[j]; isSelling {
				return nil, nil, fmt.Errorf("calc: %w: no income tax rate for jurisdiction %q", ErrReferenceData, j)
			}
			warnings = append(warnings, fmt.Sprintf("no tax rate for supplier jurisdiction %s; zero-rated", j))
			rate = decimal.Zero
		}
		tax := margin.Mul(fraction(rate))
		if tax.IsNegative() {
			tax = decimal.Zero
		}
		split = append(split, JurisdictionTax{
			Jurisdiction: j,
			RatePct:      rate,
			MarginUSD:    margin.Round(moneyPlaces),
			TaxUSD:       tax.Round(moneyPlaces),
			TaxLocal:     tax.Mul(st.quoteRate).Round(moneyPlaces),
		})
	}
	return split, warnings, nil
}
