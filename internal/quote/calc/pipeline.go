package calc

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Input is everything one calculation run consumes. The engine only reads
// it: variables, products and reference tables are never mutated.
type Input struct {
	QuoteID   uuid.UUID
	Variables QuoteVariables
	Products  []Product
	Refs      ReferenceSet
	Rates     RateSet
}

// productState is the working record for one product as it moves through
// the phases. Amounts are USD at full precision until results are shaped.
type productState struct {
	product Product
	eff     Effective
	country CountryRates
	weight  decimal.Decimal
	vatPct  decimal.Decimal
	usd     Amounts
}

// runState threads the quote-level aggregates between phases.
type runState struct {
	in        Input
	quoteRate decimal.Decimal

	products []*productState

	purchaseBase   decimal.Decimal
	firstLeg       decimal.Decimal
	lastLeg        decimal.Decimal
	handling       decimal.Decimal
	financingCost  decimal.Decimal
	creditInterest decimal.Decimal

	warnings []string
}

type stage func(*runState) error

// The thirteen ordered phases. Phases 2, 3, 7, 8 and 9 work across
// products: shared costs cannot be distributed until every product's
// purchase total is known, and the provisional revenue estimate of phase 6
// must exist before financing can be sized. That forward dependency is the
// reason for the fixed ordering, not a cycle.
var stages = []stage{
	stagePurchase,
	stageDistributionBase,
	stageLogistics,
	stageInternalPricing,
	stageSupplierSchedule,
	stageRevenueEstimate,
	stageFinancing,
	stageCreditInterest,
	stageFinancingDistribution,
	stageCOGS,
	stageSalePrice,
	stageVAT,
	stageTransit,
}

// Run executes the full pipeline. It is a pure function of its input:
// identical variables, reference data and rate snapshots produce identical
// results, so recalculation and version diffing are safe.
func Run(in Input) (Output, error) {
	if err := in.Refs.Validate(); err != nil {
		return Output{}, err
	}
	st, err := newRunState(in)
	if err != nil {
		return Output{}, err
	}
	if len(in.Products) == 0 {
		st.warn("quote has no products; totals are zero")
	}
	for _, s := range stages {
		if err := s(st); err != nil {
			return Output{}, err
		}
	}
	results := shapeResults(st)
	summary, err := aggregate(st, results)
	if err != nil {
		return Output{}, err
	}
	return Output{Results: results, Summary: summary}, nil
}

func newRunState(in Input) (*runState, error) {
	quoteRate, err := in.Rates.QuoteCurrencyRate(in.Variables.Currency)
	if err != nil {
		return nil, err
	}

	var missing []string
	if in.Variables.FirstLegLogisticsCost == nil {
		missing = append(missing, "first_leg_logistics_cost")
	}
	if in.Variables.LastLegLogisticsCost == nil {
		missing = append(missing, "last_leg_logistics_cost")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("calc: %w", &MissingVariablesError{Fields: missing})
	}

	st := &runState{
		in:        in,
		quoteRate: quoteRate,
		firstLeg:  *in.Variables.FirstLegLogisticsCost,
		lastLeg:   *in.Variables.LastLegLogisticsCost,
		handling:  handlingCosts(in.Variables),
		products:  make([]*productState, 0, len(in.Products)),
	}
	for _, p := range in.Products {
		if !p.Quantity.IsPositive() {
			return nil, fmt.Errorf("calc: %w: product %q quantity must be positive", ErrValidation, p.Name)
		}
		eff, err := Resolve(in.Variables, p, in.Refs.Org)
		if err != nil {
			return nil, fmt.Errorf("calc: product %q: %w", p.Name, err)
		}
		country, err := in.Refs.Country(p.SupplierCountry)
		if err != nil {
			return nil, err
		}
		st.products = append(st.products, &productState{product: p, eff: eff, country: country})
	}
	return st, nil
}

func (st *runState) warn(msg string) {
	st.warnings = append(st.warnings, msg)
}

// handlingCosts pools the optional quote-level surcharges: customs
// brokerage, certification, export packaging and warehouse storage. Absent
// fields contribute zero.
func handlingCosts(vars QuoteVariables) decimal.Decimal {
	orZero := func(p *decimal.Decimal) decimal.Decimal {
		if p == nil {
			return decimal.Zero
		}
		return *p
	}
	total := orZero(vars.CustomsBrokerageCost).
		Add(orZero(vars.CertificationCost)).
		Add(orZero(vars.ExportPackagingCost))
	if vars.StorageDays != nil && vars.StorageCostPerDay != nil {
		total = total.Add(vars.StorageCostPerDay.Mul(decimal.NewFromInt(int64(*vars.StorageDays))))
	}
	return total
}

// Phase 1: purchase price resolution. Base price converted to USD, supplier
// discount applied, multiplied by quantity.
func stagePurchase(st *runState) error {
	for _, ps := range st.products {
		baseUSD, err := st.in.Rates.USD(ps.product.BasePrice, ps.product.Currency)
		if err != nil {
			return err
		}
		unit := baseUSD.Mul(one.Sub(fraction(ps.eff.SupplierDiscountPct)))
		ps.usd.PurchaseUnit = unit
		ps.usd.PurchaseTotal = unit.Mul(ps.product.Quantity)
	}
	return nil
}

// Phase 2: distribution base. A zero quote total defines every weight as
// zero so no product receives distributed cost and no division happens.
func stageDistributionBase(st *runState) error {
	total := decimal.Zero
	for _, ps := range st.products {
		total = total.Add(ps.usd.PurchaseTotal)
	}
	st.purchaseBase = total
	if total.IsZero() {
		if len(st.products) > 0 {
			st.warn("distribution base is zero; shared costs were not allocated")
		}
		return nil
	}
	for _, ps := range st.products {
		ps.weight = ps.usd.PurchaseTotal.Div(total)
	}
	return nil
}

// Phase 3: logistics and handling distribution by weight. The
// undistributed quote totals are retained separately for display.
func stageLogistics(st *runState) error {
	for _, ps := range st.products {
		ps.usd.FirstLegAllocated = st.firstLeg.Mul(ps.weight)
		ps.usd.LastLegAllocated = st.lastLeg.Mul(ps.weight)
		ps.usd.LogisticsAllocated = ps.usd.FirstLegAllocated.Add(ps.usd.LastLegAllocated)
		ps.usd.HandlingAllocated = st.handling.Mul(ps.weight)
	}
	return nil
}

// Phase 4: internal pricing and duties. Customs value is the purchase total
// plus first-leg logistics reaching the border.
func stageInternalPricing(st *runState) error {
	for _, ps := range st.products {
		markup, ok := ps.country.InternalMarkupPct[ps.eff.SellingEntity]
		if !ok {
			return fmt.Errorf("calc: %w: no internal markup for entity %q in country %q",
				ErrReferenceData, ps.eff.SellingEntity, ps.product.SupplierCountry)
		}
		ps.usd.InternalPrice = ps.usd.PurchaseTotal.Mul(onePlus(markup))
		ps.usd.InternalPriceVATRestored = ps.usd.InternalPrice
		if ps.eff.RestoreVAT {
			ps.usd.InternalPriceVATRestored = ps.usd.InternalPrice.Mul(onePlus(ps.country.VATRatePct))
		}

		customsValue := ps.usd.PurchaseTotal.Add(ps.usd.FirstLegAllocated)
		ps.usd.CustomsDuty = customsValue.Mul(fraction(ps.eff.ImportTariffPct))
		ps.usd.Excise = customsValue.Mul(fraction(ps.eff.ExcisePct))
		ps.usd.ImportVAT = customsValue.Add(ps.usd.CustomsDuty).Add(ps.usd.Excise).
			Mul(fraction(ps.eff.ImportVATPct))
		ps.usd.Insurance = customsValue.Mul(fraction(ps.eff.InsurancePct))
	}
	return nil
}

// Phase 5: supplier payment schedule.
func stageSupplierSchedule(st *runState) error {
	for _, ps := range st.products {
		ps.usd.SupplierAdvance = ps.usd.PurchaseTotal.Mul(fraction(ps.eff.SupplierAdvancePct))
		ps.usd.SupplierBalance = ps.usd.PurchaseTotal.Sub(ps.usd.SupplierAdvance)
	}
	return nil
}

// Phase 6: provisional revenue estimate. Sizes the financing need of phase
// 7 and is never surfaced as the final price.
func stageRevenueEstimate(st *runState) error {
	for _, ps := range st.products {
		base := ps.usd.PurchaseTotal.Add(ps.usd.CustomsDuty).Add(ps.usd.Excise)
		ps.usd.RevenueEstimate = base.Mul(onePlus(ps.eff.MarkupPct))
	}
	return nil
}

// Phase 7: financing cost, one quote-level total. Two needs: the gap
// between the supplier advance paid and the client advance received, open
// for the supplier payment term, and the customs/logistics float, open for
// the customs payment due days. The organisation financing commission is
// charged on the combined need, and the bank takes its transfer commission
// on the supplier payments.
func stageFinancing(st *runState) error {
	commissionPct := fraction(st.in.Refs.Org.FinancingCommissionPct)
	total := decimal.Zero
	for _, ps := range st.products {
		daily := dailyRate(ps.eff.FinancingAnnualPct)

		clientAdvance := ps.usd.RevenueEstimate.Mul(fraction(ps.eff.ClientAdvancePct))
		gap := ps.usd.SupplierAdvance.Sub(clientAdvance)
		if gap.IsNegative() {
			gap = decimal.Zero
		}
		gapCost := gap.Mul(daily).Mul(decimal.NewFromInt(int64(ps.eff.SupplierPaymentTermDays)))

		float := ps.usd.CustomsDuty.Add(ps.usd.Excise).Add(ps.usd.LogisticsAllocated)
		floatCost := float.Mul(daily).Mul(decimal.NewFromInt(int64(ps.eff.CustomsPaymentDueDays)))

		commission := gap.Add(float).Mul(commissionPct)
		bank := ps.usd.PurchaseTotal.Mul(fraction(ps.eff.BankCommissionPct))
		total = total.Add(gapCost).Add(floatCost).Add(commission).Add(bank)
	}
	st.financingCost = total
	return nil
}

// Phase 8: interest earned on the deferred client balance over the agreed
// credit term.
func stageCreditInterest(st *runState) error {
	total := decimal.Zero
	for _, ps := range st.products {
		if ps.eff.CreditTermDays <= 0 {
			continue
		}
		deferred := ps.usd.RevenueEstimate.Mul(one.Sub(fraction(ps.eff.ClientAdvancePct)))
		interest := deferred.Mul(dailyRate(ps.eff.CreditAnnualPct)).
			Mul(decimal.NewFromInt(int64(ps.eff.CreditTermDays)))
		total = total.Add(interest)
	}
	st.creditInterest = total
	return nil
}

// Phase 9: allocate the phase 7 and 8 totals back to products by weight.
func stageFinancingDistribution(st *runState) error {
	for _, ps := range st.products {
		ps.usd.FinancingAllocated = st.financingCost.Mul(ps.weight)
		ps.usd.CreditInterestAllocated = st.creditInterest.Mul(ps.weight)
	}
	return nil
}

// Phase 10: landed cost of goods sold.
func stageCOGS(st *runState) error {
	for _, ps := range st.products {
		ps.usd.COGSTotal = ps.usd.PurchaseTotal.
			Add(ps.usd.LogisticsAllocated).
			Add(ps.usd.HandlingAllocated).
			Add(ps.usd.Insurance).
			Add(ps.usd.FinancingAllocated).
			Add(ps.usd.CustomsDuty).
			Add(ps.usd.Excise)
		ps.usd.COGSUnit = ps.usd.COGSTotal.Div(ps.product.Quantity)
	}
	return nil
}

// Phase 11: sale price. Markup first, then DM fee, forex-risk reserve,
// financial-agent fee and warranty reserve, each on the running subtotal in
// that fixed order.
func stageSalePrice(st *runState) error {
	for _, ps := range st.products {
		price := ps.usd.COGSTotal.
			Mul(onePlus(ps.eff.MarkupPct)).
			Mul(onePlus(ps.eff.DMFeePct)).
			Mul(onePlus(ps.eff.ForexRiskPct)).
			Mul(onePlus(ps.eff.FinAgentPct)).
			Mul(onePlus(ps.eff.WarrantyReservePct))
		ps.usd.SalePriceTotal = price
		ps.usd.SalePriceUnit = price.Div(ps.product.Quantity)
		ps.usd.Margin = price.Sub(ps.usd.COGSTotal)
	}
	return nil
}

// Phase 12: date-sensitive output VAT, net of deductible import VAT.
func stageVAT(st *runState) error {
	cutover := st.in.Refs.Org.VATCutover
	for _, ps := range st.products {
		ps.vatPct = cutover.RateFor(ps.product.DeliveryDate)
		ps.usd.OutputVAT = ps.usd.SalePriceTotal.Mul(fraction(ps.vatPct))
		ps.usd.NetVATPayable = ps.usd.OutputVAT.Sub(ps.usd.ImportVAT)
		ps.usd.GrossTotal = ps.usd.SalePriceTotal.Add(ps.usd.OutputVAT)
	}
	return nil
}

// Phase 13: transit commission for pass-through deals, zero otherwise.
func stageTransit(st *runState) error {
	for _, ps := range st.products {
		if !ps.eff.TransitDeal {
			continue
		}
		ps.usd.TransitCommission = ps.usd.PurchaseTotal.Mul(fraction(ps.eff.TransitPct))
	}
	return nil
}

// shapeResults rounds the USD figures and produces the quote-currency copy
// from the frozen rate.
func shapeResults(st *runState) []PhaseResult {
	results := make([]PhaseResult, 0, len(st.products))
	for _, ps := range st.products {
		results = append(results, PhaseResult{
			ProductID:    ps.product.ID,
			ProductName:  ps.product.Name,
			Quantity:     ps.product.Quantity,
			Weight:       ps.weight.Round(weightPlaces),
			OutputVATPct: ps.vatPct,
			DeliveryDate: ps.product.DeliveryDate,
			USD:          ps.usd.Round(moneyPlaces),
			Local:        ps.usd.Mul(st.quoteRate).Round(moneyPlaces),
		})
	}
	return results
}
