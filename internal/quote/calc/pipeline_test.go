package calc

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func pd(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	v := d(t, s)
	return &v
}

func pi(n int) *int { return &n }

func testRefs(t *testing.T) ReferenceSet {
	t.Helper()
	return ReferenceSet{
		Countries: map[string]CountryRates{
			"US": {
				VATRatePct:        decimal.Zero,
				InternalMarkupPct: map[string]decimal.Decimal{"MERIDIAN-US": decimal.Zero, "MERIDIAN-EU": d(t, "5")},
			},
			"DE": {
				VATRatePct:        d(t, "19"),
				InternalMarkupPct: map[string]decimal.Decimal{"MERIDIAN-US": d(t, "3"), "MERIDIAN-EU": d(t, "5")},
			},
		},
		Org: OrgSettings{
			FinancingCommissionPct: decimal.Zero,
			TaxRatePct: map[string]decimal.Decimal{
				"MERIDIAN-US": d(t, "21"),
				"MERIDIAN-EU": d(t, "25"),
				"US":          d(t, "21"),
			},
			VATCutover: VATCutover{
				At:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				BeforePct: d(t, "20"),
				AfterPct:  d(t, "22"),
			},
		},
	}
}

// zeroedVariables fills every required variable with an explicit zero so
// individual tests only set what they exercise.
func zeroedVariables(t *testing.T) QuoteVariables {
	t.Helper()
	return QuoteVariables{
		Currency:      "USD",
		SellingEntity: "MERIDIAN-US",
		DeliveryTerms: "DAP",

		MarkupPct:           pd(t, "0"),
		SupplierDiscountPct: pd(t, "0"),
		ImportTariffPct:     pd(t, "0"),
		ExcisePct:           pd(t, "0"),
		ImportVATPct:        pd(t, "0"),
		ClientAdvancePct:    pd(t, "0"),
		SupplierAdvancePct:  pd(t, "0"),

		SupplierPaymentTermDays: pi(30),
		CustomsPaymentDueDays:   pi(14),
		CreditTermDays:          pi(0),
		CreditAnnualPct:         pd(t, "0"),
		FinancingAnnualPct:      pd(t, "0"),

		FirstLegLogisticsCost: pd(t, "0"),
		LastLegLogisticsCost:  pd(t, "0"),

		DMFeePct:     pd(t, "0"),
		ForexRiskPct: pd(t, "0"),
		FinAgentPct:  pd(t, "0"),
	}
}

func usdRates() RateSet {
	return RateSet{
		ToUSD: map[string]RateSnapshot{},
		QuoteRate: RateSnapshot{
			From: "USD", To: "USD", Rate: decimal.NewFromInt(1),
			Source: RateSourceExternal, FetchedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

func product(t *testing.T, name, price string, qty string) Product {
	t.Helper()
	return Product{
		ID:              uuid.New(),
		Name:            name,
		BasePrice:       d(t, price),
		Currency:        "USD",
		Quantity:        d(t, qty),
		CustomsCode:     "8471",
		SupplierCountry: "US",
		PickupCountry:   "US",
		DeliveryDate:    time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestRunWorkedExample(t *testing.T) {
	vars := zeroedVariables(t)
	vars.MarkupPct = pd(t, "15")

	out, err := Run(Input{
		QuoteID:   uuid.New(),
		Variables: vars,
		Products:  []Product{product(t, "controller", "1000", "1")},
		Refs:      testRefs(t),
		Rates:     usdRates(),
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)

	res := out.Results[0]
	assert.True(t, res.USD.PurchaseTotal.Equal(d(t, "1000")), "purchase = %s", res.USD.PurchaseTotal)
	assert.True(t, res.USD.COGSTotal.Equal(d(t, "1000")), "cogs = %s", res.USD.COGSTotal)
	assert.True(t, res.USD.SalePriceTotal.Equal(d(t, "1150")), "sale = %s", res.USD.SalePriceTotal)
	assert.True(t, res.USD.OutputVAT.Equal(d(t, "230")), "vat = %s", res.USD.OutputVAT)
	assert.True(t, res.USD.NetVATPayable.Equal(d(t, "230")), "net vat = %s", res.USD.NetVATPayable)
	assert.True(t, res.USD.TransitCommission.IsZero())
	assert.True(t, res.Weight.Equal(decimal.NewFromInt(1)))

	sum := out.Summary
	assert.True(t, sum.USD.Sale.Equal(d(t, "1150")))
	assert.True(t, sum.USD.NetVATPayable.Equal(d(t, "230")))
	assert.Equal(t, RateSourceExternal, sum.Rate.Source)
	assert.Empty(t, sum.Warnings)
}

func TestRunTwoProductDistribution(t *testing.T) {
	vars := zeroedVariables(t)
	vars.FirstLegLogisticsCost = pd(t, "400")

	out, err := Run(Input{
		QuoteID:   uuid.New(),
		Variables: vars,
		Products: []Product{
			product(t, "alpha", "3000", "1"),
			product(t, "beta", "1000", "1"),
		},
		Refs:  testRefs(t),
		Rates: usdRates(),
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)

	assert.True(t, out.Results[0].Weight.Equal(d(t, "0.75")))
	assert.True(t, out.Results[1].Weight.Equal(d(t, "0.25")))
	assert.True(t, out.Results[0].USD.LogisticsAllocated.Equal(d(t, "300")),
		"alpha logistics = %s", out.Results[0].USD.LogisticsAllocated)
	assert.True(t, out.Results[1].USD.LogisticsAllocated.Equal(d(t, "100")),
		"beta logistics = %s", out.Results[1].USD.LogisticsAllocated)

	// Conservation: allocations add back up to the shared cost.
	allocated := out.Results[0].USD.LogisticsAllocated.Add(out.Results[1].USD.LogisticsAllocated)
	assert.True(t, allocated.Equal(d(t, "400")))
	assert.True(t, out.Summary.USD.LogisticsShared.Equal(d(t, "400")))
}

func TestRunZeroDistributionBase(t *testing.T) {
	vars := zeroedVariables(t)
	vars.FirstLegLogisticsCost = pd(t, "500")

	out, err := Run(Input{
		QuoteID:   uuid.New(),
		Variables: vars,
		Products: []Product{
			product(t, "free-a", "0", "1"),
			product(t, "free-b", "0", "2"),
		},
		Refs:  testRefs(t),
		Rates: usdRates(),
	})
	require.NoError(t, err)
	for _, res := range out.Results {
		assert.True(t, res.Weight.IsZero())
		assert.True(t, res.USD.LogisticsAllocated.IsZero())
		assert.True(t, res.USD.FinancingAllocated.IsZero())
	}
	require.NotEmpty(t, out.Summary.Warnings)
	assert.Contains(t, out.Summary.Warnings[0], "distribution base is zero")
}

func TestRunDeterminism(t *testing.T) {
	vars := zeroedVariables(t)
	vars.MarkupPct = pd(t, "12.5")
	vars.SupplierDiscountPct = pd(t, "3")
	vars.ImportTariffPct = pd(t, "7.5")
	vars.FinancingAnnualPct = pd(t, "11")
	vars.SupplierAdvancePct = pd(t, "40")
	vars.FirstLegLogisticsCost = pd(t, "850.40")

	in := Input{
		QuoteID:   uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Variables: vars,
		Products: []Product{
			product(t, "pump", "1299.99", "7"),
			product(t, "valve", "74.25", "120"),
		},
		Refs:  testRefs(t),
		Rates: usdRates(),
	}

	first, err := Run(in)
	require.NoError(t, err)
	second, err := Run(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunOverridePrecedence(t *testing.T) {
	vars := zeroedVariables(t)
	vars.MarkupPct = pd(t, "10")

	alpha := product(t, "alpha", "1000", "1")
	beta := product(t, "beta", "1000", "1")

	base, err := Run(Input{
		QuoteID: uuid.New(), Variables: vars,
		Products: []Product{alpha, beta},
		Refs:     testRefs(t), Rates: usdRates(),
	})
	require.NoError(t, err)

	beta.Overrides.MarkupPct = pd(t, "30")
	overridden, err := Run(Input{
		QuoteID: uuid.New(), Variables: vars,
		Products: []Product{alpha, beta},
		Refs:     testRefs(t), Rates: usdRates(),
	})
	require.NoError(t, err)

	assert.True(t, overridden.Results[0].USD.SalePriceTotal.Equal(base.Results[0].USD.SalePriceTotal),
		"sibling product changed: %s vs %s", overridden.Results[0].USD.SalePriceTotal, base.Results[0].USD.SalePriceTotal)
	assert.True(t, overridden.Results[1].USD.SalePriceTotal.Equal(d(t, "1300")))
	assert.True(t, base.Results[1].USD.SalePriceTotal.Equal(d(t, "1100")))
}

func TestRunVATCutover(t *testing.T) {
	vars := zeroedVariables(t)

	before := product(t, "early", "1000", "1")
	before.DeliveryDate = time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	onCutover := product(t, "late", "1000", "1")
	onCutover.DeliveryDate = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	out, err := Run(Input{
		QuoteID: uuid.New(), Variables: vars,
		Products: []Product{before, onCutover},
		Refs:     testRefs(t), Rates: usdRates(),
	})
	require.NoError(t, err)

	assert.True(t, out.Results[0].OutputVATPct.Equal(d(t, "20")))
	assert.True(t, out.Results[0].USD.OutputVAT.Equal(d(t, "200")))
	assert.True(t, out.Results[1].OutputVATPct.Equal(d(t, "22")))
	assert.True(t, out.Results[1].USD.OutputVAT.Equal(d(t, "220")))
}

func TestRunCurrencyDuality(t *testing.T) {
	vars := zeroedVariables(t)
	vars.Currency = "EUR"
	vars.MarkupPct = pd(t, "15")

	rates := RateSet{
		ToUSD: map[string]RateSnapshot{},
		QuoteRate: RateSnapshot{
			From: "USD", To: "EUR", Rate: d(t, "2"),
			Source: RateSourceManual, FetchedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		},
	}

	out, err := Run(Input{
		QuoteID:   uuid.New(),
		Variables: vars,
		Products:  []Product{product(t, "controller", "1000", "1")},
		Refs:      testRefs(t),
		Rates:     rates,
	})
	require.NoError(t, err)

	res := out.Results[0]
	assert.True(t, res.Local.PurchaseTotal.Equal(res.USD.PurchaseTotal.Mul(d(t, "2"))))
	assert.True(t, res.Local.SalePriceTotal.Equal(d(t, "2300")))
	assert.True(t, out.Summary.Local.Sale.Equal(out.Summary.USD.Sale.Mul(d(t, "2"))))
	assert.Equal(t, RateSourceManual, out.Summary.Rate.Source)
}

func TestRunProductCurrencyConversion(t *testing.T) {
	vars := zeroedVariables(t)

	p := product(t, "sensor", "100", "2")
	p.Currency = "EUR"

	rates := usdRates()
	rates.ToUSD["EUR"] = RateSnapshot{
		From: "EUR", To: "USD", Rate: d(t, "1.1"),
		Source: RateSourceExternal, FetchedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}

	out, err := Run(Input{
		QuoteID: uuid.New(), Variables: vars,
		Products: []Product{p},
		Refs:     testRefs(t), Rates: rates,
	})
	require.NoError(t, err)
	assert.True(t, out.Results[0].USD.PurchaseTotal.Equal(d(t, "220")))
}

func TestRunMissingProductRateFatal(t *testing.T) {
	vars := zeroedVariables(t)

	p := product(t, "sensor", "100", "1")
	p.Currency = "JPY"

	_, err := Run(Input{
		QuoteID: uuid.New(), Variables: vars,
		Products: []Product{p},
		Refs:     testRefs(t), Rates: usdRates(),
	})
	require.ErrorIs(t, err, ErrReferenceData)
}

func TestRunTransitCommission(t *testing.T) {
	vars := zeroedVariables(t)
	vars.MarkupPct = pd(t, "15")
	vars.TransitDeal = true
	vars.TransitPct = pd(t, "2.5")

	out, err := Run(Input{
		QuoteID: uuid.New(), Variables: vars,
		Products: []Product{product(t, "transit-lot", "2000", "1")},
		Refs:     testRefs(t), Rates: usdRates(),
	})
	require.NoError(t, err)
	assert.True(t, out.Results[0].USD.TransitCommission.Equal(d(t, "50")))
	assert.True(t, out.Summary.USD.TransitCommission.Equal(d(t, "50")))
}

func TestRunFinancingCost(t *testing.T) {
	vars := zeroedVariables(t)
	vars.SupplierAdvancePct = pd(t, "100")
	vars.FinancingAnnualPct = pd(t, "36.5")
	vars.SupplierPaymentTermDays = pi(100)
	vars.CustomsPaymentDueDays = pi(0)

	// Advance gap 1000 at 0.1% daily over 100 days = 100.
	out, err := Run(Input{
		QuoteID: uuid.New(), Variables: vars,
		Products: []Product{product(t, "widget", "1000", "1")},
		Refs:     testRefs(t), Rates: usdRates(),
	})
	require.NoError(t, err)
	assert.True(t, out.Summary.USD.FinancingCost.Equal(d(t, "100")),
		"financing = %s", out.Summary.USD.FinancingCost)
	assert.True(t, out.Results[0].USD.FinancingAllocated.Equal(d(t, "100")))
	assert.True(t, out.Results[0].USD.COGSTotal.Equal(d(t, "1100")))
}

func TestRunCreditInterest(t *testing.T) {
	vars := zeroedVariables(t)
	vars.CreditTermDays = pi(100)
	vars.CreditAnnualPct = pd(t, "36.5")

	// Deferred balance equals the revenue estimate (1000); 100 days at a
	// 0.1% daily rate earns 100.
	out, err := Run(Input{
		QuoteID: uuid.New(), Variables: vars,
		Products: []Product{product(t, "widget", "1000", "1")},
		Refs:     testRefs(t), Rates: usdRates(),
	})
	require.NoError(t, err)
	assert.True(t, out.Summary.USD.CreditInterest.Equal(d(t, "100")),
		"credit interest = %s", out.Summary.USD.CreditInterest)
}

func TestRunRejectsNonPositiveQuantity(t *testing.T) {
	vars := zeroedVariables(t)
	p := product(t, "broken", "100", "0")

	_, err := Run(Input{
		QuoteID: uuid.New(), Variables: vars,
		Products: []Product{p},
		Refs:     testRefs(t), Rates: usdRates(),
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRunUnknownSupplierCountry(t *testing.T) {
	vars := zeroedVariables(t)
	p := product(t, "widget", "100", "1")
	p.SupplierCountry = "XX"

	_, err := Run(Input{
		QuoteID: uuid.New(), Variables: vars,
		Products: []Product{p},
		Refs:     testRefs(t), Rates: usdRates(),
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRunEmptyReferenceSetFatal(t *testing.T) {
	vars := zeroedVariables(t)
	_, err := Run(Input{
		QuoteID: uuid.New(), Variables: vars,
		Products: []Product{product(t, "widget", "100", "1")},
		Rates:    usdRates(),
	})
	require.ErrorIs(t, err, ErrReferenceData)
}

func TestRunHandlingCostDistribution(t *testing.T) {
	vars := zeroedVariables(t)
	vars.CustomsBrokerageCost = pd(t, "200")
	vars.CertificationCost = pd(t, "100")
	vars.ExportPackagingCost = pd(t, "60")
	vars.StorageCostPerDay = pd(t, "8")
	vars.StorageDays = pi(5)

	out, err := Run(Input{
		QuoteID:   uuid.New(),
		Variables: vars,
		Products: []Product{
			product(t, "alpha", "3000", "1"),
			product(t, "beta", "1000", "1"),
		},
		Refs:  testRefs(t),
		Rates: usdRates(),
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)

	// 200 + 100 + 60 + 8*5 = 400 shared, split 3:1 by purchase value.
	assert.True(t, out.Results[0].USD.HandlingAllocated.Equal(d(t, "300")),
		"alpha handling = %s", out.Results[0].USD.HandlingAllocated)
	assert.True(t, out.Results[1].USD.HandlingAllocated.Equal(d(t, "100")),
		"beta handling = %s", out.Results[1].USD.HandlingAllocated)
	assert.True(t, out.Results[0].USD.COGSTotal.Equal(d(t, "3300")))
	assert.True(t, out.Results[1].USD.COGSTotal.Equal(d(t, "1100")))
	assert.True(t, out.Summary.USD.Handling.Equal(d(t, "400")))
}

func TestRunSurcharges(t *testing.T) {
	vars := zeroedVariables(t)
	vars.InsurancePct = pd(t, "2")
	vars.BankCommissionPct = pd(t, "1")
	vars.WarrantyReservePct = pd(t, "5")

	out, err := Run(Input{
		QuoteID:   uuid.New(),
		Variables: vars,
		Products:  []Product{product(t, "pump", "1000", "1")},
		Refs:      testRefs(t),
		Rates:     usdRates(),
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)

	res := out.Results[0]
	assert.True(t, res.USD.Insurance.Equal(d(t, "20")), "insurance = %s", res.USD.Insurance)
	assert.True(t, res.USD.FinancingAllocated.Equal(d(t, "10")), "bank commission = %s", res.USD.FinancingAllocated)
	// COGS 1000 + 20 + 10 = 1030; warranty reserve lifts the sale to 1081.50.
	assert.True(t, res.USD.COGSTotal.Equal(d(t, "1030")), "cogs = %s", res.USD.COGSTotal)
	assert.True(t, res.USD.SalePriceTotal.Equal(d(t, "1081.5")), "sale = %s", res.USD.SalePriceTotal)
	assert.True(t, out.Summary.USD.Insurance.Equal(d(t, "20")))
	assert.True(t, out.Summary.USD.FinancingCost.Equal(d(t, "10")))
}
