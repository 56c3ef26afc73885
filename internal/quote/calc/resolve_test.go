package calc

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLayering(t *testing.T) {
	vars := zeroedVariables(t)
	vars.MarkupPct = pd(t, "10")
	vars.ForexRiskPct = nil
	vars.FinancingAnnualPct = nil
	vars.CustomsPaymentDueDays = nil

	org := OrgSettings{
		ForexRiskPct:           pd(t, "1.5"),
		AnnualLoanInterestPct:  pd(t, "12"),
		CustomsPaymentTermDays: pi(21),
	}

	p := product(t, "widget", "100", "1")
	p.Overrides.MarkupPct = pd(t, "25")

	eff, err := Resolve(vars, p, org)
	require.NoError(t, err)

	// Product override beats the quote value.
	assert.True(t, eff.MarkupPct.Equal(d(t, "25")))
	// Quote value used where no override exists.
	assert.True(t, eff.SupplierDiscountPct.IsZero())
	// Organisation defaults fill the bottom layer.
	assert.True(t, eff.ForexRiskPct.Equal(d(t, "1.5")))
	assert.True(t, eff.FinancingAnnualPct.Equal(d(t, "12")))
	assert.Equal(t, 21, eff.CustomsPaymentDueDays)
}

func TestResolveAllOrNothing(t *testing.T) {
	vars := QuoteVariables{Currency: "USD", SellingEntity: "MERIDIAN-US"}
	p := product(t, "widget", "100", "1")

	_, err := Resolve(vars, p, OrgSettings{})
	var missing *MissingVariablesError
	require.True(t, errors.As(err, &missing))

	// Every unresolved field is reported, not just the first.
	assert.Contains(t, missing.Fields, "markup_pct")
	assert.Contains(t, missing.Fields, "supplier_discount_pct")
	assert.Contains(t, missing.Fields, "forex_risk_pct")
	assert.Contains(t, missing.Fields, "supplier_payment_term_days")
	assert.Greater(t, len(missing.Fields), 10)
	assert.Contains(t, err.Error(), "markup_pct")
}

func TestResolveTransitCommissionConditional(t *testing.T) {
	vars := zeroedVariables(t)
	p := product(t, "widget", "100", "1")

	// Not a transit deal: the commission rate is optional.
	eff, err := Resolve(vars, p, OrgSettings{})
	require.NoError(t, err)
	assert.True(t, eff.TransitPct.IsZero())

	// Transit deal without a rate is an unresolved variable.
	vars.TransitDeal = true
	_, err = Resolve(vars, p, OrgSettings{})
	var missing *MissingVariablesError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"transit_pct"}, missing.Fields)
}

func TestResolveDoesNotMutateInputs(t *testing.T) {
	vars := zeroedVariables(t)
	markup := d(t, "10")
	vars.MarkupPct = &markup

	p := product(t, "widget", "100", "1")
	p.Overrides.MarkupPct = pd(t, "40")

	_, err := Resolve(vars, p, OrgSettings{})
	require.NoError(t, err)
	assert.True(t, vars.MarkupPct.Equal(decimal.NewFromInt(10)))
	assert.True(t, p.Overrides.MarkupPct.Equal(decimal.NewFromInt(40)))
}

func TestResolveBoolOverrides(t *testing.T) {
	vars := zeroedVariables(t)
	vars.TransitDeal = false
	vars.TransitPct = pd(t, "2")

	p := product(t, "widget", "100", "1")
	transit := true
	p.Overrides.TransitDeal = &transit

	eff, err := Resolve(vars, p, OrgSettings{})
	require.NoError(t, err)
	assert.True(t, eff.TransitDeal)
	assert.True(t, eff.TransitPct.Equal(d(t, "2")))
}

func TestResolveSurchargesDefaultToZero(t *testing.T) {
	vars := zeroedVariables(t)
	p := product(t, "widget", "100", "1")

	// Never entered anywhere: zero, not a resolution failure.
	eff, err := Resolve(vars, p, OrgSettings{})
	require.NoError(t, err)
	assert.True(t, eff.InsurancePct.IsZero())
	assert.True(t, eff.BankCommissionPct.IsZero())
	assert.True(t, eff.WarrantyReservePct.IsZero())

	// The usual layering still applies when values exist.
	vars.InsurancePct = pd(t, "2")
	p.Overrides.InsurancePct = pd(t, "3.5")
	p.Overrides.BankCommissionPct = pd(t, "0.8")

	eff, err = Resolve(vars, p, OrgSettings{})
	require.NoError(t, err)
	assert.True(t, eff.InsurancePct.Equal(d(t, "3.5")))
	assert.True(t, eff.BankCommissionPct.Equal(d(t, "0.8")))
}
