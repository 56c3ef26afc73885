package calc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// MissingVariablesError reports every required variable that stayed
// unresolved after all three merge layers were consulted. Resolution is
// all-or-nothing: a single missing field blocks the whole calculation.
type MissingVariablesError struct {
	Fields []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("calc: unresolved variables: %s", strings.Join(e.Fields, ", "))
}

// Resolve merges organisation defaults, quote-level variables and product
// overrides into one Effective set for the product. It is side-effect free
// and never mutates its inputs.
func Resolve(vars QuoteVariables, product Product, org OrgSettings) (Effective, error) {
	var missing []string

	pickDec := func(field string, override, quote, orgDefault *decimal.Decimal) decimal.Decimal {
		switch {
		case override != nil:
			return *override
		case quote != nil:
			return *quote
		case orgDefault != nil:
			return *orgDefault
		}
		missing = append(missing, field)
		return decimal.Zero
	}
	// Surcharge fields that legitimately default to zero when nobody
	// entered them anywhere.
	pickOpt := func(override, quote *decimal.Decimal) decimal.Decimal {
		switch {
		case override != nil:
			return *override
		case quote != nil:
			return *quote
		}
		return decimal.Zero
	}
	pickInt := func(field string, override, quote, orgDefault *int) int {
		switch {
		case override != nil:
			return *override
		case quote != nil:
			return *quote
		case orgDefault != nil:
			return *orgDefault
		}
		missing = append(missing, field)
		return 0
	}

	eff := Effective{
		Currency:      vars.Currency,
		DeliveryTerms: vars.DeliveryTerms,
		SellingEntity: vars.SellingEntity,
		TransitDeal:   vars.TransitDeal,
		RestoreVAT:    vars.RestoreVAT,
	}
	if product.Overrides.SellingEntity != nil {
		eff.SellingEntity = *product.Overrides.SellingEntity
	}
	if product.Overrides.TransitDeal != nil {
		eff.TransitDeal = *product.Overrides.TransitDeal
	}
	if product.Overrides.RestoreVAT != nil {
		eff.RestoreVAT = *product.Overrides.RestoreVAT
	}
	if eff.Currency == "" {
		missing = append(missing, "currency")
	}
	if eff.SellingEntity == "" {
		missing = append(missing, "selling_entity")
	}

	ov := product.Overrides
	eff.MarkupPct = pickDec("markup_pct", ov.MarkupPct, vars.MarkupPct, nil)
	eff.SupplierDiscountPct = pickDec("supplier_discount_pct", ov.SupplierDiscountPct, vars.SupplierDiscountPct, nil)
	eff.ImportTariffPct = pickDec("import_tariff_pct", ov.ImportTariffPct, vars.ImportTariffPct, nil)
	eff.ExcisePct = pickDec("excise_pct", ov.ExcisePct, vars.ExcisePct, nil)
	eff.ImportVATPct = pickDec("import_vat_pct", ov.ImportVATPct, vars.ImportVATPct, nil)
	eff.ClientAdvancePct = pickDec("client_advance_pct", ov.ClientAdvancePct, vars.ClientAdvancePct, nil)
	eff.SupplierAdvancePct = pickDec("supplier_advance_pct", ov.SupplierAdvancePct, vars.SupplierAdvancePct, nil)
	eff.CreditAnnualPct = pickDec("credit_annual_pct", ov.CreditAnnualPct, vars.CreditAnnualPct, nil)
	eff.FinancingAnnualPct = pickDec("financing_annual_pct", ov.FinancingAnnualPct, vars.FinancingAnnualPct, org.AnnualLoanInterestPct)
	eff.DMFeePct = pickDec("dm_fee_pct", ov.DMFeePct, vars.DMFeePct, nil)
	eff.ForexRiskPct = pickDec("forex_risk_pct", ov.ForexRiskPct, vars.ForexRiskPct, org.ForexRiskPct)
	eff.FinAgentPct = pickDec("fin_agent_pct", ov.FinAgentPct, vars.FinAgentPct, nil)

	eff.InsurancePct = pickOpt(ov.InsurancePct, vars.InsurancePct)
	eff.BankCommissionPct = pickOpt(ov.BankCommissionPct, vars.BankCommissionPct)
	eff.WarrantyReservePct = pickOpt(ov.WarrantyReservePct, vars.WarrantyReservePct)

	eff.SupplierPaymentTermDays = pickInt("supplier_payment_term_days", ov.SupplierPaymentTermDays, vars.SupplierPaymentTermDays, nil)
	eff.CustomsPaymentDueDays = pickInt("customs_payment_due_days", ov.CustomsPaymentDueDays, vars.CustomsPaymentDueDays, org.CustomsPaymentTermDays)
	eff.CreditTermDays = pickInt("credit_term_days", ov.CreditTermDays, vars.CreditTermDays, nil)

	// Transit commission only matters on transit deals, so it is the one
	// conditionally required field.
	if eff.TransitDeal {
		eff.TransitPct = pickDec("transit_pct", ov.TransitPct, vars.TransitPct, nil)
	} else if ov.TransitPct != nil {
		eff.TransitPct = *ov.TransitPct
	} else if vars.TransitPct != nil {
		eff.TransitPct = *vars.TransitPct
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return Effective{}, &MissingVariablesError{Fields: missing}
	}
	return eff, nil
}
