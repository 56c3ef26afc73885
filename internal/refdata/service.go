package refdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-trade/meridian/internal/quote/calc"
	"github.com/meridian-trade/meridian/internal/shared"
)

// Service exposes reference data to the calculation layer and the admin
// surface.
type Service struct {
	repo Repository
}

// NewService constructs a reference-data service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Load assembles the complete read-only reference set for one run. Missing
// organisation settings are fatal: the engine never substitutes defaults
// for financial rates.
func (s *Service) Load(ctx context.Context, orgID int64) (calc.ReferenceSet, error) {
	if s == nil || s.repo == nil {
		return calc.ReferenceSet{}, fmt.Errorf("refdata service not initialised")
	}
	org, err := s.repo.GetOrgSettings(ctx, orgID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return calc.ReferenceSet{}, fmt.Errorf("%w: organisation %d has no settings", calc.ErrReferenceData, orgID)
		}
		return calc.ReferenceSet{}, fmt.Errorf("load org settings: %w", err)
	}
	countries, err := s.repo.ListCountries(ctx)
	if err != nil {
		return calc.ReferenceSet{}, fmt.Errorf("load country rates: %w", err)
	}

	refs := calc.ReferenceSet{
		Countries: make(map[string]calc.CountryRates, len(countries)),
		Org: calc.OrgSettings{
			ForexRiskPct:           &org.ForexRiskPct,
			FinancingCommissionPct: org.FinancingCommissionPct,
			AnnualLoanInterestPct:  &org.AnnualLoanInterestPct,
			CustomsPaymentTermDays: &org.CustomsPaymentTermDays,
			TaxRatePct:             org.TaxRatePct,
			VATCutover: calc.VATCutover{
				At:        org.VATCutoverAt,
				BeforePct: org.VATBeforePct,
				AfterPct:  org.VATAfterPct,
			},
		},
	}
	for _, c := range countries {
		refs.Countries[c.Country] = calc.CountryRates{
			VATRatePct:        c.VATRatePct,
			InternalMarkupPct: c.InternalMarkupPct,
		}
	}
	return refs, nil
}

// Countries lists the supplier-country table.
func (s *Service) Countries(ctx context.Context) ([]CountryRate, error) {
	return s.repo.ListCountries(ctx)
}

// Country fetches one supplier-country row.
func (s *Service) Country(ctx context.Context, code string) (CountryRate, error) {
	return s.repo.GetCountry(ctx, code)
}

// SaveCountry upserts a supplier-country row.
func (s *Service) SaveCountry(ctx context.Context, rate CountryRate) error {
	if rate.Country == "" {
		return fmt.Errorf("country code is required")
	}
	if rate.VATRatePct.IsNegative() {
		return fmt.Errorf("vat rate must not be negative")
	}
	return s.repo.UpsertCountry(ctx, rate)
}

// OrgSettings fetches the organisation settings row.
func (s *Service) OrgSettings(ctx context.Context, orgID int64) (OrgSettings, error) {
	return s.repo.GetOrgSettings(ctx, orgID)
}

// SaveOrgSettings upserts the organisation settings row.
func (s *Service) SaveOrgSettings(ctx context.Context, settings OrgSettings) error {
	if settings.OrgID <= 0 {
		return fmt.Errorf("org id is required")
	}
	if settings.VATCutoverAt.IsZero() {
		return fmt.Errorf("vat cutover date is required")
	}
	if len(settings.TaxRatePct) == 0 {
		return fmt.Errorf("at least one jurisdiction tax rate is required")
	}
	return s.repo.UpsertOrgSettings(ctx, settings)
}
