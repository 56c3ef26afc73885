package refdata

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-trade/meridian/internal/quote/calc"
	"github.com/meridian-trade/meridian/internal/shared"
)

type fakeRepo struct {
	countries []CountryRate
	settings  map[int64]OrgSettings
}

func (f *fakeRepo) ListCountries(context.Context) ([]CountryRate, error) {
	return f.countries, nil
}

func (f *fakeRepo) GetCountry(_ context.Context, code string) (CountryRate, error) {
	for _, c := range f.countries {
		if c.Country == code {
			return c, nil
		}
	}
	return CountryRate{}, shared.ErrNotFound
}

func (f *fakeRepo) UpsertCountry(_ context.Context, rate CountryRate) error {
	f.countries = append(f.countries, rate)
	return nil
}

func (f *fakeRepo) GetOrgSettings(_ context.Context, orgID int64) (OrgSettings, error) {
	s, ok := f.settings[orgID]
	if !ok {
		return OrgSettings{}, shared.ErrNotFound
	}
	return s, nil
}

func (f *fakeRepo) UpsertOrgSettings(_ context.Context, s OrgSettings) error {
	f.settings[s.OrgID] = s
	return nil
}

func dec(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func TestLoadAssemblesReferenceSet(t *testing.T) {
	repo := &fakeRepo{
		countries: []CountryRate{{
			Country:           "DE",
			VATRatePct:        dec("19"),
			InternalMarkupPct: map[string]decimal.Decimal{"MERIDIAN-EU": dec("3")},
		}},
		settings: map[int64]OrgSettings{1: {
			OrgID:                  1,
			ForexRiskPct:           dec("1.5"),
			FinancingCommissionPct: dec("0.5"),
			AnnualLoanInterestPct:  dec("14"),
			CustomsPaymentTermDays: 21,
			TaxRatePct:             map[string]decimal.Decimal{"MERIDIAN-EU": dec("25")},
			VATCutoverAt:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			VATBeforePct:           dec("20"),
			VATAfterPct:            dec("22"),
		}},
	}
	svc := NewService(repo)

	refs, err := svc.Load(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, refs.Validate())

	de, err := refs.Country("DE")
	require.NoError(t, err)
	assert.True(t, de.VATRatePct.Equal(dec("19")))

	require.NotNil(t, refs.Org.ForexRiskPct)
	assert.True(t, refs.Org.ForexRiskPct.Equal(dec("1.5")))
	require.NotNil(t, refs.Org.CustomsPaymentTermDays)
	assert.Equal(t, 21, *refs.Org.CustomsPaymentTermDays)
	assert.True(t, refs.Org.VATCutover.RateFor(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)).Equal(dec("20")))
}

func TestLoadMissingOrgIsFatal(t *testing.T) {
	svc := NewService(&fakeRepo{settings: map[int64]OrgSettings{}})
	_, err := svc.Load(context.Background(), 42)
	require.ErrorIs(t, err, calc.ErrReferenceData)
}

func TestSaveValidation(t *testing.T) {
	repo := &fakeRepo{settings: map[int64]OrgSettings{}}
	svc := NewService(repo)

	require.Error(t, svc.SaveCountry(context.Background(), CountryRate{}))
	require.Error(t, svc.SaveCountry(context.Background(), CountryRate{Country: "DE", VATRatePct: dec("-1")}))

	require.Error(t, svc.SaveOrgSettings(context.Background(), OrgSettings{OrgID: 1}))
	require.Error(t, svc.SaveOrgSettings(context.Background(), OrgSettings{
		OrgID:        1,
		VATCutoverAt: time.Now(),
	}))
}
