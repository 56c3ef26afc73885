package refdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/shared"
)

// Repository provides access to the reference tables.
type Repository interface {
	ListCountries(ctx context.Context) ([]CountryRate, error)
	GetCountry(ctx context.Context, country string) (CountryRate, error)
	UpsertCountry(ctx context.Context, rate CountryRate) error
	GetOrgSettings(ctx context.Context, orgID int64) (OrgSettings, error)
	UpsertOrgSettings(ctx context.Context, settings OrgSettings) error
}

type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a reference-data repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

func (r *repo) ListCountries(ctx context.Context) ([]CountryRate, error) {
	query := `SELECT country, vat_rate_pct::text, internal_markups, updated_at
	          FROM country_rates ORDER BY country`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CountryRate
	for rows.Next() {
		rate, err := scanCountry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rate)
	}
	return result, rows.Err()
}

func (r *repo) GetCountry(ctx context.Context, country string) (CountryRate, error) {
	query := `SELECT country, vat_rate_pct::text, internal_markups, updated_at
	          FROM country_rates WHERE country = $1`
	row := r.db.QueryRow(ctx, query, country)
	rate, err := scanCountry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return CountryRate{}, shared.ErrNotFound
	}
	return rate, err
}

func (r *repo) UpsertCountry(ctx context.Context, rate CountryRate) error {
	markups, err := json.Marshal(rate.InternalMarkupPct)
	if err != nil {
		return fmt.Errorf("marshal markups: %w", err)
	}
	query := `INSERT INTO country_rates (country, vat_rate_pct, internal_markups, updated_at)
	          VALUES ($1, $2::numeric, $3, $4)
	          ON CONFLICT (country) DO UPDATE
	          SET vat_rate_pct = EXCLUDED.vat_rate_pct,
	              internal_markups = EXCLUDED.internal_markups,
	              updated_at = EXCLUDED.updated_at`
	_, err = r.db.Exec(ctx, query, rate.Country, rate.VATRatePct.String(), markups, time.Now().UTC())
	return err
}

func (r *repo) GetOrgSettings(ctx context.Context, orgID int64) (OrgSettings, error) {
	query := `SELECT org_id, forex_risk_pct::text, financing_commission_pct::text,
	                 annual_loan_interest_pct::text, customs_payment_term_days,
	                 tax_rates, vat_cutover_at, vat_before_pct::text, vat_after_pct::text, updated_at
	          FROM org_settings WHERE org_id = $1`
	var (
		s                                      OrgSettings
		forex, commission, loan, before, after string
		taxJSON                                []byte
	)
	err := r.db.QueryRow(ctx, query, orgID).Scan(
		&s.OrgID, &forex, &commission, &loan, &s.CustomsPaymentTermDays,
		&taxJSON, &s.VATCutoverAt, &before, &after, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrgSettings{}, shared.ErrNotFound
	}
	if err != nil {
		return OrgSettings{}, err
	}
	if s.ForexRiskPct, err = decimal.NewFromString(forex); err != nil {
		return OrgSettings{}, err
	}
	if s.FinancingCommissionPct, err = decimal.NewFromString(commission); err != nil {
		return OrgSettings{}, err
	}
	if s.AnnualLoanInterestPct, err = decimal.NewFromString(loan); err != nil {
		return OrgSettings{}, err
	}
	if s.VATBeforePct, err = decimal.NewFromString(before); err != nil {
		return OrgSettings{}, err
	}
	if s.VATAfterPct, err = decimal.NewFromString(after); err != nil {
		return OrgSettings{}, err
	}
	if err := json.Unmarshal(taxJSON, &s.TaxRatePct); err != nil {
		return OrgSettings{}, fmt.Errorf("unmarshal tax rates: %w", err)
	}
	return s, nil
}

func (r *repo) UpsertOrgSettings(ctx context.Context, s OrgSettings) error {
	taxJSON, err := json.Marshal(s.TaxRatePct)
	if err != nil {
		return fmt.Errorf("marshal tax rates: %w", err)
	}
	query := `INSERT INTO org_settings
	              (org_id, forex_risk_pct, financing_commission_pct, annual_loan_interest_pct,
	               customs_payment_term_days, tax_rates, vat_cutover_at, vat_before_pct, vat_after_pct, updated_at)
	          VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5, $6, $7, $8::numeric, $9::numeric, $10)
	          ON CONFLICT (org_id) DO UPDATE
	          SET forex_risk_pct = EXCLUDED.forex_risk_pct,
	              financing_commission_pct = EXCLUDED.financing_commission_pct,
	              annual_loan_interest_pct = EXCLUDED.annual_loan_interest_pct,
	              customs_payment_term_days = EXCLUDED.customs_payment_term_days,
	              tax_rates = EXCLUDED.tax_rates,
	              vat_cutover_at = EXCLUDED.vat_cutover_at,
	              vat_before_pct = EXCLUDED.vat_before_pct,
	              vat_after_pct = EXCLUDED.vat_after_pct,
	              updated_at = EXCLUDED.updated_at`
	_, err = r.db.Exec(ctx, query,
		s.OrgID, s.ForexRiskPct.String(), s.FinancingCommissionPct.String(),
		s.AnnualLoanInterestPct.String(), s.CustomsPaymentTermDays, taxJSON,
		s.VATCutoverAt, s.VATBeforePct.String(), s.VATAfterPct.String(), time.Now().UTC())
	return err
}

func scanCountry(row pgx.Row) (CountryRate, error) {
	var (
		rate        CountryRate
		vat         string
		markupsJSON []byte
	)
	if err := row.Scan(&rate.Country, &vat, &markupsJSON, &rate.UpdatedAt); err != nil {
		return CountryRate{}, err
	}
	var err error
	if rate.VATRatePct, err = decimal.NewFromString(vat); err != nil {
		return CountryRate{}, err
	}
	if err := json.Unmarshal(markupsJSON, &rate.InternalMarkupPct); err != nil {
		return CountryRate{}, fmt.Errorf("unmarshal markups: %w", err)
	}
	return rate, nil
}
