package refdata

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/platform/httpx"
	"github.com/meridian-trade/meridian/internal/shared"
)

// Handler exposes the admin surface for reference tables. Permission
// enforcement sits with the surrounding auth layer.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a reference-data handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes attaches reference-data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/refdata/countries", h.listCountries)
	r.Get("/refdata/countries/{code}", h.getCountry)
	r.Put("/refdata/countries/{code}", h.putCountry)
	r.Get("/refdata/orgs/{orgID}/settings", h.getOrgSettings)
	r.Put("/refdata/orgs/{orgID}/settings", h.putOrgSettings)
}

type countryRequest struct {
	VATRatePct        decimal.Decimal            `json:"vat_rate_pct"`
	InternalMarkupPct map[string]decimal.Decimal `json:"internal_markup_pct" validate:"required,min=1"`
}

type orgSettingsRequest struct {
	ForexRiskPct           decimal.Decimal            `json:"forex_risk_pct"`
	FinancingCommissionPct decimal.Decimal            `json:"financing_commission_pct"`
	AnnualLoanInterestPct  decimal.Decimal            `json:"annual_loan_interest_pct"`
	CustomsPaymentTermDays int                        `json:"customs_payment_term_days" validate:"gte=0"`
	TaxRatePct             map[string]decimal.Decimal `json:"tax_rate_pct" validate:"required,min=1"`
	VATCutoverAt           time.Time                  `json:"vat_cutover_at" validate:"required"`
	VATBeforePct           decimal.Decimal            `json:"vat_before_pct"`
	VATAfterPct            decimal.Decimal            `json:"vat_after_pct"`
}

func (h *Handler) listCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.service.Countries(r.Context())
	if err != nil {
		h.logger.Error("list countries", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, countries)
}

func (h *Handler) getCountry(w http.ResponseWriter, r *http.Request) {
	country, err := h.service.Country(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown country")
			return
		}
		h.logger.Error("get country", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, country)
}

func (h *Handler) putCountry(w http.ResponseWriter, r *http.Request) {
	var req countryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rate := CountryRate{
		Country:           chi.URLParam(r, "code"),
		VATRatePct:        req.VATRatePct,
		InternalMarkupPct: req.InternalMarkupPct,
	}
	if err := h.service.SaveCountry(r.Context(), rate); err != nil {
		h.logger.Error("save country", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Save Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, rate)
}

func (h *Handler) getOrgSettings(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseOrgID(w, r)
	if !ok {
		return
	}
	settings, err := h.service.OrgSettings(r.Context(), orgID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "organisation has no settings")
			return
		}
		h.logger.Error("get org settings", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) putOrgSettings(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseOrgID(w, r)
	if !ok {
		return
	}
	var req orgSettingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	settings := OrgSettings{
		OrgID:                  orgID,
		ForexRiskPct:           req.ForexRiskPct,
		FinancingCommissionPct: req.FinancingCommissionPct,
		AnnualLoanInterestPct:  req.AnnualLoanInterestPct,
		CustomsPaymentTermDays: req.CustomsPaymentTermDays,
		TaxRatePct:             req.TaxRatePct,
		VATCutoverAt:           req.VATCutoverAt,
		VATBeforePct:           req.VATBeforePct,
		VATAfterPct:            req.VATAfterPct,
	}
	if err := h.service.SaveOrgSettings(r.Context(), settings); err != nil {
		h.logger.Error("save org settings", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Save Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func parseOrgID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := shared.ParseID(chi.URLParam(r, "orgID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "org id must be a positive integer")
		return 0, false
	}
	return id, true
}
