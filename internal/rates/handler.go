package rates

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/platform/httpx"
)

// Handler exposes rate lookup and manual overrides.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a rates handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches rate routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/rates/{currency}", h.latest)
	r.Post("/rates/{currency}/override", h.override)
}

type overrideRequest struct {
	Rate decimal.Decimal `json:"rate" validate:"required"`
}

func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Latest(r.Context(), chi.URLParam(r, "currency"))
	if err != nil {
		h.logger.Warn("rate lookup failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Rate Unavailable", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) override(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	snap, err := h.service.Override(r.Context(), chi.URLParam(r, "currency"), req.Rate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Override Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, snap)
}
