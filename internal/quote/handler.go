package quote

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-trade/meridian/internal/platform/httpx"
	"github.com/meridian-trade/meridian/internal/quote/calc"
	"github.com/meridian-trade/meridian/internal/quote/versions"
	"github.com/meridian-trade/meridian/internal/shared"
)

// Handler exposes the quote lifecycle. The actor comes from the X-Actor-ID
// header until the auth collaborator lands in front of this service.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	versions *versions.Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, versionSvc *versions.Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		versions: versionSvc,
		validate: validator.New(),
	}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/quotes", h.create)
	r.Get("/quotes", h.list)
	r.Get("/quotes/{quoteID}", h.get)
	r.Put("/quotes/{quoteID}", h.update)
	r.Post("/quotes/{quoteID}/submit", h.submit)
	r.Post("/quotes/{quoteID}/approve", h.approve)
	r.Post("/quotes/{quoteID}/reject", h.reject)
	r.Post("/quotes/{quoteID}/calculate", h.calculate)
	r.Get("/quotes/{quoteID}/versions", h.listVersions)
	r.Get("/quotes/{quoteID}/versions/{versionNo}", h.getVersion)
	r.Post("/quotes/{quoteID}/versions/{versionNo}/export", h.exportVersion)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	q, err := h.service.Create(r.Context(), req, actorID(r))
	if err != nil {
		h.respondError(w, r, "create quote", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Status: Status(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("org_id"); raw != "" {
		id, err := shared.ParseID(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "org_id must be a positive integer")
			return
		}
		filter.OrgID = id
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	quotes, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, "list quotes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quotes)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	q, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req UpdateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	q, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondError(w, r, "update quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.decision(w, r, h.service.Submit)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.decision(w, r, h.service.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.decision(w, r, h.service.Reject)
}

type decisionFn func(ctx context.Context, id uuid.UUID, actorID int64, note string) (Quote, error)

func (h *Handler) decision(w http.ResponseWriter, r *http.Request, fn decisionFn) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	actor := actorID(r)
	if actor == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Missing Actor", "X-Actor-ID header is required")
		return
	}
	var req DecisionRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
	}
	q, err := fn(r.Context(), id, actor, req.Note)
	if err != nil {
		h.respondError(w, r, "decide quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	version, err := h.service.Calculate(r.Context(), id, actorID(r))
	if err != nil {
		h.respondError(w, r, "calculate quote", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, version)
}

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	list, err := h.versions.List(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "list versions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) getVersion(w http.ResponseWriter, r *http.Request) {
	id, no, ok := h.versionRef(w, r)
	if !ok {
		return
	}
	version, err := h.versions.Get(r.Context(), id, no)
	if err != nil {
		h.respondError(w, r, "get version", err)
		return
	}
	httpx.JSON(w, http.StatusOK, version)
}

func (h *Handler) exportVersion(w http.ResponseWriter, r *http.Request) {
	id, no, ok := h.versionRef(w, r)
	if !ok {
		return
	}
	if err := h.versions.MarkExported(r.Context(), id, no); err != nil {
		h.respondError(w, r, "export version", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"quote_id": id, "version_no": no, "exported": true})
}

func (h *Handler) quoteID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "quoteID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "quote id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) versionRef(w http.ResponseWriter, r *http.Request) (uuid.UUID, int, bool) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return uuid.Nil, 0, false
	}
	no, err := strconv.Atoi(chi.URLParam(r, "versionNo"))
	if err != nil || no < 1 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Version", "version number must be a positive integer")
		return uuid.Nil, 0, false
	}
	return id, no, true
}

func actorID(r *http.Request) int64 {
	id, err := shared.ParseID(r.Header.Get("X-Actor-ID"))
	if err != nil {
		return 0
	}
	return id
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var missing *calc.MissingVariablesError
	switch {
	case errors.As(err, &missing):
		httpx.FieldProblem(w, http.StatusUnprocessableEntity, "Missing Variables",
			"calculation needs values for every required variable", missing.Fields)
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Invalid Status", err.Error())
	case errors.Is(err, shared.ErrCalculationLocked):
		httpx.Problem(w, http.StatusConflict, "Calculation In Progress", err.Error())
	case errors.Is(err, shared.ErrVersionConflict):
		httpx.Problem(w, http.StatusConflict, "Version Conflict", err.Error())
	case errors.Is(err, calc.ErrValidation):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, calc.ErrReferenceData):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Reference Data Incomplete", err.Error())
	default:
		h.logger.ErrorContext(r.Context(), op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
