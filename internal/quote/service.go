package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-trade/meridian/internal/quote/calc"
	"github.com/meridian-trade/meridian/internal/quote/versions"
	"github.com/meridian-trade/meridian/internal/shared"
)

// ErrInvalidStatus signals a workflow transition the status machine does not
// permit, or an action attempted in the wrong status.
var ErrInvalidStatus = errors.New("invalid status transition")

// ReferenceLoader assembles the frozen reference material for one org.
type ReferenceLoader interface {
	Load(ctx context.Context, orgID int64) (calc.ReferenceSet, error)
}

// RateProvider assembles the frozen rate set for one calculation run.
type RateProvider interface {
	RateSet(ctx context.Context, quoteCurrency string, productCurrencies []string) (calc.RateSet, error)
}

// VersionStore appends calculation results as immutable versions.
type VersionStore interface {
	Snapshot(ctx context.Context, quoteID uuid.UUID, in calc.Input, out calc.Output) (versions.Version, error)
}

// Locker serialises recalculation per quote.
type Locker interface {
	Acquire(ctx context.Context, quoteID uuid.UUID) error
	Release(ctx context.Context, quoteID uuid.UUID)
}

// ApprovalSink records workflow decisions.
type ApprovalSink interface {
	Record(ctx context.Context, entry shared.ApprovalLog) error
}

// AuditSink records calculation runs.
type AuditSink interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// CalcObserver feeds engine run outcomes and durations into monitoring.
type CalcObserver interface {
	ObserveCalc(outcome string, elapsed time.Duration)
}

type Service struct {
	repo      Repository
	refs      ReferenceLoader
	rates     RateProvider
	versions  VersionStore
	locker    Locker
	approvals ApprovalSink
	audit     AuditSink
	observer  CalcObserver
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(
	repo Repository,
	refs ReferenceLoader,
	rates RateProvider,
	versionStore VersionStore,
	locker Locker,
	approvals ApprovalSink,
	audit AuditSink,
	observer CalcObserver,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		refs:      refs,
		rates:     rates,
		versions:  versionStore,
		locker:    locker,
		approvals: approvals,
		audit:     audit,
		observer:  observer,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, req CreateQuoteRequest, actorID int64) (Quote, error) {
	if req.Variables.Currency == "" {
		return Quote{}, fmt.Errorf("%w: quote currency is required", calc.ErrValidation)
	}
	products, err := mapProducts(req.Products)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		ID:        uuid.New(),
		OrgID:     req.OrgID,
		Customer:  req.Customer,
		Status:    StatusDraft,
		Variables: req.Variables,
		Products:  products,
		CreatedBy: actorID,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.GenerateNumber(ctx, req.OrgID, s.now())
		if err != nil {
			return err
		}
		q.DocNumber = number
		return repo.Create(ctx, q)
	})
	if err != nil {
		return Quote{}, err
	}
	return s.repo.Get(ctx, q.ID)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Quote, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Quote, error) {
	return s.repo.List(ctx, filter)
}

// Update replaces the editable content of a DRAFT quote. Variables and
// products feed the next calculation run; nothing recalculates here.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateQuoteRequest) (Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	if q.Status != StatusDraft {
		return Quote{}, fmt.Errorf("%w: only DRAFT quotes can be edited", ErrInvalidStatus)
	}

	if req.Customer != nil {
		q.Customer = *req.Customer
	}
	if req.Variables != nil {
		if req.Variables.Currency == "" {
			return Quote{}, fmt.Errorf("%w: quote currency is required", calc.ErrValidation)
		}
		q.Variables = *req.Variables
	}
	if req.Products != nil {
		products, err := mapProducts(*req.Products)
		if err != nil {
			return Quote{}, err
		}
		q.Products = products
	}

	if err := s.repo.UpdateContent(ctx, q); err != nil {
		return Quote{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Submit(ctx context.Context, id uuid.UUID, actorID int64, note string) (Quote, error) {
	return s.decide(ctx, id, StatusSubmitted, shared.ApprovalSubmit, actorID, note)
}

func (s *Service) Approve(ctx context.Context, id uuid.UUID, actorID int64, note string) (Quote, error) {
	return s.decide(ctx, id, StatusApproved, shared.ApprovalApprove, actorID, note)
}

func (s *Service) Reject(ctx context.Context, id uuid.UUID, actorID int64, note string) (Quote, error) {
	return s.decide(ctx, id, StatusRejected, shared.ApprovalReject, actorID, note)
}

func (s *Service) decide(ctx context.Context, id uuid.UUID, to Status, action shared.ApprovalAction, actorID int64, note string) (Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	if !CanTransition(q.Status, to) {
		return Quote{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, q.Status, to)
	}

	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return Quote{}, err
	}
	if err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  "quote",
		RefID:   id,
		ActorID: actorID,
		Action:  action,
		Note:    note,
	}); err != nil {
		s.logger.WarnContext(ctx, "approval record failed",
			slog.String("quote_id", id.String()), slog.Any("error", err))
	}

	q.Status = to
	return q, nil
}

// Calculate runs the pricing engine against the quote's current content and
// snapshots the output as the next version. The run itself is pure; this
// method does the fetching, locking and persistence around it.
func (s *Service) Calculate(ctx context.Context, id uuid.UUID, actorID int64) (versions.Version, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return versions.Version{}, err
	}
	if !q.Status.Calculable() {
		return versions.Version{}, fmt.Errorf("%w: %s quotes are frozen", ErrInvalidStatus, q.Status)
	}

	if err := s.locker.Acquire(ctx, id); err != nil {
		return versions.Version{}, err
	}
	defer s.locker.Release(ctx, id)

	refs, err := s.refs.Load(ctx, q.OrgID)
	if err != nil {
		return versions.Version{}, err
	}

	currencies := make([]string, 0, len(q.Products))
	for _, p := range q.Products {
		currencies = append(currencies, p.Currency)
	}
	rateSet, err := s.rates.RateSet(ctx, q.Variables.Currency, currencies)
	if err != nil {
		return versions.Version{}, err
	}

	in := calc.Input{
		QuoteID:   q.ID,
		Variables: q.Variables,
		Products:  q.Products,
		Refs:      refs,
		Rates:     rateSet,
	}

	started := s.now()
	out, err := calc.Run(in)
	s.observeCalc(err, s.now().Sub(started))
	if err != nil {
		return versions.Version{}, err
	}

	version, err := s.versions.Snapshot(ctx, q.ID, in, out)
	if err != nil {
		return versions.Version{}, err
	}

	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "CALCULATE",
		Entity:   "quote",
		EntityID: q.ID.String(),
		Meta: map[string]any{
			"version_no":  version.VersionNo,
			"products":    len(q.Products),
			"duration_ms": s.now().Sub(started).Milliseconds(),
		},
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed",
			slog.String("quote_id", q.ID.String()), slog.Any("error", err))
	}

	s.logger.InfoContext(ctx, "quote calculated",
		slog.String("quote_id", q.ID.String()),
		slog.Int("version_no", version.VersionNo),
		slog.Int("warnings", len(version.Summary.Warnings)))
	return version, nil
}

func (s *Service) observeCalc(err error, elapsed time.Duration) {
	if s.observer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.observer.ObserveCalc(outcome, elapsed)
}

func mapProducts(payloads []ProductPayload) ([]calc.Product, error) {
	products := make([]calc.Product, 0, len(payloads))
	for _, p := range payloads {
		if !p.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: product %q quantity must be positive", calc.ErrValidation, p.Name)
		}
		if p.BasePrice.IsNegative() {
			return nil, fmt.Errorf("%w: product %q base price cannot be negative", calc.ErrValidation, p.Name)
		}
		if p.WeightKg.IsNegative() {
			return nil, fmt.Errorf("%w: product %q weight cannot be negative", calc.ErrValidation, p.Name)
		}
		pickup := p.PickupCountry
		if pickup == "" {
			pickup = p.SupplierCountry
		}
		products = append(products, calc.Product{
			ID:              uuid.New(),
			Name:            p.Name,
			BasePrice:       p.BasePrice,
			Currency:        p.Currency,
			Quantity:        p.Quantity,
			WeightKg:        p.WeightKg,
			CustomsCode:     p.CustomsCode,
			SupplierCountry: p.SupplierCountry,
			PickupCountry:   pickup,
			DeliveryDate:    p.DeliveryDate,
			Overrides:       p.Overrides,
		})
	}
	return products, nil
}
