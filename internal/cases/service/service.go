// Package service is the case workflow engine. Every mutating command runs
// through one Execute callback on the case store, which serializes writers per
// case and commits the mutation together with its audit events. The terminal
// check runs first and in one place, so a decided case rejects every command
// with invalid_state before any entity-level rule is consulted.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kycreview/internal/cases/content"
	"kycreview/internal/cases/idempotency"
	"kycreview/internal/cases/ingestion"
	casemetrics "kycreview/internal/cases/metrics"
	"kycreview/internal/cases/models"
	dErrors "kycreview/pkg/domain-errors"
	audit "kycreview/pkg/platform/audit"
	"kycreview/pkg/platform/sentinel"
	"kycreview/pkg/requestcontext"
)

const defaultReplayTTL = 24 * time.Hour

type CaseStore interface {
	Create(ctx context.Context, c *models.Case, fn func(ctx context.Context) error) error
	FindByID(ctx context.Context, caseID string) (*models.Case, error)
	List(ctx context.Context, status models.CaseStatus) ([]*models.Case, error)
	Execute(ctx context.Context, caseID string, fn func(ctx context.Context, c *models.Case) error) (*models.Case, error)
}

// DocumentGate validates and classifies uploaded files.
type DocumentGate interface {
	IngestBatch(ctx context.Context, files []ingestion.File) []ingestion.Outcome
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates the case lifecycle and its review sub-workflows.
type Service struct {
	cases          CaseStore
	gate           DocumentGate
	idempotency    idempotency.Store
	contents       content.Store
	auditPublisher AuditPublisher
	auditReader    audit.Reader
	logger         *slog.Logger
	metrics        *casemetrics.Metrics
	tracer         trace.Tracer
	replayTTL      time.Duration
	newCaseID      func() string
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditPublisher sets the fail-closed audit sink. Events are emitted
// inside the case transaction.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithAuditReader enables AuditTrail.
func WithAuditReader(reader audit.Reader) Option {
	return func(s *Service) {
		s.auditReader = reader
	}
}

func WithMetrics(m *casemetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithIdempotencyStore replaces the in-memory upload replay store.
func WithIdempotencyStore(store idempotency.Store) Option {
	return func(s *Service) {
		s.idempotency = store
	}
}

// WithContentStore keeps uploaded document bytes for preview and OCR.
// Without one, only document metadata is recorded.
func WithContentStore(store content.Store) Option {
	return func(s *Service) {
		s.contents = store
	}
}

// WithReplayTTL sets how long a completed upload can be replayed.
func WithReplayTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.replayTTL = ttl
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithCaseIDGenerator replaces the default "C-XXXXXXXX" case ids.
func WithCaseIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newCaseID = fn
	}
}

// New constructs a Service.
func New(cases CaseStore, gate DocumentGate, opts ...Option) *Service {
	s := &Service{
		cases:     cases,
		gate:      gate,
		replayTTL: defaultReplayTTL,
		newCaseID: func() string {
			return "C-" + strings.ToUpper(uuid.NewString()[:8])
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.idempotency == nil {
		s.idempotency = idempotency.NewInMemory()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("kycreview/internal/cases/service")
	}
	return s
}

// mutate runs fn on a locked working copy of the case. The terminal guard
// runs before fn so decided cases are immutable for every command.
func (s *Service) mutate(ctx context.Context, caseID string, fn func(ctx context.Context, c *models.Case, now time.Time) error) (*models.Case, error) {
	if err := requireCaseID(caseID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	updated, err := s.cases.Execute(ctx, caseID, func(ctx context.Context, c *models.Case) error {
		if err := c.RequireOpen(); err != nil {
			return err
		}
		return fn(ctx, c, now)
	})
	if err != nil {
		return nil, wrapCaseErr(err, caseID)
	}
	return updated, nil
}

// observe starts a span for op and returns a finisher that records latency,
// failures and span status.
func (s *Service) observe(ctx context.Context, op, caseID string) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "cases."+op, trace.WithAttributes(
		attribute.String("case.id", caseID),
	))
	return ctx, func(err error) {
		code := ""
		if err != nil {
			code = string(dErrors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, code)
		}
		span.End()
		s.metrics.ObserveOperation(op, time.Since(start), code)
	}
}

// emit writes an audit event. Publisher failures abort the surrounding
// command.
func (s *Service) emit(ctx context.Context, action audit.AuditEvent, caseID string, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	event.Action = string(action)
	event.CaseID = caseID
	event.Timestamp = requestcontext.Now(ctx)
	event.ActorID = requestcontext.ActorID(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) logStatusChange(ctx context.Context, caseID string, from, to models.CaseStatus) {
	if from == to {
		return
	}
	s.metrics.IncStatusChange(string(from), string(to))
	s.logger.InfoContext(ctx, "case status changed",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", caseID,
		"from", from,
		"to", to,
	)
}

func requireCaseID(caseID string) error {
	if strings.TrimSpace(caseID) == "" {
		return dErrors.New(dErrors.CodeValidation, "case id is required")
	}
	return nil
}

// wrapCaseErr translates store sentinels into domain errors. Domain errors
// raised inside callbacks pass through unchanged.
func wrapCaseErr(err error, caseID string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "case %s not found", caseID)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Newf(dErrors.CodeConflict, "case %s was modified concurrently", caseID)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "case operation timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "case store failure")
	}
}
