package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"kycreview/internal/cases/models"
	dErrors "kycreview/pkg/domain-errors"
	audit "kycreview/pkg/platform/audit"
	"kycreview/pkg/platform/sentinel"
	"kycreview/pkg/requestcontext"
)

// NewCaseRequest carries intake data for a new case.
type NewCaseRequest struct {
	ID             string
	Customer       models.Customer
	RiskScore      float64
	Checks         []models.Check
	BankStatements []models.BankStatement
	OccupationForm *models.OccupationForm
}

// CreateCase opens a case in Intake. Bank statements start in Pending Review;
// an occupation form is required exactly when the customer is a wealth customer.
func (s *Service) CreateCase(ctx context.Context, req NewCaseRequest) (c *models.Case, err error) {
	caseID := strings.TrimSpace(req.ID)
	if caseID == "" {
		caseID = s.newCaseID()
	}
	ctx, done := s.observe(ctx, "create_case", caseID)
	defer func() { done(err) }()

	statements := make([]models.BankStatement, len(req.BankStatements))
	for i, stmt := range req.BankStatements {
		statements[i] = stmt.Clone()
		if statements[i].ID == "" {
			statements[i].ID = "BS-" + strings.ToUpper(uuid.NewString()[:8])
		}
	}

	c, err = models.NewCase(caseID, req.Customer, req.RiskScore, req.Checks, statements, req.OccupationForm.Clone(), requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	err = s.cases.Create(ctx, c, func(ctx context.Context) error {
		return s.emit(ctx, audit.EventCaseCreated, c.ID, audit.Event{})
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "case %s already exists", c.ID)
		}
		return nil, wrapCaseErr(err, c.ID)
	}

	s.logger.InfoContext(ctx, "case created",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", c.ID,
		"wealth_customer", c.Customer.IsWealthCustomer,
	)
	return c, nil
}

// GetCase returns a case in any status.
func (s *Service) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	if err := requireCaseID(caseID); err != nil {
		return nil, err
	}
	c, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		return nil, wrapCaseErr(err, caseID)
	}
	return c, nil
}

// ListCases returns cases ordered by creation time, optionally filtered by status.
func (s *Service) ListCases(ctx context.Context, status string) ([]*models.Case, error) {
	var filter models.CaseStatus
	if status != "" {
		parsed, err := models.ParseCaseStatus(status)
		if err != nil {
			return nil, err
		}
		filter = parsed
	}
	cases, err := s.cases.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list cases")
	}
	return cases, nil
}

// AdvanceStatus moves an open case to another non-terminal stage along the
// case transition table. Approved and Rejected are only reachable through
// RecordDecision.
func (s *Service) AdvanceStatus(ctx context.Context, caseID string, target models.CaseStatus) (c *models.Case, err error) {
	ctx, done := s.observe(ctx, "advance_status", caseID)
	defer func() { done(err) }()

	var from models.CaseStatus
	c, err = s.mutate(ctx, caseID, func(ctx context.Context, c *models.Case, now time.Time) error {
		if err := c.CanAdvanceTo(target); err != nil {
			return err
		}
		from = c.Status
		c.ApplyAdvance(target, now)
		return s.emit(ctx, audit.EventCaseStatusAdvanced, c.ID, audit.Event{
			Decision: string(target),
			Reason:   "from " + string(from),
		})
	})
	if err != nil {
		return nil, err
	}
	s.logStatusChange(ctx, caseID, from, c.Status)
	return c, nil
}

// AuditTrail lists the materialized audit events of a case, oldest first.
func (s *Service) AuditTrail(ctx context.Context, caseID string) ([]audit.Event, error) {
	if _, err := s.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	if s.auditReader == nil {
		return []audit.Event{}, nil
	}
	events, err := s.auditReader.ListByCase(ctx, caseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail")
	}
	return events, nil
}
