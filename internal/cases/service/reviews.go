package service

import (
	"context"
	"strings"
	"time"

	"kycreview/internal/cases/models"
	dErrors "kycreview/pkg/domain-errors"
	audit "kycreview/pkg/platform/audit"
	"kycreview/pkg/requestcontext"
)

// ReviewBankStatement records a reviewer outcome on one bank statement. The
// case status is never changed here; the decision step weighs the statements.
func (s *Service) ReviewBankStatement(ctx context.Context, caseID, statementID string, outcome models.StatementReviewStatus, reviewer, notes string) (c *models.Case, stmt *models.BankStatement, err error) {
	ctx, done := s.observe(ctx, "review_bank_statement", caseID)
	defer func() { done(err) }()

	if _, err = models.ParseStatementReviewStatus(string(outcome)); err != nil {
		return nil, nil, err
	}
	if reviewer, err = resolveReviewer(ctx, reviewer); err != nil {
		return nil, nil, err
	}

	c, err = s.mutate(ctx, caseID, func(ctx context.Context, c *models.Case, now time.Time) error {
		reviewed, err := c.ReviewBankStatement(statementID, outcome, reviewer, notes, now)
		if err != nil {
			return err
		}
		stmt = reviewed
		return s.emit(ctx, audit.EventBankStatementReviewed, c.ID, audit.Event{
			Subject:  statementID,
			Decision: string(outcome),
			Reason:   notes,
		})
	})
	if err != nil {
		return nil, nil, err
	}

	s.metrics.IncReview("bank_statement", string(outcome))
	s.logger.InfoContext(ctx, "bank statement reviewed",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", caseID,
		"statement_id", statementID,
		"outcome", outcome,
		"reviewer", reviewer,
	)
	return c, stmt, nil
}

// ReviewOccupationForm records a reviewer outcome on the wealth form. Fails
// with not_applicable for non-wealth customers or when no form exists.
func (s *Service) ReviewOccupationForm(ctx context.Context, caseID string, outcome models.FormReviewStatus, reviewer string) (c *models.Case, form *models.OccupationForm, err error) {
	ctx, done := s.observe(ctx, "review_occupation_form", caseID)
	defer func() { done(err) }()

	if _, err = models.ParseFormReviewStatus(string(outcome)); err != nil {
		return nil, nil, err
	}
	if reviewer, err = resolveReviewer(ctx, reviewer); err != nil {
		return nil, nil, err
	}

	c, err = s.mutate(ctx, caseID, func(ctx context.Context, c *models.Case, now time.Time) error {
		reviewed, err := c.ReviewOccupationForm(outcome, reviewer, now)
		if err != nil {
			return err
		}
		form = reviewed
		return s.emit(ctx, audit.EventOccupationFormReview, c.ID, audit.Event{
			Subject:  "occupation_form",
			Decision: string(outcome),
		})
	})
	if err != nil {
		return nil, nil, err
	}

	s.metrics.IncReview("occupation_form", string(outcome))
	s.logger.InfoContext(ctx, "occupation form reviewed",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", caseID,
		"outcome", outcome,
		"reviewer", reviewer,
	)
	return c, form, nil
}

// resolveReviewer falls back to the request actor when no reviewer is named.
func resolveReviewer(ctx context.Context, reviewer string) (string, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		reviewer = requestcontext.ActorID(ctx)
	}
	if reviewer == "" {
		return "", dErrors.New(dErrors.CodeValidation, "reviewer is required")
	}
	return reviewer, nil
}
