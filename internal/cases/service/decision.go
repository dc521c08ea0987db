package service

import (
	"context"
	"time"

	"kycreview/internal/cases/models"
	audit "kycreview/pkg/platform/audit"
	"kycreview/pkg/requestcontext"
)

// RecordDecision records a reviewer verdict. Approve and Reject close the
// case; Pending keeps the current status and only replaces the note. A
// decided case rejects further decisions with invalid_state, and concurrent
// decisions on one case are serialized so at most one closes it.
func (s *Service) RecordDecision(ctx context.Context, caseID string, decision models.Decision, note string) (c *models.Case, err error) {
	ctx, done := s.observe(ctx, "record_decision", caseID)
	defer func() { done(err) }()

	if _, err = models.ParseDecision(string(decision)); err != nil {
		return nil, err
	}

	var from models.CaseStatus
	c, err = s.mutate(ctx, caseID, func(ctx context.Context, c *models.Case, now time.Time) error {
		if err := c.CanRecordDecision(); err != nil {
			return err
		}
		from = c.Status
		c.ApplyDecision(decision, note, now)
		return s.emit(ctx, audit.EventDecisionRecorded, c.ID, audit.Event{
			Decision: string(decision),
			Reason:   note,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncDecision(string(decision))
	s.logger.InfoContext(ctx, "case decision recorded",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", caseID,
		"decision", decision,
		"status", c.Status,
	)
	s.logStatusChange(ctx, caseID, from, c.Status)
	return c, nil
}
