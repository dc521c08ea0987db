package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks CaseStore,DocumentGate,AuditPublisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kycreview/internal/cases/content"
	"kycreview/internal/cases/idempotency"
	"kycreview/internal/cases/ingestion"
	casemetrics "kycreview/internal/cases/metrics"
	"kycreview/internal/cases/models"
	"kycreview/internal/cases/service/mocks"
	"kycreview/internal/cases/store"
	dErrors "kycreview/pkg/domain-errors"
	audit "kycreview/pkg/platform/audit"
	"kycreview/pkg/platform/audit/publishers/compliance"
	auditmemory "kycreview/pkg/platform/audit/store/memory"
	"kycreview/pkg/platform/sentinel"
	"kycreview/pkg/requestcontext"
	"kycreview/pkg/testutil"
)

const mib = 1024 * 1024

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	cases    *store.InMemory
	audit    *auditmemory.InMemoryStore
	contents *content.InMemory
	metrics  *casemetrics.Metrics
	service  *Service
	docSeq   atomic.Int64
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	s.ctx = testutil.ReviewContext(s.now, "req-test", "analyst@bank")
	s.cases = store.NewInMemory()
	s.audit = auditmemory.NewInMemoryStore()
	s.contents = content.NewInMemory()
	s.metrics = casemetrics.New(prometheus.NewRegistry())
	s.docSeq.Store(0)

	gate := ingestion.New(ingestion.WithIDGenerator(func() string {
		return fmt.Sprintf("D-%d", s.docSeq.Add(1))
	}))
	s.service = New(s.cases, gate,
		WithAuditPublisher(compliance.New(s.audit)),
		WithAuditReader(s.audit),
		WithMetrics(s.metrics),
		WithContentStore(s.contents),
	)
	_, err := store.Seed(context.Background(), s.cases)
	s.Require().NoError(err)
}

func (s *ServiceSuite) pdf(name string, size int64) ingestion.File {
	return ingestion.File{Name: name, MIMEType: "application/pdf", Size: size}
}

func (s *ServiceSuite) pdfWithBody(name string) ingestion.File {
	body := []byte("%PDF-1.7\n" + name + "\n%%EOF\n")
	return ingestion.File{Name: name, Size: int64(len(body)), Content: body}
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), err.Error())
}

func (s *ServiceSuite) actions(caseID string) []string {
	events, err := s.audit.ListByCase(context.Background(), caseID)
	s.Require().NoError(err)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}

func (s *ServiceSuite) decide(caseID string, d models.Decision) *models.Case {
	c, err := s.service.RecordDecision(s.ctx, caseID, d, "closing")
	s.Require().NoError(err)
	return c
}

func (s *ServiceSuite) TestRecordDecision() {
	s.Run("approve closes the case", func() {
		c, err := s.service.RecordDecision(s.ctx, "C-1002", models.DecisionApprove, "looks good")
		s.Require().NoError(err)
		s.Equal(models.CaseStatusApproved, c.Status)
		s.Equal("looks good", c.DecisionNote)
		s.Equal(s.now, c.UpdatedAt)

		_, err = s.service.RecordDecision(s.ctx, "C-1002", models.DecisionReject, "changed my mind")
		s.requireCode(err, dErrors.CodeInvalidState)

		stored, err := s.service.GetCase(s.ctx, "C-1002")
		s.Require().NoError(err)
		s.Equal(models.CaseStatusApproved, stored.Status)
		s.Equal("looks good", stored.DecisionNote)
	})

	s.Run("reject closes the case", func() {
		c, err := s.service.RecordDecision(s.ctx, "C-1001", models.DecisionReject, "pep hit")
		s.Require().NoError(err)
		s.Equal(models.CaseStatusRejected, c.Status)
	})

	s.Run("pending keeps the case actionable", func() {
		c, err := s.service.RecordDecision(s.ctx, "C-1005", models.DecisionPending, "need clearer passport scan")
		s.Require().NoError(err)
		s.Equal(models.CaseStatusIdentity, c.Status)
		s.Equal("need clearer passport scan", c.DecisionNote)

		c, err = s.service.RecordDecision(s.ctx, "C-1005", models.DecisionApprove, "scan ok")
		s.Require().NoError(err)
		s.Equal(models.CaseStatusApproved, c.Status)
	})

	s.Run("emits the decision audit event", func() {
		events, err := s.audit.ListByCase(context.Background(), "C-1002", audit.EventDecisionRecorded)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal("Approve", events[0].Decision)
		s.Equal("looks good", events[0].Reason)
		s.Equal("analyst@bank", events[0].ActorID)
		s.Equal("req-test", events[0].RequestID)
		s.Equal(audit.CategoryCompliance, events[0].Category)
	})

	s.Run("unknown decision", func() {
		_, err := s.service.RecordDecision(s.ctx, "C-1003", "Escalate", "")
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("unknown case", func() {
		_, err := s.service.RecordDecision(s.ctx, "C-404", models.DecisionApprove, "")
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.InDelta(1, promtestutil.ToFloat64(s.metrics.Decisions.WithLabelValues("Reject")), 0)
}

// TestConcurrentDecisions verifies two racing decisions never both succeed.
func (s *ServiceSuite) TestConcurrentDecisions() {
	const goroutines = 16
	var wg sync.WaitGroup
	var wins, invalid atomic.Int32
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision := models.DecisionApprove
			if i%2 == 1 {
				decision = models.DecisionReject
			}
			_, err := s.service.RecordDecision(s.ctx, "C-1002", decision, "race")
			switch {
			case err == nil:
				wins.Add(1)
			case dErrors.HasCode(err, dErrors.CodeInvalidState):
				invalid.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), invalid.Load())
	events, err := s.audit.ListByCase(context.Background(), "C-1002", audit.EventDecisionRecorded)
	s.Require().NoError(err)
	s.Len(events, 1)
}

// TestTerminalCasesAreImmutable verifies every mutating command fails with
// invalid_state on a decided case and leaves it unchanged.
func (s *ServiceSuite) TestTerminalCasesAreImmutable() {
	_, _, err := s.service.UploadDocument(s.ctx, "C-1004", "", s.pdf("passport.pdf", 100))
	s.Require().NoError(err)
	s.decide("C-1004", models.DecisionReject)
	s.decide("C-1003", models.DecisionApprove)

	before, err := s.service.GetCase(s.ctx, "C-1004")
	s.Require().NoError(err)
	docID := before.Documents[0].ID

	commands := map[string]func() error{
		"decision": func() error {
			_, err := s.service.RecordDecision(s.ctx, "C-1004", models.DecisionApprove, "")
			return err
		},
		"upload": func() error {
			_, err := s.service.UploadDocuments(s.ctx, "C-1004", "", []ingestion.File{s.pdf("bill.pdf", 10)})
			return err
		},
		"upload all rejected": func() error {
			_, err := s.service.UploadDocuments(s.ctx, "C-1004", "", []ingestion.File{{Name: "a.txt", MIMEType: "text/plain", Size: 1}})
			return err
		},
		"delete": func() error {
			_, err := s.service.DeleteDocument(s.ctx, "C-1004", docID)
			return err
		},
		"review document": func() error {
			_, _, err := s.service.ReviewDocument(s.ctx, "C-1004", docID, models.DocumentStatusVerified)
			return err
		},
		"review statement": func() error {
			_, _, err := s.service.ReviewBankStatement(s.ctx, "C-1003", "BS-1003-1", models.StatementApproved, "rm", "")
			return err
		},
		"review form": func() error {
			_, _, err := s.service.ReviewOccupationForm(s.ctx, "C-1003", models.FormApproved, "rm")
			return err
		},
		"review form on non wealth": func() error {
			_, _, err := s.service.ReviewOccupationForm(s.ctx, "C-1004", models.FormApproved, "rm")
			return err
		},
		"advance": func() error {
			_, err := s.service.AdvanceStatus(s.ctx, "C-1004", models.CaseStatusScreening)
			return err
		},
		"ocr": func() error {
			_, _, err := s.service.AttachOCRResult(s.ctx, "C-1004", docID, models.Classification{DocumentType: "Passport", Confidence: 0.9}, nil)
			return err
		},
	}
	for name, cmd := range commands {
		s.Run(name, func() {
			s.requireCode(cmd(), dErrors.CodeInvalidState)
		})
	}

	after, err := s.service.GetCase(s.ctx, "C-1004")
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *ServiceSuite) TestUploadDocuments() {
	s.Run("first document moves intake to ingestion", func() {
		c, doc, err := s.service.UploadDocument(s.ctx, "C-1004", "", s.pdf("passport_emma.pdf", 2048))
		s.Require().NoError(err)
		s.Equal(models.CaseStatusIngestion, c.Status)
		s.Equal(models.CategoryPrimaryID, doc.Category)
		s.Equal(models.DocumentStatusPendingReview, doc.Status)
		s.Equal(s.now, doc.UploadedAt)
		s.Contains(s.actions("C-1004"), string(audit.EventCaseStatusAdvanced))
	})

	s.Run("identity stays in identity", func() {
		c, _, err := s.service.UploadDocument(s.ctx, "C-1005", "", s.pdf("passport.pdf", 10))
		s.Require().NoError(err)
		s.Equal(models.CaseStatusIdentity, c.Status)
	})

	s.Run("outside the intake window", func() {
		for _, caseID := range []string{"C-1001", "C-1002", "C-1003"} {
			_, err := s.service.UploadDocuments(s.ctx, caseID, "", []ingestion.File{s.pdf("bill.pdf", 10)})
			s.requireCode(err, dErrors.CodeInvalidState)
		}
	})

	s.Run("second of three oversized", func() {
		result, err := s.service.UploadDocuments(s.ctx, "C-1005", "", []ingestion.File{
			s.pdf("utility_bill.pdf", 100),
			s.pdf("bank_statement.pdf", 11*mib),
			s.pdf("tax_return.pdf", 200),
		})
		s.Require().NoError(err)
		s.Require().Len(result.Documents, 2)
		s.Equal("utility_bill.pdf", result.Documents[0].Name)
		s.Equal("tax_return.pdf", result.Documents[1].Name)
		s.Require().Len(result.Errors, 1)
		s.Equal(1, result.Errors[0].Index)
		s.Equal("bank_statement.pdf", result.Errors[0].Name)
		s.True(dErrors.HasCode(result.Errors[0].Err, dErrors.CodeTooLarge))

		names := []string{}
		for _, d := range result.Case.Documents {
			names = append(names, d.Name)
		}
		s.Equal([]string{"passport.pdf", "utility_bill.pdf", "tax_return.pdf"}, names)
	})

	s.Run("rejected files leave documents unchanged", func() {
		before, err := s.service.GetCase(s.ctx, "C-1005")
		s.Require().NoError(err)

		_, _, err = s.service.UploadDocument(s.ctx, "C-1005", "", s.pdf("scan.pdf", 11*mib))
		s.requireCode(err, dErrors.CodeTooLarge)
		_, _, err = s.service.UploadDocument(s.ctx, "C-1005", "", ingestion.File{Name: "notes.txt", MIMEType: "text/plain", Size: 5})
		s.requireCode(err, dErrors.CodeUnsupportedType)

		after, err := s.service.GetCase(s.ctx, "C-1005")
		s.Require().NoError(err)
		s.Equal(before.Documents, after.Documents)
		s.Equal(before.Version, after.Version)
	})

	s.Run("empty batch", func() {
		_, err := s.service.UploadDocuments(s.ctx, "C-1005", "", nil)
		s.requireCode(err, dErrors.CodeValidation)
	})
}

func (s *ServiceSuite) TestUploadIdempotency() {
	files := []ingestion.File{s.pdf("passport.pdf", 100), s.pdf("huge.pdf", 11*mib)}

	first, err := s.service.UploadDocuments(s.ctx, "C-1004", "upload-1", files)
	s.Require().NoError(err)
	s.False(first.Replayed)

	s.Run("retry replays without appending", func() {
		retry, err := s.service.UploadDocuments(s.ctx, "C-1004", "upload-1", files)
		s.Require().NoError(err)
		s.True(retry.Replayed)
		s.Require().Len(retry.Documents, 1)
		s.Equal(first.Documents[0].ID, retry.Documents[0].ID)
		s.Require().Len(retry.Errors, 1)
		s.True(dErrors.HasCode(retry.Errors[0].Err, dErrors.CodeTooLarge))
		s.Len(retry.Case.Documents, 1)
		s.InDelta(1, promtestutil.ToFloat64(s.metrics.UploadReplays), 0)
	})

	s.Run("same id with different files", func() {
		_, err := s.service.UploadDocuments(s.ctx, "C-1004", "upload-1", []ingestion.File{s.pdf("other.pdf", 5)})
		s.requireCode(err, dErrors.CodeConflict)
	})

	s.Run("same id on another case is independent", func() {
		result, err := s.service.UploadDocuments(s.ctx, "C-1005", "upload-1", files)
		s.Require().NoError(err)
		s.False(result.Replayed)
	})

	s.Run("failed attempt releases the key", func() {
		s.decide("C-1001", models.DecisionPending)
		_, err := s.service.UploadDocuments(s.ctx, "C-1001", "upload-2", files)
		s.requireCode(err, dErrors.CodeInvalidState)

		_, err = s.service.AdvanceStatus(s.ctx, "C-1001", models.CaseStatusIngestion)
		s.Require().NoError(err)
		result, err := s.service.UploadDocuments(s.ctx, "C-1001", "upload-2", files)
		s.Require().NoError(err)
		s.False(result.Replayed)
	})
}

func (s *ServiceSuite) TestUploadInProgressConflict() {
	idem := idempotency.NewInMemory()
	svc := New(s.cases, ingestion.New(), WithIdempotencyStore(idem))
	files := []ingestion.File{s.pdf("passport.pdf", 100)}

	_, reserved, err := idem.Reserve(s.ctx, idempotency.Key("C-1004", "dup"), uploadFingerprint(files))
	s.Require().NoError(err)
	s.Require().True(reserved)

	_, err = svc.UploadDocuments(s.ctx, "C-1004", "dup", files)
	s.requireCode(err, dErrors.CodeConflict)
}

func (s *ServiceSuite) TestDeleteDocument() {
	result, err := s.service.UploadDocuments(s.ctx, "C-1004", "", []ingestion.File{s.pdf("passport.pdf", 1), s.pdf("bill.pdf", 1)})
	s.Require().NoError(err)
	pendingID := result.Documents[0].ID
	reviewedID := result.Documents[1].ID

	_, _, err = s.service.ReviewDocument(s.ctx, "C-1004", reviewedID, models.DocumentStatusUnderReview)
	s.Require().NoError(err)

	s.Run("not pending review", func() {
		_, err := s.service.DeleteDocument(s.ctx, "C-1004", reviewedID)
		s.requireCode(err, dErrors.CodeInvalidState)
		c, _ := s.service.GetCase(s.ctx, "C-1004")
		s.Len(c.Documents, 2)
	})

	s.Run("unknown document", func() {
		_, err := s.service.DeleteDocument(s.ctx, "C-1004", "D-404")
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("pending review is deleted", func() {
		c, err := s.service.DeleteDocument(s.ctx, "C-1004", pendingID)
		s.Require().NoError(err)
		s.Require().Len(c.Documents, 1)
		s.Equal(reviewedID, c.Documents[0].ID)
		s.Contains(s.actions("C-1004"), string(audit.EventDocumentDeleted))
	})
}

func (s *ServiceSuite) TestDocumentContent() {
	file := s.pdfWithBody("passport.pdf")
	result, err := s.service.UploadDocuments(s.ctx, "C-1004", "", []ingestion.File{file, s.pdf("bill.pdf", 10)})
	s.Require().NoError(err)
	stored := result.Documents[0]
	sizeOnly := result.Documents[1]

	s.Run("complete bodies are kept", func() {
		s.Equal(content.Ref("C-1004", stored.ID), stored.ContentRef)
		doc, obj, err := s.service.DocumentContent(s.ctx, "C-1004", stored.ID)
		s.Require().NoError(err)
		s.Equal(stored.ID, doc.ID)
		s.Equal(file.Content, obj.Data)
		s.Equal("application/pdf", obj.MIMEType)
		s.Equal(s.now, obj.CreatedAt)

		events, err := s.audit.ListByCase(context.Background(), "C-1004", audit.EventDocumentUploaded)
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Equal(stored.ContentRef, events[0].Ref)
		s.Empty(events[1].Ref)
	})

	s.Run("no body was uploaded", func() {
		s.Empty(sizeOnly.ContentRef)
		_, _, err := s.service.DocumentContent(s.ctx, "C-1004", sizeOnly.ID)
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("unknown document or case", func() {
		_, _, err := s.service.DocumentContent(s.ctx, "C-1004", "D-404")
		s.requireCode(err, dErrors.CodeNotFound)
		_, _, err = s.service.DocumentContent(s.ctx, "C-404", stored.ID)
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("deleting the document drops its body", func() {
		_, err := s.service.DeleteDocument(s.ctx, "C-1004", stored.ID)
		s.Require().NoError(err)
		_, err = s.contents.Get(context.Background(), stored.ContentRef)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		events, err := s.audit.ListByCase(context.Background(), "C-1004", audit.EventDocumentDeleted)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(stored.ContentRef, events[0].Ref)
	})
}

func (s *ServiceSuite) TestReviewDocument() {
	_, doc, err := s.service.UploadDocument(s.ctx, "C-1004", "", s.pdf("passport.pdf", 1))
	s.Require().NoError(err)

	_, reviewed, err := s.service.ReviewDocument(s.ctx, "C-1004", doc.ID, models.DocumentStatusVerified)
	s.Require().NoError(err)
	s.Equal(models.DocumentStatusVerified, reviewed.Status)

	_, _, err = s.service.ReviewDocument(s.ctx, "C-1004", doc.ID, models.DocumentStatusRejected)
	s.requireCode(err, dErrors.CodeInvalidState)

	_, _, err = s.service.ReviewDocument(s.ctx, "C-1004", "D-404", models.DocumentStatusRejected)
	s.requireCode(err, dErrors.CodeNotFound)

	_, _, err = s.service.ReviewDocument(s.ctx, "C-1004", doc.ID, "Done")
	s.requireCode(err, dErrors.CodeValidation)
}

func (s *ServiceSuite) TestReviewBankStatement() {
	s.Run("pending to under review to rejected", func() {
		_, stmt, err := s.service.ReviewBankStatement(s.ctx, "C-1001", "BS-1001-1", models.StatementUnderReview, "analyst", "")
		s.Require().NoError(err)
		s.Equal(models.StatementUnderReview, stmt.ReviewStatus)

		c, stmt, err := s.service.ReviewBankStatement(s.ctx, "C-1001", "BS-1001-1", models.StatementRejected, "senior", "unexplained deposits")
		s.Require().NoError(err)
		s.Equal(models.StatementRejected, stmt.ReviewStatus)
		s.Equal("senior", stmt.ReviewedBy)
		s.Equal("unexplained deposits", stmt.Notes)
		s.Require().NotNil(stmt.ReviewDate)
		s.Equal(s.now, *stmt.ReviewDate)
		s.Equal(models.CaseStatusScreening, c.Status)
	})

	s.Run("rejected to approved is illegal", func() {
		_, _, err := s.service.ReviewBankStatement(s.ctx, "C-1001", "BS-1001-1", models.StatementApproved, "senior", "")
		s.requireCode(err, dErrors.CodeInvalidState)
	})

	s.Run("reviewer defaults to the actor", func() {
		_, stmt, err := s.service.ReviewBankStatement(s.ctx, "C-1001", "BS-1001-2", models.StatementApproved, "", "")
		s.Require().NoError(err)
		s.Equal("analyst@bank", stmt.ReviewedBy)
	})

	s.Run("reviewer is required without an actor", func() {
		_, _, err := s.service.ReviewBankStatement(requestcontext.WithActorID(s.ctx, ""), "C-1003", "BS-1003-1", models.StatementApproved, "", "")
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("unknown statement", func() {
		_, _, err := s.service.ReviewBankStatement(s.ctx, "C-1001", "BS-404", models.StatementApproved, "x", "")
		s.requireCode(err, dErrors.CodeNotFound)
	})
}

func (s *ServiceSuite) TestReviewOccupationForm() {
	s.Run("non wealth customer", func() {
		_, _, err := s.service.ReviewOccupationForm(s.ctx, "C-1001", models.FormApproved, "rm")
		s.requireCode(err, dErrors.CodeNotApplicable)
	})

	s.Run("additional info then approved", func() {
		_, form, err := s.service.ReviewOccupationForm(s.ctx, "C-1003", models.FormAdditionalInfoRequired, "rm")
		s.Require().NoError(err)
		s.Equal(models.FormAdditionalInfoRequired, form.ReviewStatus)

		_, form, err = s.service.ReviewOccupationForm(s.ctx, "C-1003", models.FormApproved, "rm")
		s.Require().NoError(err)
		s.Equal(models.FormApproved, form.ReviewStatus)
		s.Equal("rm", form.ReviewedBy)
	})

	s.Run("terminal form", func() {
		_, _, err := s.service.ReviewOccupationForm(s.ctx, "C-1003", models.FormRejected, "rm")
		s.requireCode(err, dErrors.CodeInvalidState)
	})
}

func (s *ServiceSuite) TestAdvanceStatus() {
	c, err := s.service.AdvanceStatus(s.ctx, "C-1005", models.CaseStatusScreening)
	s.Require().NoError(err)
	s.Equal(models.CaseStatusScreening, c.Status)

	_, err = s.service.AdvanceStatus(s.ctx, "C-1005", models.CaseStatusApproved)
	s.requireCode(err, dErrors.CodeInvalidState)

	_, err = s.service.AdvanceStatus(s.ctx, "C-1005", models.CaseStatusMonitoring)
	s.requireCode(err, dErrors.CodeInvalidState)

	_, err = s.service.AdvanceStatus(s.ctx, "C-1005", "Paused")
	s.requireCode(err, dErrors.CodeValidation)

	s.InDelta(1, promtestutil.ToFloat64(s.metrics.StatusChanges.WithLabelValues("Identity", "Screening")), 0)
}

func (s *ServiceSuite) TestAttachOCRResult() {
	_, doc, err := s.service.UploadDocument(s.ctx, "C-1004", "", s.pdf("scan.pdf", 1))
	s.Require().NoError(err)

	_, attached, err := s.service.AttachOCRResult(s.ctx, "C-1004", doc.ID,
		models.Classification{DocumentType: "Passport", Confidence: 0.93},
		map[string]string{"Name": "Emma Wilson", "FIN": "G1234567N"})
	s.Require().NoError(err)
	s.True(attached.OCRProcessed)
	s.Equal("Emma Wilson", attached.OCRMetadata["Name"])
	s.Equal(models.CategoryOther, attached.Category)

	_, _, err = s.service.AttachOCRResult(s.ctx, "C-1004", "D-404", models.Classification{}, nil)
	s.requireCode(err, dErrors.CodeNotFound)
}

func (s *ServiceSuite) TestCreateCase() {
	s.Run("wealth customer with form", func() {
		c, err := s.service.CreateCase(s.ctx, NewCaseRequest{
			ID:        "C-2001",
			Customer:  models.Customer{Name: "Ava Lim", Tier: "Wealth", IsWealthCustomer: true},
			RiskScore: 0.4,
			BankStatements: []models.BankStatement{
				{Bank: "UOB", MonthlyIncome: decimal.NewFromInt(25000), ReviewStatus: models.StatementApproved},
			},
			OccupationForm: &models.OccupationForm{Occupation: "Surgeon", AnnualIncome: decimal.NewFromInt(600000)},
		})
		s.Require().NoError(err)
		s.Equal(models.CaseStatusIntake, c.Status)
		s.Equal(int64(1), c.Version)
		s.Require().Len(c.BankStatements, 1)
		s.NotEmpty(c.BankStatements[0].ID)
		s.Equal(models.StatementPendingReview, c.BankStatements[0].ReviewStatus)
		s.Equal(models.FormPendingReview, c.OccupationForm.ReviewStatus)
		s.Equal([]string{string(audit.EventCaseCreated)}, s.actions("C-2001"))
	})

	s.Run("generated id", func() {
		c, err := s.service.CreateCase(s.ctx, NewCaseRequest{Customer: models.Customer{Name: "Noah Tan"}})
		s.Require().NoError(err)
		s.Regexp(`^C-[0-9A-F]{8}$`, c.ID)
	})

	s.Run("duplicate id", func() {
		_, err := s.service.CreateCase(s.ctx, NewCaseRequest{ID: "C-1001", Customer: models.Customer{Name: "x"}})
		s.requireCode(err, dErrors.CodeConflict)
	})

	s.Run("wealth customer without form", func() {
		_, err := s.service.CreateCase(s.ctx, NewCaseRequest{Customer: models.Customer{Name: "x", IsWealthCustomer: true}})
		s.requireCode(err, dErrors.CodeValidation)
	})
}

func (s *ServiceSuite) TestListAndGet() {
	all, err := s.service.ListCases(s.ctx, "")
	s.Require().NoError(err)
	s.Len(all, 5)

	screening, err := s.service.ListCases(s.ctx, "Screening")
	s.Require().NoError(err)
	s.Require().Len(screening, 1)
	s.Equal("C-1001", screening[0].ID)

	_, err = s.service.ListCases(s.ctx, "Archived")
	s.requireCode(err, dErrors.CodeValidation)

	_, err = s.service.GetCase(s.ctx, " ")
	s.requireCode(err, dErrors.CodeValidation)
}

func (s *ServiceSuite) TestAuditTrail() {
	s.decide("C-1002", models.DecisionApprove)
	events, err := s.service.AuditTrail(s.ctx, "C-1002")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventDecisionRecorded), events[0].Action)

	_, err = s.service.AuditTrail(s.ctx, "C-404")
	s.requireCode(err, dErrors.CodeNotFound)
}

// TestAuditFailureAbortsCommand verifies audit is fail-closed: nothing commits.
func (s *ServiceSuite) TestAuditFailureAbortsCommand() {
	publisher := mocks.NewMockAuditPublisher(gomock.NewController(s.T()))
	publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit store down")).AnyTimes()
	svc := New(s.cases, ingestion.New(), WithAuditPublisher(publisher))

	_, err := svc.RecordDecision(s.ctx, "C-1002", models.DecisionApprove, "ok")
	s.requireCode(err, dErrors.CodeInternal)

	c, err := svc.GetCase(s.ctx, "C-1002")
	s.Require().NoError(err)
	s.Equal(models.CaseStatusDecision, c.Status)
	s.Empty(c.DecisionNote)

	_, err = svc.UploadDocuments(s.ctx, "C-1004", "", []ingestion.File{s.pdf("passport.pdf", 1)})
	s.requireCode(err, dErrors.CodeInternal)
	c, err = svc.GetCase(s.ctx, "C-1004")
	s.Require().NoError(err)
	s.Empty(c.Documents)
	s.Equal(models.CaseStatusIntake, c.Status)
}

// TestLateAuditFailureDropsEarlierWrites fails the third event of a batch:
// the events and bodies written before it must not survive the abort.
func (s *ServiceSuite) TestLateAuditFailureDropsEarlierWrites() {
	delegate := compliance.New(s.audit)
	publisher := mocks.NewMockAuditPublisher(gomock.NewController(s.T()))
	gomock.InOrder(
		publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(delegate.Emit).Times(2),
		publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit store down")),
	)
	svc := New(s.cases, ingestion.New(ingestion.WithIDGenerator(func() string {
		return fmt.Sprintf("D-%d", s.docSeq.Add(1))
	})), WithAuditPublisher(publisher), WithContentStore(s.contents))

	_, err := svc.UploadDocuments(s.ctx, "C-1004", "", []ingestion.File{
		s.pdfWithBody("passport.pdf"),
		s.pdfWithBody("utility_bill.pdf"),
	})
	s.requireCode(err, dErrors.CodeInternal)

	c, err := svc.GetCase(s.ctx, "C-1004")
	s.Require().NoError(err)
	s.Equal(models.CaseStatusIntake, c.Status)
	s.Empty(c.Documents)
	s.Empty(s.actions("C-1004"), "staged audit events are discarded")
	for _, id := range []string{"D-1", "D-2"} {
		_, err := s.contents.Get(context.Background(), content.Ref("C-1004", id))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	}
}
