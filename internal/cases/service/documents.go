package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kycreview/internal/cases/content"
	"kycreview/internal/cases/idempotency"
	"kycreview/internal/cases/ingestion"
	"kycreview/internal/cases/models"
	dErrors "kycreview/pkg/domain-errors"
	audit "kycreview/pkg/platform/audit"
	"kycreview/pkg/platform/sentinel"
	"kycreview/pkg/requestcontext"
)

// FileError reports one rejected file of a batch upload.
type FileError struct {
	Index int
	Name  string
	Err   error
}

func (e FileError) Error() string {
	return fmt.Sprintf("file %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// UploadResult is the outcome of a batch upload. Documents and Errors both
// keep the input order.
type UploadResult struct {
	Case      *models.Case
	Documents []models.Document
	Errors    []FileError
	// Replayed is set when the result came from an earlier request with the
	// same request id.
	Replayed bool
}

// replayRecord is the stored form of an UploadResult.
type replayRecord struct {
	DocumentIDs []string           `json:"documentIds"`
	Errors      []replayFileRecord `json:"errors,omitempty"`
}

type replayFileRecord struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UploadDocuments ingests a batch of files into the case. The whole command
// fails with invalid_state when the case is decided or outside the intake
// window. Otherwise every file is validated independently: accepted files are
// appended in input order and each rejected file yields one FileError.
//
// A non-empty requestID makes the call idempotent per case: a retry with the
// same id and files replays the first result without appending again.
func (s *Service) UploadDocuments(ctx context.Context, caseID, requestID string, files []ingestion.File) (result *UploadResult, err error) {
	ctx, done := s.observe(ctx, "upload_documents", caseID)
	defer func() { done(err) }()

	if err := requireCaseID(caseID); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one file is required")
	}

	var key, fingerprint string
	if requestID != "" {
		key = idempotency.Key(caseID, requestID)
		fingerprint = uploadFingerprint(files)
		rec, reserved, err := s.idempotency.Reserve(ctx, key, fingerprint)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "idempotency store unavailable")
		}
		if !reserved {
			return s.replayUpload(ctx, caseID, fingerprint, rec)
		}
	}

	result, err = s.ingest(ctx, caseID, files)
	if err != nil {
		if key != "" {
			if relErr := s.idempotency.Release(context.WithoutCancel(ctx), key); relErr != nil {
				s.logger.WarnContext(ctx, "failed to release idempotency key",
					"request_id", requestcontext.RequestID(ctx),
					"case_id", caseID,
					"error", relErr,
				)
			}
		}
		return nil, err
	}

	if key != "" {
		s.storeReplay(ctx, key, fingerprint, result)
	}
	return result, nil
}

// UploadDocument ingests one file and reports its rejection, if any, as the
// command error.
func (s *Service) UploadDocument(ctx context.Context, caseID, requestID string, file ingestion.File) (*models.Case, *models.Document, error) {
	result, err := s.UploadDocuments(ctx, caseID, requestID, []ingestion.File{file})
	if err != nil {
		return nil, nil, err
	}
	if len(result.Errors) > 0 {
		return nil, nil, result.Errors[0].Err
	}
	if len(result.Documents) == 0 {
		return result.Case, nil, dErrors.New(dErrors.CodeNotFound, "uploaded document is no longer on the case")
	}
	doc := result.Documents[0]
	return result.Case, &doc, nil
}

func (s *Service) ingest(ctx context.Context, caseID string, files []ingestion.File) (*UploadResult, error) {
	// Classification is pure, so it runs outside the case lock.
	outcomes := s.gate.IngestBatch(ctx, files)

	accepted := make([]models.Document, 0, len(outcomes))
	var bodies []content.Object
	var rejected []FileError
	for i, o := range outcomes {
		if o.Err != nil {
			rejected = append(rejected, FileError{Index: i, Name: files[i].Name, Err: o.Err})
			continue
		}
		doc := *o.Document
		// Only complete bodies are kept; callers may pass just a sniffing prefix.
		if s.contents != nil && int64(len(files[i].Content)) == doc.Size {
			doc.ContentRef = content.Ref(caseID, doc.ID)
			bodies = append(bodies, content.Object{Ref: doc.ContentRef, MIMEType: doc.MIMEType, Data: files[i].Content})
		}
		accepted = append(accepted, doc)
	}

	emitRejections := func(ctx context.Context) error {
		for _, fe := range rejected {
			if err := s.emit(ctx, audit.EventDocumentRejected, caseID, audit.Event{
				Subject:  fe.Name,
				Decision: string(dErrors.CodeOf(fe.Err)),
				Reason:   fe.Err.Error(),
			}); err != nil {
				return err
			}
		}
		return nil
	}

	var c *models.Case
	var err error
	var from models.CaseStatus
	if len(accepted) == 0 {
		// Nothing to append: check the gates read-only so the case version
		// does not move.
		c, err = s.cases.FindByID(ctx, caseID)
		if err != nil {
			return nil, wrapCaseErr(err, caseID)
		}
		if err := c.RequireOpen(); err != nil {
			return nil, err
		}
		if err := c.CanUploadDocuments(); err != nil {
			return nil, err
		}
		if err := emitRejections(ctx); err != nil {
			return nil, err
		}
		from = c.Status
	} else {
		c, err = s.mutate(ctx, caseID, func(ctx context.Context, c *models.Case, now time.Time) error {
			if err := c.CanUploadDocuments(); err != nil {
				return err
			}
			from = c.Status
			for _, body := range bodies {
				body.CreatedAt = now
				if err := s.contents.Put(ctx, body); err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document content")
				}
			}
			if c.ApplyDocuments(accepted, now) {
				if err := s.emit(ctx, audit.EventCaseStatusAdvanced, c.ID, audit.Event{
					Decision: string(c.Status),
					Reason:   "first document ingested",
				}); err != nil {
					return err
				}
			}
			for _, doc := range accepted {
				if err := s.emit(ctx, audit.EventDocumentUploaded, c.ID, audit.Event{
					Subject:  doc.ID,
					Decision: string(doc.Category),
					Reason:   doc.Name,
					Ref:      doc.ContentRef,
				}); err != nil {
					return err
				}
			}
			return emitRejections(ctx)
		})
		if err != nil {
			return nil, err
		}
	}

	for _, doc := range accepted {
		s.metrics.IncDocumentIngested(string(doc.Category))
	}
	for _, fe := range rejected {
		s.metrics.IncDocumentRejected(string(dErrors.CodeOf(fe.Err)))
		s.logger.WarnContext(ctx, "document rejected",
			"request_id", requestcontext.RequestID(ctx),
			"case_id", caseID,
			"file", fe.Name,
			"error", fe.Err,
		)
	}
	s.logger.InfoContext(ctx, "documents uploaded",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", caseID,
		"accepted", len(accepted),
		"rejected", len(rejected),
	)
	s.logStatusChange(ctx, caseID, from, c.Status)

	return &UploadResult{Case: c, Documents: accepted, Errors: rejected}, nil
}

func (s *Service) storeReplay(ctx context.Context, key, fingerprint string, result *UploadResult) {
	rec := replayRecord{DocumentIDs: make([]string, 0, len(result.Documents))}
	for _, d := range result.Documents {
		rec.DocumentIDs = append(rec.DocumentIDs, d.ID)
	}
	for _, fe := range result.Errors {
		rf := replayFileRecord{Index: fe.Index, Name: fe.Name, Code: string(dErrors.CodeOf(fe.Err)), Message: fe.Err.Error()}
		if de, ok := fe.Err.(*dErrors.Error); ok {
			rf.Message = de.Message
		}
		rec.Errors = append(rec.Errors, rf)
	}
	payload, err := json.Marshal(rec)
	if err == nil {
		err = s.idempotency.Complete(context.WithoutCancel(ctx), key, idempotency.Record{
			Fingerprint: fingerprint,
			Payload:     payload,
		}, s.replayTTL)
	}
	if err != nil {
		// The upload is committed; a retry will see an expired reservation
		// at worst.
		s.logger.WarnContext(ctx, "failed to store upload result for replay",
			"request_id", requestcontext.RequestID(ctx),
			"case_id", result.Case.ID,
			"error", err,
		)
	}
}

func (s *Service) replayUpload(ctx context.Context, caseID, fingerprint string, rec idempotency.Record) (*UploadResult, error) {
	if rec.Fingerprint != fingerprint {
		return nil, dErrors.New(dErrors.CodeConflict, "request id was already used for a different upload")
	}
	if rec.InProgress {
		return nil, dErrors.New(dErrors.CodeConflict, "upload with this request id is still in progress")
	}
	var stored replayRecord
	if err := json.Unmarshal(rec.Payload, &stored); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode stored upload result")
	}
	c, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		return nil, wrapCaseErr(err, caseID)
	}

	result := &UploadResult{Case: c, Documents: []models.Document{}, Replayed: true}
	for _, id := range stored.DocumentIDs {
		// Documents deleted since the first attempt are left out.
		if idx := c.FindDocument(id); idx >= 0 {
			result.Documents = append(result.Documents, c.Documents[idx])
		}
	}
	for _, fe := range stored.Errors {
		result.Errors = append(result.Errors, FileError{
			Index: fe.Index,
			Name:  fe.Name,
			Err:   dErrors.New(dErrors.Code(fe.Code), fe.Message),
		})
	}
	s.metrics.IncUploadReplay()
	s.logger.InfoContext(ctx, "upload replayed",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", caseID,
		"documents", len(result.Documents),
	)
	return result, nil
}

func uploadFingerprint(files []ingestion.File) string {
	parts := make([]string, len(files))
	for i, f := range files {
		size := f.Size
		if size == 0 {
			size = int64(len(f.Content))
		}
		parts[i] = idempotency.FileFingerprint(f.Name, size)
	}
	return idempotency.Fingerprint(parts...)
}

// DeleteDocument removes a document that is still Pending Review.
func (s *Service) DeleteDocument(ctx context.Context, caseID, documentID string) (c *models.Case, err error) {
	ctx, done := s.observe(ctx, "delete_document", caseID)
	defer func() { done(err) }()

	c, err = s.mutate(ctx, caseID, func(ctx context.Context, c *models.Case, now time.Time) error {
		doc, err := c.DeleteDocument(documentID, now)
		if err != nil {
			return err
		}
		if doc.ContentRef != "" && s.contents != nil {
			if err := s.contents.Delete(ctx, doc.ContentRef); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete document content")
			}
		}
		return s.emit(ctx, audit.EventDocumentDeleted, c.ID, audit.Event{
			Subject: doc.ID,
			Reason:  doc.Name,
			Ref:     doc.ContentRef,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "document deleted",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", caseID,
		"document_id", documentID,
	)
	return c, nil
}

// DocumentContent returns a document and its stored bytes. Like every read it
// is allowed in all case statuses.
func (s *Service) DocumentContent(ctx context.Context, caseID, documentID string) (doc *models.Document, obj *content.Object, err error) {
	ctx, done := s.observe(ctx, "document_content", caseID)
	defer func() { done(err) }()

	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, nil, err
	}
	idx := c.FindDocument(documentID)
	if idx < 0 {
		return nil, nil, dErrors.Newf(dErrors.CodeNotFound, "document %s not found", documentID)
	}
	doc = &c.Documents[idx]
	if doc.ContentRef == "" || s.contents == nil {
		return nil, nil, dErrors.Newf(dErrors.CodeNotFound, "content of document %s is not available", documentID)
	}
	obj, err = s.contents.Get(ctx, doc.ContentRef)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, nil, dErrors.Newf(dErrors.CodeNotFound, "content of document %s is not available", documentID)
	case err != nil:
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document content")
	}
	return doc, obj, nil
}

// ReviewDocument moves a document along its review state machine.
func (s *Service) ReviewDocument(ctx context.Context, caseID, documentID string, outcome models.DocumentStatus) (c *models.Case, doc *models.Document, err error) {
	ctx, done := s.observe(ctx, "review_document", caseID)
	defer func() { done(err) }()

	if _, err = models.ParseDocumentStatus(string(outcome)); err != nil {
		return nil, nil, err
	}

	c, err = s.mutate(ctx, caseID, func(ctx context.Context, c *models.Case, now time.Time) error {
		reviewed, err := c.ReviewDocument(documentID, outcome, now)
		if err != nil {
			return err
		}
		doc = reviewed
		return s.emit(ctx, audit.EventDocumentReviewed, c.ID, audit.Event{
			Subject:  documentID,
			Decision: string(outcome),
		})
	})
	if err != nil {
		return nil, nil, err
	}
	s.metrics.IncReview("document", string(outcome))
	return c, doc, nil
}

// AttachOCRResult stores the OCR collaborator's output on a document of an
// open case.
func (s *Service) AttachOCRResult(ctx context.Context, caseID, documentID string, classification models.Classification, metadata map[string]string) (c *models.Case, doc *models.Document, err error) {
	ctx, done := s.observe(ctx, "attach_ocr_result", caseID)
	defer func() { done(err) }()

	c, err = s.mutate(ctx, caseID, func(ctx context.Context, c *models.Case, now time.Time) error {
		attached, err := c.AttachOCRResult(documentID, classification, metadata, now)
		if err != nil {
			return err
		}
		doc = attached
		return s.emit(ctx, audit.EventOCRResultAttached, c.ID, audit.Event{
			Subject:  documentID,
			Decision: classification.DocumentType,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.InfoContext(ctx, "ocr result attached",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", caseID,
		"document_id", documentID,
		"document_type", classification.DocumentType,
	)
	return c, doc, nil
}
