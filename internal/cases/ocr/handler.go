// Package ocr attaches results from the OCR / document-AI collaborator to
// case documents. Results arrive asynchronously on a Kafka topic; ingestion
// never waits for them.
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"kycreview/internal/cases/models"
	"kycreview/internal/platform/kafka"
	dErrors "kycreview/pkg/domain-errors"
	"kycreview/pkg/requestcontext"
)

// Topic carries OCR results as JSON Result records keyed by case id.
const Topic = "kyc.ocr.results"

// Result is the collaborator's output for one document.
type Result struct {
	CaseID       string            `json:"caseId"`
	DocumentID   string            `json:"documentId"`
	DocumentType string            `json:"documentType"`
	Confidence   float64           `json:"confidence"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Attacher is the engine operation the handler drives.
type Attacher interface {
	AttachOCRResult(ctx context.Context, caseID, documentID string, classification models.Classification, metadata map[string]string) (*models.Case, *models.Document, error)
}

// Handler decodes OCR results and attaches them.
type Handler struct {
	engine Attacher
	logger *slog.Logger
}

func NewHandler(engine Attacher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{engine: engine, logger: logger}
}

// Handle processes one record. Results for decided cases or deleted
// documents are dropped with a log line. Malformed records and rejected
// classifications are skipped; anything else is returned for a retry.
func (h *Handler) Handle(ctx context.Context, msg *kafka.Message) error {
	var r Result
	if err := json.Unmarshal(msg.Value, &r); err != nil {
		return kafka.Skip(fmt.Errorf("decode ocr result at %s/%d/%d: %w", msg.Topic, msg.Partition, msg.Offset, err))
	}
	if r.CaseID == "" || r.DocumentID == "" {
		return kafka.Skip(fmt.Errorf("ocr result at %s/%d/%d is missing case or document id", msg.Topic, msg.Partition, msg.Offset))
	}

	ctx = requestcontext.WithActorID(ctx, "ocr-service")
	ctx = requestcontext.WithRequestID(ctx, fmt.Sprintf("ocr-%d-%d", msg.Partition, msg.Offset))

	_, _, err := h.engine.AttachOCRResult(ctx, r.CaseID, r.DocumentID,
		models.Classification{DocumentType: r.DocumentType, Confidence: r.Confidence}, r.Metadata)
	switch {
	case err == nil:
		return nil
	case dErrors.HasCode(err, dErrors.CodeNotFound), dErrors.HasCode(err, dErrors.CodeInvalidState):
		h.logger.InfoContext(ctx, "ocr result dropped",
			"case_id", r.CaseID,
			"document_id", r.DocumentID,
			"reason", err.Error(),
		)
		return nil
	case dErrors.HasCode(err, dErrors.CodeValidation):
		return kafka.Skip(err)
	default:
		return err
	}
}
