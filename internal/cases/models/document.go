package models

import (
	"time"

	dErrors "kycreview/pkg/domain-errors"
)

// Classification is the OCR collaborator's verdict on a document.
type Classification struct {
	DocumentType string  `json:"documentType"`
	Confidence   float64 `json:"confidence"`
}

// Document is an uploaded artifact owned by a case.
type Document struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Type           string            `json:"type"`
	Size           int64             `json:"size"`
	MIMEType       string            `json:"mimeType"`
	Category       Category          `json:"category"`
	Status         DocumentStatus    `json:"status"`
	Classification *Classification   `json:"classification,omitempty"`
	OCRMetadata    map[string]string `json:"ocrMetadata,omitempty"`
	OCRProcessed   bool              `json:"ocrProcessed"`
	UploadedAt     time.Time         `json:"uploadedAt"`
	// ContentRef locates the uploaded bytes in the content store. Empty for
	// documents whose body was never stored.
	ContentRef string `json:"contentRef,omitempty"`
}

// NewDocument builds a document awaiting review.
func NewDocument(documentID, name, docType, mimeType string, category Category, size int64, now time.Time) (*Document, error) {
	if documentID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document id cannot be empty")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document name cannot be empty")
	}
	if size <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document size must be positive")
	}
	return &Document{
		ID:         documentID,
		Name:       name,
		Type:       docType,
		Size:       size,
		MIMEType:   mimeType,
		Category:   category,
		Status:     DocumentStatusPendingReview,
		UploadedAt: now,
	}, nil
}

// CanDelete allows removal only before review has started.
func (d *Document) CanDelete() error {
	if d.Status != DocumentStatusPendingReview {
		return dErrors.Newf(dErrors.CodeInvalidState, "document %s is %s and can no longer be deleted", d.ID, d.Status)
	}
	return nil
}

// Review applies a review outcome through DocumentTransitions.
func (d *Document) Review(outcome DocumentStatus) error {
	if err := DocumentTransitions.Check(d.Status, outcome); err != nil {
		return err
	}
	d.Status = outcome
	return nil
}

func (d *Document) AttachOCR(classification Classification, metadata map[string]string) {
	c := classification
	d.Classification = &c
	d.OCRMetadata = cloneStrings(metadata)
	d.OCRProcessed = true
}

func (d Document) Clone() Document {
	out := d
	if d.Classification != nil {
		c := *d.Classification
		out.Classification = &c
	}
	out.OCRMetadata = cloneStrings(d.OCRMetadata)
	return out
}
