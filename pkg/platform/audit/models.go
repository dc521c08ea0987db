package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so stores
// and sinks can apply different retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: case
	// decisions and review outcomes that a KYC examiner may ask to see.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted by the workflow engine to capture key actions. It is
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string        `json:"id"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	CaseID    string        `json:"caseId"`
	// Subject identifies the entity acted upon inside the case (document,
	// bank statement, occupation form). Empty for case-level events.
	Subject   string `json:"subject,omitempty"`
	Action    string `json:"action"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	ActorID   string `json:"actorId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	// Ref points at stored document content, for collaborators that need
	// the uploaded bytes.
	Ref string `json:"ref,omitempty"`
}

type AuditEvent string

const (
	EventCaseCreated           AuditEvent = "case_created"
	EventCaseStatusAdvanced    AuditEvent = "case_status_advanced"
	EventDecisionRecorded      AuditEvent = "case_decision_recorded"
	EventDocumentUploaded      AuditEvent = "document_uploaded"
	EventDocumentRejected      AuditEvent = "document_rejected"
	EventDocumentDeleted       AuditEvent = "document_deleted"
	EventDocumentReviewed      AuditEvent = "document_reviewed"
	EventBankStatementReviewed AuditEvent = "bank_statement_reviewed"
	EventOccupationFormReview  AuditEvent = "occupation_form_reviewed"
	EventOCRResultAttached     AuditEvent = "ocr_result_attached"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDecisionRecorded:      CategoryCompliance,
	EventDocumentReviewed:      CategoryCompliance,
	EventDocumentDeleted:       CategoryCompliance,
	EventBankStatementReviewed: CategoryCompliance,
	EventOccupationFormReview:  CategoryCompliance,

	EventCaseCreated:        CategoryOperations,
	EventCaseStatusAdvanced: CategoryOperations,
	EventDocumentUploaded:   CategoryOperations,
	EventDocumentRejected:   CategoryOperations,
	EventOCRResultAttached:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. Implementations honour a transaction carried
// in ctx so events commit together with the case mutation that caused them.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader lists materialized audit events for a case, oldest first.
type Reader interface {
	ListByCase(ctx context.Context, caseID string, actions ...AuditEvent) ([]Event, error)
}
