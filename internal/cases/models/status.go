package models

import (
	dErrors "kycreview/pkg/domain-errors"
)

// CaseStatus is the lifecycle stage of a case. These are the only legal wire values.
type CaseStatus string

const (
	CaseStatusIntake     CaseStatus = "Intake"
	CaseStatusIdentity   CaseStatus = "Identity"
	CaseStatusScreening  CaseStatus = "Screening"
	CaseStatusIngestion  CaseStatus = "Ingestion"
	CaseStatusDecision   CaseStatus = "Decision"
	CaseStatusMonitoring CaseStatus = "Monitoring"
	CaseStatusApproved   CaseStatus = "Approved"
	CaseStatusRejected   CaseStatus = "Rejected"
)

// CaseTransitions is the case lifecycle. Approved and Rejected are reachable
// from every open stage but only RecordDecision may target them.
var CaseTransitions = NewTransitions("case", map[CaseStatus][]CaseStatus{
	CaseStatusIntake:     {CaseStatusIdentity, CaseStatusIngestion, CaseStatusApproved, CaseStatusRejected},
	CaseStatusIdentity:   {CaseStatusScreening, CaseStatusIngestion, CaseStatusApproved, CaseStatusRejected},
	CaseStatusScreening:  {CaseStatusIngestion, CaseStatusDecision, CaseStatusApproved, CaseStatusRejected},
	CaseStatusIngestion:  {CaseStatusScreening, CaseStatusDecision, CaseStatusApproved, CaseStatusRejected},
	CaseStatusDecision:   {CaseStatusMonitoring, CaseStatusApproved, CaseStatusRejected},
	CaseStatusMonitoring: {CaseStatusDecision, CaseStatusApproved, CaseStatusRejected},
	CaseStatusApproved:   {},
	CaseStatusRejected:   {},
})

// intakeWindow lists the statuses during which documents may be uploaded.
var intakeWindow = map[CaseStatus]bool{
	CaseStatusIntake:    true,
	CaseStatusIdentity:  true,
	CaseStatusIngestion: true,
}

// CaseEvent is an engine-internal occurrence that may advance a case automatically.
type CaseEvent string

const (
	CaseEventDocumentIngested CaseEvent = "document_ingested"
)

type trigger struct {
	event CaseEvent
	from  CaseStatus
}

// caseTriggers holds every automatic advancement. Anything not listed leaves
// the status unchanged.
var caseTriggers = map[trigger]CaseStatus{
	{CaseEventDocumentIngested, CaseStatusIntake}: CaseStatusIngestion,
}

func (s CaseStatus) IsValid() bool { return CaseTransitions.Known(s) }

func (s CaseStatus) IsTerminal() bool { return CaseTransitions.IsTerminal(s) }

// InIntakeWindow reports whether documents may be uploaded in this status.
func (s CaseStatus) InIntakeWindow() bool { return intakeWindow[s] }

func (s CaseStatus) String() string { return string(s) }

// ParseCaseStatus rejects any value outside the enumeration.
func ParseCaseStatus(v string) (CaseStatus, error) {
	s := CaseStatus(v)
	if !s.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown case status %q", v)
	}
	return s, nil
}

// Decision is the reviewer's verdict on a case.
type Decision string

const (
	DecisionApprove Decision = "Approve"
	DecisionReject  Decision = "Reject"
	DecisionPending Decision = "Pending"
)

// decisionOutcomes maps a decision to the status it produces. Pending keeps
// the current status.
var decisionOutcomes = map[Decision]CaseStatus{
	DecisionApprove: CaseStatusApproved,
	DecisionReject:  CaseStatusRejected,
	DecisionPending: "",
}

func ParseDecision(v string) (Decision, error) {
	d := Decision(v)
	if _, ok := decisionOutcomes[d]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown decision %q", v)
	}
	return d, nil
}

// DocumentStatus is the review state of an uploaded document.
type DocumentStatus string

const (
	DocumentStatusPendingReview DocumentStatus = "Pending Review"
	DocumentStatusUnderReview   DocumentStatus = "Under Review"
	DocumentStatusVerified      DocumentStatus = "Verified"
	DocumentStatusRejected      DocumentStatus = "Rejected"
)

var DocumentTransitions = NewTransitions("document", map[DocumentStatus][]DocumentStatus{
	DocumentStatusPendingReview: {DocumentStatusUnderReview, DocumentStatusVerified, DocumentStatusRejected},
	DocumentStatusUnderReview:   {DocumentStatusVerified, DocumentStatusRejected},
	DocumentStatusVerified:      {},
	DocumentStatusRejected:      {},
})

func ParseDocumentStatus(v string) (DocumentStatus, error) {
	s := DocumentStatus(v)
	if !DocumentTransitions.Known(s) {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown document status %q", v)
	}
	return s, nil
}

// StatementReviewStatus is the review state of a bank statement.
type StatementReviewStatus string

const (
	StatementPendingReview StatementReviewStatus = "Pending Review"
	StatementUnderReview   StatementReviewStatus = "Under Review"
	StatementApproved      StatementReviewStatus = "Approved"
	StatementRejected      StatementReviewStatus = "Rejected"
)

var StatementTransitions = NewTransitions("bank statement", map[StatementReviewStatus][]StatementReviewStatus{
	StatementPendingReview: {StatementUnderReview, StatementApproved, StatementRejected},
	StatementUnderReview:   {StatementApproved, StatementRejected},
	StatementApproved:      {},
	StatementRejected:      {},
})

func ParseStatementReviewStatus(v string) (StatementReviewStatus, error) {
	s := StatementReviewStatus(v)
	if !StatementTransitions.Known(s) {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown bank statement review status %q", v)
	}
	return s, nil
}

// FormReviewStatus is the review state of the occupation / wealth form.
type FormReviewStatus string

const (
	FormPendingReview          FormReviewStatus = "Pending Review"
	FormApproved               FormReviewStatus = "Approved"
	FormAdditionalInfoRequired FormReviewStatus = "Additional Info Required"
	FormRejected               FormReviewStatus = "Rejected"
)

// FormTransitions: Additional Info Required reopens the form, so it accepts
// the same outcomes as Pending Review.
var FormTransitions = NewTransitions("occupation form", map[FormReviewStatus][]FormReviewStatus{
	FormPendingReview:          {FormApproved, FormAdditionalInfoRequired, FormRejected},
	FormAdditionalInfoRequired: {FormApproved, FormAdditionalInfoRequired, FormRejected},
	FormApproved:               {},
	FormRejected:               {},
})

func ParseFormReviewStatus(v string) (FormReviewStatus, error) {
	s := FormReviewStatus(v)
	if !FormTransitions.Known(s) {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown occupation form review status %q", v)
	}
	return s, nil
}

// Category is the document grouping that decides which review applies.
type Category string

const (
	CategoryPrimaryID            Category = "Primary ID"
	CategoryAddressVerification  Category = "Address Verification"
	CategoryBankStatement        Category = "Bank Statement"
	CategoryIncomeProof          Category = "Income Proof"
	CategoryBusinessVerification Category = "Business Verification"
	CategoryWealthVerification   Category = "Wealth Verification"
	CategoryOther                Category = "Other"
)
