package models

import (
	"maps"
	"slices"
	"time"

	dErrors "kycreview/pkg/domain-errors"
)

// Customer is the onboarding subject. Immutable after case creation.
type Customer struct {
	Name             string `json:"name"`
	DOB              string `json:"dob"`
	Address          string `json:"address"`
	Tier             string `json:"tier"`
	IsWealthCustomer bool   `json:"isWealthCustomer"`
}

// CheckResult is open-ended: screening collaborators add new values over time.
type CheckResult string

const (
	CheckPass    CheckResult = "Pass"
	CheckPending CheckResult = "Pending"
	CheckReview  CheckResult = "Review"
	CheckClear   CheckResult = "Clear"
	CheckNormal  CheckResult = "Normal"
)

// Check is an automated screening result. The engine only reads checks.
type Check struct {
	Type       string      `json:"type"`
	Result     CheckResult `json:"result"`
	Confidence *float64    `json:"confidence,omitempty"`
	Details    string      `json:"details,omitempty"`
}

// Case is the aggregate root for one customer's KYC review.
//
// Invariants:
//   - Status is one of the CaseTransitions states
//   - Approved and Rejected are terminal: no status, document, bank statement
//     or occupation form mutation once reached
//   - DecisionNote and a terminal Status are only set by ApplyDecision
//   - OccupationForm is present iff Customer.IsWealthCustomer
//   - Documents may only be added while Status is in the intake window
type Case struct {
	ID             string          `json:"id"`
	Customer       Customer        `json:"customer"`
	Status         CaseStatus      `json:"status"`
	RiskScore      float64         `json:"riskScore"`
	Checks         []Check         `json:"checks"`
	Documents      []Document      `json:"documents"`
	BankStatements []BankStatement `json:"bankStatements,omitempty"`
	OccupationForm *OccupationForm `json:"occupationForm,omitempty"`
	DecisionNote   string          `json:"decisionNote,omitempty"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// NewCase validates intake data and opens a case in Intake.
func NewCase(
	caseID string,
	customer Customer,
	riskScore float64,
	checks []Check,
	statements []BankStatement,
	form *OccupationForm,
	now time.Time,
) (*Case, error) {
	if caseID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "case id cannot be empty")
	}
	if customer.Name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "customer name cannot be empty")
	}
	if riskScore < 0 || riskScore > 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "risk score must be within [0,1]")
	}
	if customer.IsWealthCustomer && form == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "wealth customers require an occupation form")
	}
	if !customer.IsWealthCustomer && form != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "occupation form only applies to wealth customers")
	}
	for _, chk := range checks {
		if chk.Confidence != nil && (*chk.Confidence < 0 || *chk.Confidence > 1) {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "check confidence must be within [0,1]")
		}
	}
	for i := range statements {
		if statements[i].FlaggedTransactions < 0 {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "flagged transactions cannot be negative")
		}
		statements[i].ReviewStatus = StatementPendingReview
	}
	if form != nil {
		form.ReviewStatus = FormPendingReview
	}
	if checks == nil {
		checks = []Check{}
	}
	return &Case{
		ID:             caseID,
		Customer:       customer,
		Status:         CaseStatusIntake,
		RiskScore:      riskScore,
		Checks:         checks,
		Documents:      []Document{},
		BankStatements: statements,
		OccupationForm: form,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (c *Case) IsTerminal() bool {
	return c.Status.IsTerminal()
}

// RequireOpen fails with invalid_state once the case is decided.
func (c *Case) RequireOpen() error {
	if c.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvalidState, "case %s is %s and can no longer change", c.ID, c.Status)
	}
	return nil
}

// CanRecordDecision checks the decision gate.
func (c *Case) CanRecordDecision() error {
	return c.RequireOpen()
}

// ApplyDecision records the verdict. Pending updates only the note.
// Call CanRecordDecision first.
func (c *Case) ApplyDecision(d Decision, note string, now time.Time) {
	if target := decisionOutcomes[d]; target != "" {
		c.Status = target
	}
	c.DecisionNote = note
	c.touch(now)
}

// CanAdvanceTo validates a manual stage move. Terminal targets are reserved
// for decisions.
func (c *Case) CanAdvanceTo(target CaseStatus) error {
	if !target.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown case status %q", target)
	}
	if target.IsTerminal() {
		return dErrors.New(dErrors.CodeInvalidState, "terminal statuses are set by recording a decision")
	}
	return CaseTransitions.Check(c.Status, target)
}

func (c *Case) ApplyAdvance(target CaseStatus, now time.Time) {
	c.Status = target
	c.touch(now)
}

// CanUploadDocuments checks the intake window.
func (c *Case) CanUploadDocuments() error {
	if err := c.RequireOpen(); err != nil {
		return err
	}
	if !c.Status.InIntakeWindow() {
		return dErrors.Newf(dErrors.CodeInvalidState, "documents cannot be uploaded while case is in %s", c.Status)
	}
	return nil
}

// ApplyDocuments appends ingested documents in order and fires the
// document-ingested trigger when these are the case's first documents.
// Returns true when the status changed.
func (c *Case) ApplyDocuments(docs []Document, now time.Time) bool {
	if len(docs) == 0 {
		return false
	}
	first := len(c.Documents) == 0
	c.Documents = append(c.Documents, docs...)
	c.touch(now)
	if first {
		return c.fire(CaseEventDocumentIngested)
	}
	return false
}

func (c *Case) fire(event CaseEvent) bool {
	target, ok := caseTriggers[trigger{event: event, from: c.Status}]
	if !ok || !CaseTransitions.Allowed(c.Status, target) {
		return false
	}
	c.Status = target
	return true
}

// FindDocument returns the index of a document, or -1.
func (c *Case) FindDocument(documentID string) int {
	return slices.IndexFunc(c.Documents, func(d Document) bool { return d.ID == documentID })
}

// DeleteDocument removes a document still awaiting review.
func (c *Case) DeleteDocument(documentID string, now time.Time) (*Document, error) {
	idx := c.FindDocument(documentID)
	if idx < 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "document %s not found", documentID)
	}
	doc := c.Documents[idx]
	if err := doc.CanDelete(); err != nil {
		return nil, err
	}
	c.Documents = slices.Delete(c.Documents, idx, idx+1)
	c.touch(now)
	return &doc, nil
}

// ReviewDocument moves a document through its review state machine.
func (c *Case) ReviewDocument(documentID string, outcome DocumentStatus, now time.Time) (*Document, error) {
	idx := c.FindDocument(documentID)
	if idx < 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "document %s not found", documentID)
	}
	if err := c.Documents[idx].Review(outcome); err != nil {
		return nil, err
	}
	c.touch(now)
	doc := c.Documents[idx]
	return &doc, nil
}

// AttachOCRResult stores the collaborator's classification and extracted fields.
func (c *Case) AttachOCRResult(documentID string, classification Classification, metadata map[string]string, now time.Time) (*Document, error) {
	idx := c.FindDocument(documentID)
	if idx < 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "document %s not found", documentID)
	}
	if classification.Confidence < 0 || classification.Confidence > 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "classification confidence must be within [0,1]")
	}
	c.Documents[idx].AttachOCR(classification, metadata)
	c.touch(now)
	doc := c.Documents[idx]
	return &doc, nil
}

// ReviewBankStatement records a reviewer's outcome on one statement. It never
// changes the case status.
func (c *Case) ReviewBankStatement(statementID string, outcome StatementReviewStatus, reviewer, notes string, now time.Time) (*BankStatement, error) {
	idx := slices.IndexFunc(c.BankStatements, func(s BankStatement) bool { return s.ID == statementID })
	if idx < 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "bank statement %s not found", statementID)
	}
	if err := c.BankStatements[idx].Review(outcome, reviewer, notes, now); err != nil {
		return nil, err
	}
	c.touch(now)
	stmt := c.BankStatements[idx]
	return &stmt, nil
}

// ReviewOccupationForm records a reviewer's outcome on the wealth form.
func (c *Case) ReviewOccupationForm(outcome FormReviewStatus, reviewer string, now time.Time) (*OccupationForm, error) {
	if !c.Customer.IsWealthCustomer {
		return nil, dErrors.New(dErrors.CodeNotApplicable, "occupation form review only applies to wealth customers")
	}
	if c.OccupationForm == nil {
		return nil, dErrors.New(dErrors.CodeNotApplicable, "case has no occupation form")
	}
	if err := c.OccupationForm.Review(outcome, reviewer, now); err != nil {
		return nil, err
	}
	c.touch(now)
	form := c.OccupationForm.Clone()
	return form, nil
}

// BankingSummary counts statements per review status. The decision step uses
// it to judge the banking verdict; nothing is automated from it.
func (c *Case) BankingSummary() map[StatementReviewStatus]int {
	out := make(map[StatementReviewStatus]int, len(c.BankStatements))
	for _, s := range c.BankStatements {
		out[s.ReviewStatus]++
	}
	return out
}

func (c *Case) touch(now time.Time) {
	c.UpdatedAt = now
}

// Clone returns a deep copy so stores can hand out and accept cases without
// sharing mutable state.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	out := *c
	out.Checks = make([]Check, len(c.Checks))
	for i, chk := range c.Checks {
		out.Checks[i] = chk
		if chk.Confidence != nil {
			v := *chk.Confidence
			out.Checks[i].Confidence = &v
		}
	}
	out.Documents = make([]Document, len(c.Documents))
	for i := range c.Documents {
		out.Documents[i] = c.Documents[i].Clone()
	}
	if c.BankStatements != nil {
		out.BankStatements = make([]BankStatement, len(c.BankStatements))
		for i := range c.BankStatements {
			out.BankStatements[i] = c.BankStatements[i].Clone()
		}
	}
	out.OccupationForm = c.OccupationForm.Clone()
	return &out
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}
