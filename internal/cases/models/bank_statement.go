package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankStatement is a statement under banking review. Created at intake,
// mutated only by Review, never deleted.
type BankStatement struct {
	ID                  string                `json:"id"`
	Bank                string                `json:"bank"`
	AccountType         string                `json:"accountType"`
	Period              string                `json:"period"`
	AverageBalance      decimal.Decimal       `json:"averageBalance"`
	MonthlyIncome       decimal.Decimal       `json:"monthlyIncome"`
	FlaggedTransactions int                   `json:"flaggedTransactions"`
	ReviewStatus        StatementReviewStatus `json:"reviewStatus"`
	ReviewedBy          string                `json:"reviewedBy,omitempty"`
	ReviewDate          *time.Time            `json:"reviewDate,omitempty"`
	Notes               string                `json:"notes,omitempty"`
}

// Review applies an outcome through StatementTransitions and stamps the reviewer.
func (s *BankStatement) Review(outcome StatementReviewStatus, reviewer, notes string, now time.Time) error {
	if err := StatementTransitions.Check(s.ReviewStatus, outcome); err != nil {
		return err
	}
	s.ReviewStatus = outcome
	s.ReviewedBy = reviewer
	s.ReviewDate = &now
	s.Notes = notes
	return nil
}

func (s BankStatement) Clone() BankStatement {
	out := s
	if s.ReviewDate != nil {
		t := *s.ReviewDate
		out.ReviewDate = &t
	}
	return out
}
