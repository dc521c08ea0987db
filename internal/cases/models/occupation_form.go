package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OccupationForm is the wealth / occupation questionnaire of a wealth-tier customer.
type OccupationForm struct {
	Occupation              string           `json:"occupation"`
	Employer                string           `json:"employer"`
	EmploymentStatus        string           `json:"employmentStatus"`
	YearsEmployed           int              `json:"yearsEmployed"`
	AnnualIncome            decimal.Decimal  `json:"annualIncome"`
	NetWorth                decimal.Decimal  `json:"netWorth"`
	SourceOfWealth          string           `json:"sourceOfWealth"`
	ExpectedAccountActivity string           `json:"expectedAccountActivity"`
	PoliticalExposure       bool             `json:"politicalExposure"`
	VerificationDocuments   []string         `json:"verificationDocuments"`
	ReviewStatus            FormReviewStatus `json:"reviewStatus"`
	ReviewedBy              string           `json:"reviewedBy,omitempty"`
	ReviewDate              *time.Time       `json:"reviewDate,omitempty"`
}

// Review applies an outcome through FormTransitions.
func (f *OccupationForm) Review(outcome FormReviewStatus, reviewer string, now time.Time) error {
	if err := FormTransitions.Check(f.ReviewStatus, outcome); err != nil {
		return err
	}
	f.ReviewStatus = outcome
	f.ReviewedBy = reviewer
	f.ReviewDate = &now
	return nil
}

func (f *OccupationForm) Clone() *OccupationForm {
	if f == nil {
		return nil
	}
	out := *f
	out.VerificationDocuments = append([]string(nil), f.VerificationDocuments...)
	if f.ReviewDate != nil {
		t := *f.ReviewDate
		out.ReviewDate = &t
	}
	return &out
}
