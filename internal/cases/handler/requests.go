package handler

import (
	"github.com/shopspring/decimal"

	"kycreview/internal/cases/models"
	"kycreview/internal/cases/service"
)

// CreateCaseRequest is the body of POST /api/cases.
type CreateCaseRequest struct {
	ID             string                 `json:"id" validate:"omitempty,max=64"`
	Customer       CustomerRequest        `json:"customer" validate:"required"`
	RiskScore      float64                `json:"riskScore" validate:"gte=0,lte=1"`
	Checks         []CheckRequest         `json:"checks" validate:"omitempty,max=50,dive"`
	BankStatements []BankStatementRequest `json:"bankStatements" validate:"omitempty,max=50,dive"`
	OccupationForm *OccupationFormRequest `json:"occupationForm" validate:"omitempty"`
}

type CustomerRequest struct {
	Name             string `json:"name" validate:"required,max=200"`
	DOB              string `json:"dob" validate:"omitempty,max=32"`
	Address          string `json:"address" validate:"omitempty,max=500"`
	Tier             string `json:"tier" validate:"omitempty,max=64"`
	IsWealthCustomer bool   `json:"isWealthCustomer"`
}

type CheckRequest struct {
	Type       string   `json:"type" validate:"required,max=100"`
	Result     string   `json:"result" validate:"required,max=64"`
	Confidence *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
	Details    string   `json:"details" validate:"omitempty,max=1000"`
}

type BankStatementRequest struct {
	ID                  string          `json:"id" validate:"omitempty,max=64"`
	Bank                string          `json:"bank" validate:"required,max=200"`
	AccountType         string          `json:"accountType" validate:"omitempty,max=100"`
	Period              string          `json:"period" validate:"omitempty,max=100"`
	AverageBalance      decimal.Decimal `json:"averageBalance"`
	MonthlyIncome       decimal.Decimal `json:"monthlyIncome"`
	FlaggedTransactions int             `json:"flaggedTransactions" validate:"gte=0"`
}

type OccupationFormRequest struct {
	Occupation              string          `json:"occupation" validate:"required,max=200"`
	Employer                string          `json:"employer" validate:"omitempty,max=200"`
	EmploymentStatus        string          `json:"employmentStatus" validate:"omitempty,max=100"`
	YearsEmployed           int             `json:"yearsEmployed" validate:"gte=0"`
	AnnualIncome            decimal.Decimal `json:"annualIncome"`
	NetWorth                decimal.Decimal `json:"netWorth"`
	SourceOfWealth          string          `json:"sourceOfWealth" validate:"omitempty,max=500"`
	ExpectedAccountActivity string          `json:"expectedAccountActivity" validate:"omitempty,max=500"`
	PoliticalExposure       bool            `json:"politicalExposure"`
	VerificationDocuments   []string        `json:"verificationDocuments" validate:"omitempty,max=20,dive,max=200"`
}

// ToService maps the wire shape onto the engine's intake command.
func (r *CreateCaseRequest) ToService() service.NewCaseRequest {
	req := service.NewCaseRequest{
		ID: r.ID,
		Customer: models.Customer{
			Name:             r.Customer.Name,
			DOB:              r.Customer.DOB,
			Address:          r.Customer.Address,
			Tier:             r.Customer.Tier,
			IsWealthCustomer: r.Customer.IsWealthCustomer,
		},
		RiskScore: r.RiskScore,
	}
	for _, c := range r.Checks {
		req.Checks = append(req.Checks, models.Check{
			Type:       c.Type,
			Result:     models.CheckResult(c.Result),
			Confidence: c.Confidence,
			Details:    c.Details,
		})
	}
	for _, s := range r.BankStatements {
		req.BankStatements = append(req.BankStatements, models.BankStatement{
			ID:                  s.ID,
			Bank:                s.Bank,
			AccountType:         s.AccountType,
			Period:              s.Period,
			AverageBalance:      s.AverageBalance,
			MonthlyIncome:       s.MonthlyIncome,
			FlaggedTransactions: s.FlaggedTransactions,
		})
	}
	if f := r.OccupationForm; f != nil {
		req.OccupationForm = &models.OccupationForm{
			Occupation:              f.Occupation,
			Employer:                f.Employer,
			EmploymentStatus:        f.EmploymentStatus,
			YearsEmployed:           f.YearsEmployed,
			AnnualIncome:            f.AnnualIncome,
			NetWorth:                f.NetWorth,
			SourceOfWealth:          f.SourceOfWealth,
			ExpectedAccountActivity: f.ExpectedAccountActivity,
			PoliticalExposure:       f.PoliticalExposure,
			VerificationDocuments:   f.VerificationDocuments,
		}
	}
	return req
}

// DecisionRequest is the body of POST /api/cases/{caseID}/decision.
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required"`
	Note     string `json:"note" validate:"max=2000"`
}

// AdvanceStatusRequest is the body of POST /api/cases/{caseID}/status.
type AdvanceStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// DocumentReviewRequest is the body of POST .../documents/{documentID}/review.
type DocumentReviewRequest struct {
	Status string `json:"status" validate:"required"`
}

// BankStatementReviewRequest is the body of POST .../bank-statements/{statementID}/review.
// Reviewer defaults to the X-Actor-ID caller.
type BankStatementReviewRequest struct {
	Status   string `json:"status" validate:"required"`
	Reviewer string `json:"reviewer" validate:"max=200"`
	Notes    string `json:"notes" validate:"max=2000"`
}

// OccupationFormReviewRequest is the body of POST .../occupation-form/review.
type OccupationFormReviewRequest struct {
	Status   string `json:"status" validate:"required"`
	Reviewer string `json:"reviewer" validate:"max=200"`
}
