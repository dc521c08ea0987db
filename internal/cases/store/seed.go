package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"kycreview/internal/cases/models"
	"kycreview/pkg/platform/sentinel"
)

// Creator is the part of a store Seed needs.
type Creator interface {
	Create(ctx context.Context, c *models.Case, fn func(ctx context.Context) error) error
}

// Seed loads the demo cases used for local runs. Cases that already exist
// are left untouched, so Seed can run on every start.
func Seed(ctx context.Context, s Creator) (int, error) {
	created := 0
	for _, c := range SeedCases() {
		err := s.Create(ctx, c, nil)
		if errors.Is(err, sentinel.ErrConflict) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func confidence(v float64) *float64 { return &v }

func seedTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339, v)
	return t
}

// SeedCases returns fresh copies of the demo cases.
func SeedCases() []*models.Case {
	return []*models.Case{
		{
			ID: "C-1001",
			Customer: models.Customer{
				Name: "John Smith", DOB: "1985-03-15",
				Address: "123 Main St, New York, NY 10001", Tier: "Standard",
			},
			Status:    models.CaseStatusScreening,
			RiskScore: 0.25,
			Checks: []models.Check{
				{Type: "Identity Verification", Result: models.CheckPass, Confidence: confidence(0.95), Details: "Document verified successfully"},
				{Type: "Address Verification", Result: models.CheckPass, Confidence: confidence(0.88), Details: "Address confirmed via utility bill"},
				{Type: "PEP Screening", Result: models.CheckPending, Details: "Awaiting database response"},
			},
			Documents: []models.Document{},
			BankStatements: []models.BankStatement{
				{
					ID: "BS-1001-1", Bank: "Chase", AccountType: "Checking", Period: "2024-10",
					AverageBalance: decimal.RequireFromString("12450.00"), MonthlyIncome: decimal.RequireFromString("6200.00"),
					ReviewStatus: models.StatementPendingReview,
				},
				{
					ID: "BS-1001-2", Bank: "Chase", AccountType: "Checking", Period: "2024-11",
					AverageBalance: decimal.RequireFromString("11980.50"), MonthlyIncome: decimal.RequireFromString("6200.00"),
					FlaggedTransactions: 1, ReviewStatus: models.StatementPendingReview,
				},
			},
			CreatedAt: seedTime("2025-01-08T10:30:00Z"),
			UpdatedAt: seedTime("2025-01-08T10:30:00Z"),
		},
		{
			ID: "C-1002",
			Customer: models.Customer{
				Name: "Sarah Johnson", DOB: "1990-07-22",
				Address: "456 Oak Ave, Los Angeles, CA 90001", Tier: "Premium",
			},
			Status:    models.CaseStatusDecision,
			RiskScore: 0.15,
			Checks: []models.Check{
				{Type: "Identity Verification", Result: models.CheckPass, Confidence: confidence(0.98), Details: "Biometric match confirmed"},
				{Type: "Address Verification", Result: models.CheckPass, Confidence: confidence(0.92), Details: "Address verified through bank statement"},
				{Type: "PEP Screening", Result: models.CheckClear, Confidence: confidence(0.99), Details: "No matches found"},
				{Type: "Sanctions Screening", Result: models.CheckClear, Confidence: confidence(0.99), Details: "No sanctions matches"},
			},
			Documents: []models.Document{},
			CreatedAt: seedTime("2025-01-07T14:20:00Z"),
			UpdatedAt: seedTime("2025-01-07T14:20:00Z"),
		},
		{
			ID: "C-1003",
			Customer: models.Customer{
				Name: "Michael Chen", DOB: "1978-11-30",
				Address: "789 Pine St, San Francisco, CA 94102", Tier: "VIP", IsWealthCustomer: true,
			},
			Status:    models.CaseStatusMonitoring,
			RiskScore: 0.20,
			Checks: []models.Check{
				{Type: "Identity Verification", Result: models.CheckPass, Confidence: confidence(0.96), Details: "Identity confirmed"},
				{Type: "Address Verification", Result: models.CheckPass, Confidence: confidence(0.90), Details: "Verified via credit report"},
				{Type: "PEP Screening", Result: models.CheckClear, Confidence: confidence(0.97), Details: "No PEP matches"},
				{Type: "Transaction Monitoring", Result: models.CheckNormal, Confidence: confidence(0.85), Details: "Transaction patterns within normal range"},
			},
			Documents: []models.Document{},
			BankStatements: []models.BankStatement{
				{
					ID: "BS-1003-1", Bank: "Citibank", AccountType: "Private Banking", Period: "2024-12",
					AverageBalance: decimal.RequireFromString("2450000.00"), MonthlyIncome: decimal.RequireFromString("85000.00"),
					ReviewStatus: models.StatementPendingReview,
				},
			},
			OccupationForm: &models.OccupationForm{
				Occupation: "Managing Director", Employer: "Chen Capital Partners",
				EmploymentStatus: "Self-employed", YearsEmployed: 14,
				AnnualIncome: decimal.RequireFromString("1200000"), NetWorth: decimal.RequireFromString("18500000"),
				SourceOfWealth:          "Business ownership and investments",
				ExpectedAccountActivity: "Quarterly transfers above 250,000 USD",
				VerificationDocuments:   []string{"audited_accounts_2023.pdf", "tax_return_2023.pdf"},
				ReviewStatus:            models.FormPendingReview,
			},
			CreatedAt: seedTime("2025-01-05T09:15:00Z"),
			UpdatedAt: seedTime("2025-01-05T09:15:00Z"),
		},
		{
			ID: "C-1004",
			Customer: models.Customer{
				Name: "Emma Wilson", DOB: "1995-05-18",
				Address: "321 Elm St, Chicago, IL 60601", Tier: "Standard",
			},
			Status:    models.CaseStatusIntake,
			RiskScore: 0.0,
			Checks:    []models.Check{},
			Documents: []models.Document{},
			CreatedAt: seedTime("2025-01-09T08:00:00Z"),
			UpdatedAt: seedTime("2025-01-09T08:00:00Z"),
		},
		{
			ID: "C-1005",
			Customer: models.Customer{
				Name: "Robert Martinez", DOB: "1982-09-08",
				Address: "555 Market St, Miami, FL 33101", Tier: "Premium",
			},
			Status:    models.CaseStatusIdentity,
			RiskScore: 0.45,
			Checks: []models.Check{
				{Type: "Identity Verification", Result: models.CheckReview, Confidence: confidence(0.72), Details: "Manual review required - document quality issue"},
			},
			Documents: []models.Document{},
			CreatedAt: seedTime("2025-01-08T16:45:00Z"),
			UpdatedAt: seedTime("2025-01-08T16:45:00Z"),
		},
	}
}
