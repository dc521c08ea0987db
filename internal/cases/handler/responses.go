package handler

import (
	"errors"

	"kycreview/internal/cases/models"
	"kycreview/internal/cases/service"
	dErrors "kycreview/pkg/domain-errors"
	audit "kycreview/pkg/platform/audit"
)

// CaseListResponse wraps GET /api/cases.
type CaseListResponse struct {
	Cases []*models.Case `json:"cases"`
	Count int            `json:"count"`
}

// WorkflowResponse is the review graph plus the node for the requested case, if any.
type WorkflowResponse struct {
	models.Workflow
	CurrentNode string `json:"currentNode,omitempty"`
}

// FileErrorResponse reports one rejected file of a batch.
type FileErrorResponse struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// UploadResponse is the body of POST /api/cases/{caseID}/documents.
type UploadResponse struct {
	Case      *models.Case        `json:"case"`
	Documents []models.Document   `json:"documents"`
	Errors    []FileErrorResponse `json:"errors"`
	Replayed  bool                `json:"replayed"`
}

func fromUploadResult(res *service.UploadResult) *UploadResponse {
	out := &UploadResponse{
		Case:      res.Case,
		Documents: res.Documents,
		Errors:    make([]FileErrorResponse, 0, len(res.Errors)),
		Replayed:  res.Replayed,
	}
	if out.Documents == nil {
		out.Documents = []models.Document{}
	}
	for _, fe := range res.Errors {
		msg := fe.Err.Error()
		var de *dErrors.Error
		if errors.As(fe.Err, &de) {
			msg = de.Message
		}
		out.Errors = append(out.Errors, FileErrorResponse{
			Index:       fe.Index,
			Name:        fe.Name,
			Error:       string(dErrors.CodeOf(fe.Err)),
			Description: msg,
		})
	}
	return out
}

// DocumentResponse returns the changed document together with its case.
type DocumentResponse struct {
	Case     *models.Case     `json:"case"`
	Document *models.Document `json:"document"`
}

type BankStatementResponse struct {
	Case          *models.Case          `json:"case"`
	BankStatement *models.BankStatement `json:"bankStatement"`
}

type OccupationFormResponse struct {
	Case           *models.Case           `json:"case"`
	OccupationForm *models.OccupationForm `json:"occupationForm"`
}

type AuditTrailResponse struct {
	CaseID string        `json:"caseId"`
	Events []audit.Event `json:"events"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
