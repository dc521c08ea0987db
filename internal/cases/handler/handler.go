// Package handler exposes the case workflow engine over HTTP.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"kycreview/internal/cases/content"
	"kycreview/internal/cases/ingestion"
	"kycreview/internal/cases/models"
	"kycreview/internal/cases/service"
	dErrors "kycreview/pkg/domain-errors"
	audit "kycreview/pkg/platform/audit"
	"kycreview/pkg/platform/httputil"
	"kycreview/pkg/requestcontext"
)

const (
	// HeaderIdempotencyKey makes an upload retry-safe per case.
	HeaderIdempotencyKey = "Idempotency-Key"

	// sniffBytes is enough for mimetype to recognise every allowed type.
	sniffBytes = 3072
	// defaultMaxFiles bounds one batch, and with the per-file limit the
	// memory an upload request can hold.
	defaultMaxFiles = 20
)

// Service defines the engine operations the handler drives.
type Service interface {
	CreateCase(ctx context.Context, req service.NewCaseRequest) (*models.Case, error)
	GetCase(ctx context.Context, caseID string) (*models.Case, error)
	ListCases(ctx context.Context, status string) ([]*models.Case, error)
	AdvanceStatus(ctx context.Context, caseID string, target models.CaseStatus) (*models.Case, error)
	RecordDecision(ctx context.Context, caseID string, decision models.Decision, note string) (*models.Case, error)
	UploadDocuments(ctx context.Context, caseID, requestID string, files []ingestion.File) (*service.UploadResult, error)
	DocumentContent(ctx context.Context, caseID, documentID string) (*models.Document, *content.Object, error)
	DeleteDocument(ctx context.Context, caseID, documentID string) (*models.Case, error)
	ReviewDocument(ctx context.Context, caseID, documentID string, outcome models.DocumentStatus) (*models.Case, *models.Document, error)
	ReviewBankStatement(ctx context.Context, caseID, statementID string, outcome models.StatementReviewStatus, reviewer, notes string) (*models.Case, *models.BankStatement, error)
	ReviewOccupationForm(ctx context.Context, caseID string, outcome models.FormReviewStatus, reviewer string) (*models.Case, *models.OccupationForm, error)
	AuditTrail(ctx context.Context, caseID string) ([]audit.Event, error)
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Handler wires case endpoints to the workflow engine.
type Handler struct {
	service     Service
	logger      *slog.Logger
	health      map[string]HealthCheck
	maxFileSize int64
	maxFiles    int
}

// Option configures a Handler.
type Option func(*Handler)

// WithHealthCheck adds a named dependency probe to GET /api/health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) {
		h.health[name] = check
	}
}

// WithMaxFileSize sets how many bytes of one file part are kept. Larger
// parts are drained and left to the ingestion gate to reject.
func WithMaxFileSize(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxFileSize = n
		}
	}
}

// WithMaxFiles caps the number of files in one upload request.
func WithMaxFiles(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxFiles = n
		}
	}
}

// New constructs a case handler with its dependencies.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:     service,
		logger:      logger,
		health:      make(map[string]HealthCheck),
		maxFileSize: ingestion.MaxFileSize,
		maxFiles:    defaultMaxFiles,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts case endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.Get("/workflow", h.HandleWorkflow)
		r.Get("/cases", h.HandleListCases)
		r.Post("/cases", h.HandleCreateCase)
		r.Route("/cases/{caseID}", func(r chi.Router) {
			r.Get("/", h.HandleGetCase)
			r.Get("/audit", h.HandleAuditTrail)
			r.Post("/decision", h.HandleRecordDecision)
			r.Post("/status", h.HandleAdvanceStatus)
			r.Post("/documents", h.HandleUploadDocuments)
			r.Delete("/documents/{documentID}", h.HandleDeleteDocument)
			r.Get("/documents/{documentID}/preview", h.HandleDocumentPreview)
			r.Post("/documents/{documentID}/review", h.HandleReviewDocument)
			r.Post("/bank-statements/{statementID}/review", h.HandleReviewBankStatement)
			r.Post("/occupation-form/review", h.HandleReviewOccupationForm)
		})
	})
}

// HandleHealth handles GET /api/health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := HealthResponse{Status: "healthy"}
	if len(h.health) > 0 {
		resp.Checks = make(map[string]string, len(h.health))
	}
	status := http.StatusOK
	for name, check := range h.health {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check(checkCtx)
		cancel()
		if err != nil {
			h.logger.WarnContext(ctx, "health check failed",
				"request_id", requestcontext.RequestID(ctx),
				"dependency", name,
				"error", err,
			)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	httputil.WriteJSON(w, status, resp)
}

// HandleWorkflow handles GET /api/workflow. With ?caseId= the response also
// names the node the case is on.
func (h *Handler) HandleWorkflow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := WorkflowResponse{Workflow: models.ReviewWorkflow()}
	if caseID := strings.TrimSpace(r.URL.Query().Get("caseId")); caseID != "" {
		c, err := h.service.GetCase(ctx, caseID)
		if err != nil {
			h.writeError(ctx, w, "workflow lookup failed", caseID, err)
			return
		}
		resp.CurrentNode = resp.StatusNodes[c.Status]
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleListCases handles GET /api/cases?status=.
func (h *Handler) HandleListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cases, err := h.service.ListCases(ctx, strings.TrimSpace(r.URL.Query().Get("status")))
	if err != nil {
		h.writeError(ctx, w, "list cases failed", "", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CaseListResponse{Cases: cases, Count: len(cases)})
}

// HandleCreateCase handles POST /api/cases.
func (h *Handler) HandleCreateCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndValidate[CreateCaseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.service.CreateCase(ctx, req.ToService())
	if err != nil {
		h.writeError(ctx, w, "create case failed", req.ID, err)
		return
	}
	w.Header().Set("Location", "/api/cases/"+c.ID)
	httputil.WriteJSON(w, http.StatusCreated, c)
}

// HandleGetCase handles GET /api/cases/{caseID}.
func (h *Handler) HandleGetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := chi.URLParam(r, "caseID")
	c, err := h.service.GetCase(ctx, caseID)
	if err != nil {
		h.writeError(ctx, w, "get case failed", caseID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleAuditTrail handles GET /api/cases/{caseID}/audit.
func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := chi.URLParam(r, "caseID")
	events, err := h.service.AuditTrail(ctx, caseID)
	if err != nil {
		h.writeError(ctx, w, "audit trail failed", caseID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuditTrailResponse{CaseID: caseID, Events: events})
}

// HandleRecordDecision handles POST /api/cases/{caseID}/decision.
func (h *Handler) HandleRecordDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := chi.URLParam(r, "caseID")
	req, ok := httputil.DecodeAndValidate[DecisionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	decision, err := models.ParseDecision(req.Decision)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.RecordDecision(ctx, caseID, decision, req.Note)
	if err != nil {
		h.writeError(ctx, w, "record decision failed", caseID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleAdvanceStatus handles POST /api/cases/{caseID}/status.
func (h *Handler) HandleAdvanceStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := chi.URLParam(r, "caseID")
	req, ok := httputil.DecodeAndValidate[AdvanceStatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	target, err := models.ParseCaseStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.AdvanceStatus(ctx, caseID, target)
	if err != nil {
		h.writeError(ctx, w, "advance status failed", caseID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleUploadDocuments handles POST /api/cases/{caseID}/documents. Files are
// streamed from the "files" (or "file") multipart fields in body order. The
// response is 201 when at least one file was accepted; when every file is
// rejected the status follows the first rejection.
func (h *Handler) HandleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := chi.URLParam(r, "caseID")
	requestID := requestcontext.RequestID(ctx)

	mr, err := r.MultipartReader()
	if err != nil {
		h.logger.WarnContext(ctx, "invalid multipart upload",
			"request_id", requestID,
			"case_id", caseID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected a multipart/form-data body"))
		return
	}

	var files []ingestion.File
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.writeError(ctx, w, "read upload failed", caseID, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed multipart body"))
			return
		}
		if field := part.FormName(); (field != "files" && field != "file") || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		if len(files) == h.maxFiles {
			_ = part.Close()
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "at most %d files can be uploaded at once", h.maxFiles))
			return
		}
		f, err := h.readPart(part)
		_ = part.Close()
		if err != nil {
			h.writeError(ctx, w, "read upload failed", caseID, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable file part"))
			return
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "at least one file is required"))
		return
	}

	result, err := h.service.UploadDocuments(ctx, caseID, strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)), files)
	if err != nil {
		h.writeError(ctx, w, "upload documents failed", caseID, err)
		return
	}

	status := http.StatusCreated
	switch {
	case result.Replayed:
		status = http.StatusOK
	case len(result.Documents) == 0 && len(result.Errors) > 0:
		status = httputil.StatusFor(dErrors.CodeOf(result.Errors[0].Err))
	}
	httputil.WriteJSON(w, status, fromUploadResult(result))
}

// HandleDeleteDocument handles DELETE /api/cases/{caseID}/documents/{documentID}.
func (h *Handler) HandleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := chi.URLParam(r, "caseID")
	c, err := h.service.DeleteDocument(ctx, caseID, chi.URLParam(r, "documentID"))
	if err != nil {
		h.writeError(ctx, w, "delete document failed", caseID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleDocumentPreview handles GET /api/cases/{caseID}/documents/{documentID}/preview
// and streams the stored document bytes.
func (h *Handler) HandleDocumentPreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := chi.URLParam(r, "caseID")
	doc, obj, err := h.service.DocumentContent(ctx, caseID, chi.URLParam(r, "documentID"))
	if err != nil {
		h.writeError(ctx, w, "document preview failed", caseID, err)
		return
	}
	mimeType := obj.MIMEType
	if mimeType == "" {
		mimeType = doc.MIMEType
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.Name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(obj.Data); err != nil {
		h.logger.WarnContext(ctx, "document preview write failed",
			"request_id", requestcontext.RequestID(ctx),
			"case_id", caseID,
			"error", err,
		)
	}
}

// HandleReviewDocument handles POST /api/cases/{caseID}/documents/{documentID}/review.
func (h *Handler) HandleReviewDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := chi.URLParam(r, "caseID")
	req, ok := httputil.DecodeAndValidate[DocumentReviewRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	outcome, err := models.ParseDocumentStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, doc, err := h.service.ReviewDocument(ctx, caseID, chi.URLParam(r, "documentID"), outcome)
	if err != nil {
		h.writeError(ctx, w, "review document failed", caseID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DocumentResponse{Case: c, Document: doc})
}

// HandleReviewBankStatement handles POST /api/cases/{caseID}/bank-statements/{statementID}/review.
func (h *Handler) HandleReviewBankStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := chi.URLParam(r, "caseID")
	req, ok := httputil.DecodeAndValidate[BankStatementReviewRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	outcome, err := models.ParseStatementReviewStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, stmt, err := h.service.ReviewBankStatement(ctx, caseID, chi.URLParam(r, "statementID"), outcome, req.Reviewer, req.Notes)
	if err != nil {
		h.writeError(ctx, w, "review bank statement failed", caseID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BankStatementResponse{Case: c, BankStatement: stmt})
}

// HandleReviewOccupationForm handles POST /api/cases/{caseID}/occupation-form/review.
func (h *Handler) HandleReviewOccupationForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := chi.URLParam(r, "caseID")
	req, ok := httputil.DecodeAndValidate[OccupationFormReviewRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	outcome, err := models.ParseFormReviewStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, form, err := h.service.ReviewOccupationForm(ctx, caseID, outcome, req.Reviewer)
	if err != nil {
		h.writeError(ctx, w, "review occupation form failed", caseID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OccupationFormResponse{Case: c, OccupationForm: form})
}

// writeError logs at warn for caller mistakes and at error for server faults.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg, caseID string, err error) {
	level := slog.LevelWarn
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"case_id", caseID,
		"error", err,
	)
	httputil.WriteError(w, err)
}

// readPart keeps a file part whole when it fits the size limit. Larger parts
// keep only a sniffing prefix and are drained so the rest of the batch can
// still be read; their counted size lets the gate reject them on their own.
func (h *Handler) readPart(part *multipart.Part) (ingestion.File, error) {
	body, err := io.ReadAll(io.LimitReader(part, h.maxFileSize+1))
	if err != nil {
		return ingestion.File{}, err
	}
	size := int64(len(body))
	if size > h.maxFileSize {
		rest, err := io.Copy(io.Discard, part)
		if err != nil {
			return ingestion.File{}, fmt.Errorf("drain oversized part: %w", err)
		}
		size += rest
		body = body[:min(len(body), sniffBytes)]
	}
	// Generic form encoders send octet-stream; let the gate sniff instead.
	mimeType := part.Header.Get("Content-Type")
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}
	return ingestion.File{
		Name:     part.FileName(),
		MIMEType: mimeType,
		Size:     size,
		Content:  body,
	}, nil
}
