// Package ingestion validates uploaded files and turns accepted ones into
// documents awaiting review.
package ingestion

import (
	"context"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"kycreview/internal/cases/classifier"
	"kycreview/internal/cases/models"
	dErrors "kycreview/pkg/domain-errors"
	"kycreview/pkg/requestcontext"
)

// MaxFileSize is the largest accepted upload: 10 MiB.
const MaxFileSize int64 = 10 * 1024 * 1024

// allowedTypes is the upload allowlist. image/jpg is not registered but some
// clients still send it for JPEG files.
var allowedTypes = map[string]bool{
	"application/pdf":    true,
	"image/jpeg":         true,
	"image/jpg":          true,
	"image/png":          true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// File is one incoming upload. Content is optional; when present it is used to
// sniff a missing MIME type and to fill in a missing size.
type File struct {
	Name     string
	MIMEType string
	Size     int64
	Content  []byte
}

// Outcome is the result of ingesting one file of a batch.
type Outcome struct {
	Document *models.Document
	Err      error
}

// Gate validates files and builds documents.
type Gate struct {
	maxSize     int64
	concurrency int
	newID       func() string
}

// Option configures a Gate.
type Option func(*Gate)

// WithMaxSize overrides the size limit.
func WithMaxSize(n int64) Option {
	return func(g *Gate) {
		if n > 0 {
			g.maxSize = n
		}
	}
}

// WithConcurrency bounds parallel classification within one batch.
func WithConcurrency(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// WithIDGenerator replaces uuid-based document ids.
func WithIDGenerator(fn func() string) Option {
	return func(g *Gate) {
		if fn != nil {
			g.newID = fn
		}
	}
}

func New(opts ...Option) *Gate {
	g := &Gate{
		maxSize:     MaxFileSize,
		concurrency: 4,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ingest validates one file and returns a Pending Review document.
// Fails with unsupported_type, too_large, or validation_error.
func (g *Gate) Ingest(ctx context.Context, f File) (*models.Document, error) {
	if strings.TrimSpace(f.Name) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "file name is required")
	}
	mimeType := normalizeMIME(f.MIMEType)
	if mimeType == "" && len(f.Content) > 0 {
		mimeType = normalizeMIME(mimetype.Detect(f.Content).String())
	}
	if !allowedTypes[mimeType] {
		return nil, dErrors.Newf(dErrors.CodeUnsupportedType, "%s: file type %q is not supported", f.Name, mimeType)
	}

	size := f.Size
	if size == 0 {
		size = int64(len(f.Content))
	}
	if size > g.maxSize {
		return nil, dErrors.Newf(dErrors.CodeTooLarge, "%s: file size %d exceeds limit of %d bytes", f.Name, size, g.maxSize)
	}
	if size <= 0 {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s: file is empty", f.Name)
	}

	c := classifier.Classify(f.Name)
	return models.NewDocument(g.newID(), f.Name, c.DocumentType, mimeType, c.Category, size, requestcontext.Now(ctx))
}

// IngestBatch ingests every file independently. A rejected file never blocks
// the rest; outcomes keep input order.
func (g *Gate) IngestBatch(ctx context.Context, files []File) []Outcome {
	outcomes := make([]Outcome, len(files))
	var eg errgroup.Group
	eg.SetLimit(g.concurrency)
	for i, f := range files {
		eg.Go(func() error {
			doc, err := g.Ingest(ctx, f)
			outcomes[i] = Outcome{Document: doc, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return outcomes
}

func normalizeMIME(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(v); err == nil {
		return mt
	}
	return strings.ToLower(v)
}
