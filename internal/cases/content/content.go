// Package content stores the uploaded bytes of case documents so reviewers
// can preview them and the OCR collaborator can fetch them.
package content

import (
	"context"
	"time"
)

// Object is one stored document body.
type Object struct {
	Ref       string
	MIMEType  string
	Data      []byte
	CreatedAt time.Time
}

// Store keeps document bodies by reference. Writes honour the unit of work
// carried in ctx so a body is only kept when its case mutation commits.
type Store interface {
	Put(ctx context.Context, obj Object) error
	Get(ctx context.Context, ref string) (*Object, error)
	Delete(ctx context.Context, ref string) error
}

// Ref is the storage reference of a document body.
func Ref(caseID, documentID string) string {
	return "documents/" + caseID + "/" + documentID
}
