package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kycreview/pkg/platform/sentinel"
	txcontext "kycreview/pkg/platform/tx"
)

// Schema holds document bodies next to the cases table.
const Schema = `
CREATE TABLE IF NOT EXISTS document_contents (
	ref        TEXT PRIMARY KEY,
	mime_type  TEXT NOT NULL,
	data       BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores document bodies as bytea. Writes join the case
// transaction when one is carried in ctx.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the document_contents table.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate document contents: %w", err)
	}
	return nil
}

func (s *Postgres) execer(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

func (s *Postgres) Put(ctx context.Context, obj Object) error {
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now()
	}
	_, err := s.execer(ctx).Exec(ctx, `
		INSERT INTO document_contents (ref, mime_type, data, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ref) DO UPDATE SET mime_type = EXCLUDED.mime_type, data = EXCLUDED.data
	`, obj.Ref, obj.MIMEType, obj.Data, obj.CreatedAt)
	if err != nil {
		return fmt.Errorf("store document content: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, ref string) (*Object, error) {
	obj := Object{Ref: ref}
	err := s.execer(ctx).QueryRow(ctx, `
		SELECT mime_type, data, created_at FROM document_contents WHERE ref = $1
	`, ref).Scan(&obj.MIMEType, &obj.Data, &obj.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load document content: %w", err)
	}
	return &obj, nil
}

func (s *Postgres) Delete(ctx context.Context, ref string) error {
	if _, err := s.execer(ctx).Exec(ctx, `DELETE FROM document_contents WHERE ref = $1`, ref); err != nil {
		return fmt.Errorf("delete document content: %w", err)
	}
	return nil
}
