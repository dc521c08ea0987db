package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kycreview/internal/cases/models"
	"kycreview/pkg/platform/sentinel"
	txcontext "kycreview/pkg/platform/tx"
)

// Schema holds the cases table. The aggregate is stored whole as JSONB;
// status and timestamps are lifted into columns for listing.
const Schema = `
CREATE TABLE IF NOT EXISTS cases (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	data       JSONB NOT NULL,
	version    BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS cases_status_idx ON cases (status, created_at);
`

const uniqueViolation = "23505"

// Postgres stores cases in PostgreSQL. Execute takes a row lock with
// SELECT ... FOR UPDATE for the lifetime of the callback.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the cases table.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate cases: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, c *models.Case, fn func(ctx context.Context) error) error {
	return s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		c.Version = 1
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal case: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO cases (id, status, data, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, c.ID, string(c.Status), data, c.Version, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("case %s: %w", c.ID, sentinel.ErrConflict)
			}
			return fmt.Errorf("insert case: %w", err)
		}
		if fn != nil {
			return fn(ctx)
		}
		return nil
	})
}

func (s *Postgres) FindByID(ctx context.Context, caseID string) (*models.Case, error) {
	row := s.pool.QueryRow(ctx, `SELECT data, version FROM cases WHERE id = $1`, caseID)
	return scanCase(row)
}

func (s *Postgres) List(ctx context.Context, status models.CaseStatus) ([]*models.Case, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT data, version FROM cases
		WHERE $1 = '' OR status = $1
		ORDER BY created_at, id
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	cases := []*models.Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return cases, nil
}

func (s *Postgres) Execute(ctx context.Context, caseID string, fn MutateFunc) (*models.Case, error) {
	var result *models.Case
	err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT data, version FROM cases WHERE id = $1 FOR UPDATE`, caseID)
		c, err := scanCase(row)
		if err != nil {
			return err
		}
		if err := fn(ctx, c); err != nil {
			return err
		}
		c.Version++
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal case: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE cases SET status = $2, data = $3, version = $4, updated_at = $5
			WHERE id = $1
		`, c.ID, string(c.Status), data, c.Version, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update case: %w", err)
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// inTx runs fn in a transaction that is also published on ctx for
// tx-aware collaborators such as the audit outbox.
func (s *Postgres) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(txcontext.WithTx(ctx, tx), tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanCase(row pgx.Row) (*models.Case, error) {
	var (
		data    []byte
		version int64
	)
	if err := row.Scan(&data, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan case: %w", err)
	}
	var c models.Case
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode case: %w", err)
	}
	c.Version = version
	return &c, nil
}
