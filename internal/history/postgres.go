package history

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Postgres stores entries in the predictions table. The pool makes it safe
// to share between request handlers.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects and ensures the schema exists.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to initialize database schema")
	}

	return &Postgres{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			top_class TEXT NOT NULL,
			confidence REAL NOT NULL,
			labels TEXT[] NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS predictions_created_at_idx ON predictions (created_at DESC);
	`)
	return err
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Record(ctx context.Context, e Entry) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO predictions (id, filename, top_class, confidence, labels)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.Filename, e.TopClass, e.Confidence, e.Labels)
	return errors.Wrapf(err, "record prediction %s", e.ID)
}

// Recent returns up to limit entries, newest first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, filename, top_class, confidence, labels, created_at
		FROM predictions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query predictions")
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.ID, &e.Filename, &e.TopClass, &e.Confidence, &e.Labels, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan predictions")
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
