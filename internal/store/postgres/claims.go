// Package postgres provides the Postgres-backed store of record for
// claim rows.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veritium/crawler/internal/claim"
)

// ErrDuplicate reports an insert that lost to the table's uniqueness
// constraints on source_url or claim_text. Not an error condition for
// the pipeline; callers record it as a duplicate skip.
var ErrDuplicate = errors.New("postgres: claim already exists")

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const uniqueViolationCode = "23505"

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// ClaimStoreConfig controls the Postgres connection pool.
type ClaimStoreConfig struct {
	DSN      string
	Table    string
	MaxConns int32
}

// ClaimStore persists claim rows. Rows are immutable once inserted; the
// version column exists for future optimistic locking and is never
// advanced here.
type ClaimStore struct {
	pool  Pool
	table string
}

// NewClaimStore connects to Postgres and verifies the connection. An
// unreachable store is fatal: the pipeline has no degraded mode without
// its store of record.
func NewClaimStore(ctx context.Context, cfg ClaimStoreConfig) (*ClaimStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "claims"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &ClaimStore{pool: pool, table: table}, nil
}

// NewClaimStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewClaimStoreWithPool(pool Pool, table string) (*ClaimStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "claims"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ClaimStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *ClaimStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the claims table if it does not exist.
func (s *ClaimStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id           BIGSERIAL PRIMARY KEY,
	claim_text   TEXT NOT NULL UNIQUE,
	verdict      TEXT NOT NULL DEFAULT 'Unverified',
	source_url   TEXT NOT NULL UNIQUE,
	published_at TIMESTAMPTZ,
	short_points TEXT,
	version      INTEGER NOT NULL DEFAULT 1,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Exists reports whether any row already matches the record's source
// URL or claim text.
func (s *ClaimStore) Exists(ctx context.Context, sourceURL, claimText string) (bool, error) {
	query := fmt.Sprintf(
		`SELECT 1 FROM %s WHERE source_url = $1 OR claim_text = $2 LIMIT 1`, s.table)
	var one int
	err := s.pool.QueryRow(ctx, query, sourceURL, claimText).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check existing claim: %w", err)
	}
	return true, nil
}

// Insert writes a claim row and returns the assigned surrogate id. A
// uniqueness-constraint violation (a lost race against a concurrent
// committer) maps to ErrDuplicate.
func (s *ClaimStore) Insert(ctx context.Context, rec claim.Record) (int64, error) {
	query := fmt.Sprintf(`
INSERT INTO %s (claim_text, verdict, source_url, published_at, short_points)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`, s.table)

	var shortPoints *string
	if len(rec.ShortPoints) > 0 {
		joined := strings.Join(rec.ShortPoints, "\n")
		shortPoints = &joined
	}

	var id int64
	err := s.pool.QueryRow(ctx, query,
		rec.ClaimText,
		rec.Verdict,
		rec.SourceURL,
		rec.PublishedDate,
		shortPoints,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return 0, fmt.Errorf("%s: %w", rec.SourceURL, ErrDuplicate)
		}
		return 0, fmt.Errorf("insert claim: %w", err)
	}
	return id, nil
}

// StoredClaim is a persisted row as read back from the store.
type StoredClaim struct {
	ID          int64
	ClaimText   string
	Verdict     string
	SourceURL   string
	PublishedAt *time.Time
}

// FindBySourceURL looks a row up by its natural key. Returns
// pgx.ErrNoRows via the wrapped error when absent.
func (s *ClaimStore) FindBySourceURL(ctx context.Context, sourceURL string) (StoredClaim, error) {
	query := fmt.Sprintf(
		`SELECT id, claim_text, verdict, source_url, published_at FROM %s WHERE source_url = $1`, s.table)
	var row StoredClaim
	err := s.pool.QueryRow(ctx, query, sourceURL).Scan(
		&row.ID, &row.ClaimText, &row.Verdict, &row.SourceURL, &row.PublishedAt)
	if err != nil {
		return StoredClaim{}, fmt.Errorf("find claim by source url: %w", err)
	}
	return row, nil
}
