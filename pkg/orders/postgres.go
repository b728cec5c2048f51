package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of *pgxpool.Pool used by PGStore.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore looks up order statuses in a Postgres "orders" table
// (number text, status text). It never writes.
type PGStore struct {
	db   querier
	pool *pgxpool.Pool
}

// ConnectPG opens a pool for dsn and verifies it with a ping.
func ConnectPG(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("orders: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("orders: ping: %w", err)
	}
	return &PGStore{db: pool, pool: pool}, nil
}

// Close releases the pool.
func (s *PGStore) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Load returns every order in the table.
func (s *PGStore) Load(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.Query(ctx, `SELECT number, status FROM orders`)
	if err != nil {
		return nil, fmt.Errorf("%w: query orders: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("%w: scan order: %v", ErrStoreUnavailable, err)
		}
		out[id] = status
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate orders: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

// Lookup returns the status for a single order number.
func (s *PGStore) Lookup(ctx context.Context, id string) (string, bool, error) {
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM orders WHERE number = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: lookup %s: %v", ErrStoreUnavailable, id, err)
	}
	return status, true, nil
}

var _ Store = (*PGStore)(nil)
