// Package store implements the view backends on PostgreSQL.
//
// A Store serves every registered view: Backend builds a per-view adapter
// that renders the view's FieldSpecs into keyset-paginated queries. All
// mutations are written to audit_log in the same transaction.
package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/RecordGrid/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store provides view backends over a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the tables the registered views read, if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Backend returns the backend serving def.
func (s *Store) Backend(def core.ViewDefinition) (core.Backend, error) {
	q, err := newQueries(def)
	if err != nil {
		return nil, err
	}
	return &viewBackend{pool: s.pool, def: def, q: q}, nil
}

var _ core.BackendFactory = (*Store)(nil)
