package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ximoveis/internal/db"
)

var ErrNotFound = errors.New("not found")
var ErrConflict = errors.New("conflict")

type Store struct {
	db  *sql.DB
	d   db.Dialect
	now func() time.Time
}

func New(sqdb *sql.DB, d db.Dialect) *Store {
	return &Store{db: sqdb, d: d, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Dialect() db.Dialect { return s.d }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// q rebinds a '?' query for the active dialect.
func (s *Store) q(query string) string { return s.d.Rebind(query) }

// withTx runs fn in a transaction. The deferred rollback is a no-op after a
// successful commit.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "sqlstate 23505")
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return s
}

func ptrString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func ptrInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
