package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/erazemk/gimmie/internal/db"
)

// ErrConflict is returned when a transaction keeps losing to a concurrent
// writer after one internal retry.
var ErrConflict = errors.New("concurrent modification")

// ErrPositionInvariant marks a list whose positions are not exactly 1..N.
var ErrPositionInvariant = errors.New("position invariant violated")

// StorageError wraps a persistence failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Store owns items and archive records. Mutations run one at a time under
// an exclusive lock and a single transaction; reads share the lock so they
// never see a half-applied mutation.
type Store struct {
	db      *sql.DB
	dialect db.Dialect
	mu      sync.RWMutex
}

// New returns a store over an opened database.
func New(database *sql.DB, dialect db.Dialect) *Store {
	return &Store{db: database, dialect: dialect}
}

// Update runs fn as one atomic mutation. A serialization conflict is retried
// once before ErrConflict is returned.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.run(ctx, false, fn)
	if isConflict(err) {
		slog.Warn("transaction conflict, retrying", "error", err)
		err = s.run(ctx, false, fn)
		if isConflict(err) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}

// View runs fn against a consistent snapshot of the store.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(tx *Tx) error) error {
	var opts *sql.TxOptions
	if s.dialect == db.Postgres {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: readOnly}
	}

	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return storageErr("beginning transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("committing transaction", err)
	}
	return nil
}

// isConflict reports whether err comes from a lost race with another writer.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

// Tx is a transaction scope handed to Update and View callbacks.
type Tx struct {
	tx      *sql.Tx
	dialect db.Dialect
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...)
}

// expectOne checks that a write touched exactly one row.
func expectOne(op string, result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if n != 1 {
		return storageErr(op, fmt.Errorf("expected 1 row affected, got %d", n))
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
