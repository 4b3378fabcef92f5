package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis/v14/pkg/logger"
)

// Store owns every persisted row. Other components never see SQL;
// they call the typed accessors grouped by entity in this package.
// ⭐ SSOT: DB 접근은 이 패키지에서만
type Store struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

// New creates a Store on top of an existing pool
func New(db *pgxpool.Pool, log *logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithComponent("store"),
	}
}

// Pool exposes the underlying pool for health checks only
func (s *Store) Pool() *pgxpool.Pool {
	return s.db
}

// ErrorKind classifies persistence failures
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable" // connection/pool failures, retryable
	KindConflict    ErrorKind = "conflict"    // unique violation outside an UPSERT path
	KindIntegrity   ErrorKind = "integrity"   // constraint violation, row dropped
)

// Error is the typed persistence error
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a store.Error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}

// wrap classifies a pgx error into a store.Error
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return &Error{Kind: KindConflict, Op: op, Err: err}
		case strings.HasPrefix(pgErr.Code, "23"):
			return &Error{Kind: KindIntegrity, Op: op, Err: err}
		}
	}

	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}

// isNoRows reports a missing single-row lookup, surfaced as (nil, nil)
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// batchSize bounds rows per transaction so long imports don't hold one
// transaction open for minutes.
const batchSize = 500
