package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/samber/oops"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when an insert violates a unique constraint.
	ErrAlreadyExists = errors.New("already exists")

	// ErrPersistence wraps every other database failure.
	ErrPersistence = errors.New("persistence error")
)

// mapError classifies a database/sql error. The returned error matches one of
// the sentinels above and keeps the driver error in its chain; Postgres
// details travel as oops context for logging.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return oops.Code("PERSISTENCE_ERROR").Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	builder := oops.
		With("pg_code", string(pqErr.Code)).
		With("constraint", pqErr.Constraint).
		With("table", pqErr.Table).
		With("db_message", pqErr.Message)

	switch string(pqErr.Code) {
	case pgerrcode.UniqueViolation:
		return builder.Code("ALREADY_EXISTS").Wrap(fmt.Errorf("%w: %w", ErrAlreadyExists, err))
	case pgerrcode.ForeignKeyViolation:
		return builder.Code("REFERENCE_NOT_FOUND").Wrap(fmt.Errorf("%w: %w", ErrNotFound, err))
	default:
		return builder.Code("PERSISTENCE_ERROR").Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
}
