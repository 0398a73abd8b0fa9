package sqlstore

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/trezcool/masomo-core/core"
)

// postgres error codes
const (
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// mapErr turns constraint violations into domain errors and wraps anything else with msg.
func mapErr(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return core.Conflict(msg + ": " + pqErr.Constraint)
		case pqForeignKeyViolation:
			return core.NewValidationError(errors.Wrap(err, msg), core.FieldError{
				Field: pqErr.Constraint,
				Error: "references a missing row",
			})
		}
		return errors.Wrap(err, msg)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch code := sqliteErr.Code(); {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return core.Conflict(msg)
		case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return core.NewValidationError(errors.Wrap(err, msg), core.FieldError{Error: "references a missing row"})
		case code&0xff == sqlite3.SQLITE_CONSTRAINT:
			// extended result codes disabled
			switch text := sqliteErr.Error(); {
			case strings.Contains(text, "UNIQUE"):
				return core.Conflict(msg)
			case strings.Contains(text, "FOREIGN KEY"):
				return core.NewValidationError(errors.Wrap(err, msg), core.FieldError{Error: "references a missing row"})
			}
		}
	}
	return errors.Wrap(err, msg)
}

// retryable reports whether the transaction that failed with err may succeed if run again.
func retryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}
