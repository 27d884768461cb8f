package database

import (
	"strings"

	"github.com/ledgerscan/ledgerscan-backend/pkg/errors"
	"github.com/lib/pq"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict("a record with these values already exists")

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "format_valid"):
		return errors.Validation(map[string]string{
			"format": "must be one of: csv, xlsx, pdf",
		})

	case strings.Contains(constraint, "scope_valid"):
		return errors.Validation(map[string]string{
			"scope": "must be one of: all, flagged",
		})

	case strings.Contains(constraint, "outcome_valid"):
		return errors.Validation(map[string]string{
			"outcome": "must be one of: delivered, canceled, unsupported, failed",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}
