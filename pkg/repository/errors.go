package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes translated by Errors.Map.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
	codeUndefinedTable  = "42P01"
)

// ErrNotMigrated indicates a query referenced a table that does not exist.
var ErrNotMigrated = errors.New("database schema is not migrated")

// Errors names the domain errors a store reports for database failures.
// A nil field leaves the matching failure unmapped.
type Errors struct {
	NotFound  error
	Duplicate error
	Invalid   error
}

// Map translates err: no rows becomes NotFound, unique violations become
// Duplicate, check violations become Invalid and a missing table becomes
// ErrNotMigrated. The database error stays in the chain for every mapped
// PostgreSQL failure.
func (e Errors) Map(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		if e.NotFound != nil {
			return e.NotFound
		}
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	var target error
	switch pgErr.Code {
	case codeUniqueViolation:
		target = e.Duplicate
	case codeCheckViolation:
		target = e.Invalid
	case codeUndefinedTable:
		target = ErrNotMigrated
	}
	if target == nil {
		return err
	}
	return fmt.Errorf("%w: %w", target, err)
}
