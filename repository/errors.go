package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Constraint violation kinds surfaced by the storage layer
var (
	ErrDuplicate           = errors.New("duplicate value violates unique constraint")
	ErrCheckViolation      = errors.New("value violates check constraint")
	ErrForeignKeyViolation = errors.New("value violates foreign key constraint")
)

// Postgres SQLSTATE codes
const (
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
	pgForeignKeyViolation = "23503"
)

// ConstraintError carries the violated constraint name alongside its kind
type ConstraintError struct {
	Kind       error
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%v (%s)", e.Kind, e.Constraint)
}

func (e *ConstraintError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// ConstraintName returns the violated constraint, or "" when err is not a constraint violation
func ConstraintName(err error) string {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Constraint
	}
	return ""
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return &ConstraintError{Kind: ErrDuplicate, Constraint: pgErr.ConstraintName, Err: err}
	case pgCheckViolation:
		return &ConstraintError{Kind: ErrCheckViolation, Constraint: pgErr.ConstraintName, Err: err}
	case pgForeignKeyViolation:
		return &ConstraintError{Kind: ErrForeignKeyViolation, Constraint: pgErr.ConstraintName, Err: err}
	default:
		return err
	}
}

// Constraint names referenced by business flows
const (
	ConstraintAccountUsername   = "uk_accounts_username"
	ConstraintAccountEmail      = "uk_accounts_email"
	ConstraintAccountSingleRole = "ck_accounts_single_role"
)
