package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes the repositories react to.
const (
	codeUndefinedColumn = "42703"
	codeUndefinedTable  = "42P01"
	codeUniqueViolation = "23505"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUndefinedColumn reports a query that referenced a column the schema lacks.
func IsUndefinedColumn(err error) bool {
	return pgCode(err) == codeUndefinedColumn
}

func IsUndefinedTable(err error) bool {
	return pgCode(err) == codeUndefinedTable
}

// IsMissingSchema covers both a missing table and a missing column.
func IsMissingSchema(err error) bool {
	return IsUndefinedColumn(err) || IsUndefinedTable(err)
}

func IsUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation || errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicate)
}

// translate maps driver errors onto the package sentinels, keeping the
// original error in the chain.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case pgCode(err) == codeUniqueViolation:
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	default:
		return err
	}
}

// UndefinedColumnError builds the error PostgreSQL returns for a missing
// column. The in-memory store uses it to emulate older schemas.
func UndefinedColumnError(column string) error {
	return &pgconn.PgError{
		Severity: "ERROR",
		Code:     codeUndefinedColumn,
		Message:  fmt.Sprintf("column %q does not exist", column),
	}
}

func UndefinedTableError(table string) error {
	return &pgconn.PgError{
		Severity: "ERROR",
		Code:     codeUndefinedTable,
		Message:  fmt.Sprintf("relation %q does not exist", table),
	}
}
