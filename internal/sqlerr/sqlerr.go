// Package sqlerr classifies database driver errors so services can turn
// constraint violations into caller-facing errors without knowing which
// driver is underneath.
package sqlerr

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

type Code int

const (
	Other Code = iota
	UniqueViolation
	ForeignKeyViolation
	NotNullViolation
	CheckViolation
)

// Postgres SQLSTATE codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
)

// Classify maps err to a Code. Postgres errors are read from pgconn.PgError,
// sqlite ones from the driver message.
func Classify(err error) Code {
	if err == nil {
		return Other
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return UniqueViolation
		case pgForeignKeyViolation:
			return ForeignKeyViolation
		case pgNotNullViolation:
			return NotNullViolation
		case pgCheckViolation:
			return CheckViolation
		}
		return Other
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return UniqueViolation
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return ForeignKeyViolation
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint failed"),
		strings.Contains(msg, "duplicate key value"):
		return UniqueViolation
	case strings.Contains(msg, "foreign key constraint failed"),
		strings.Contains(msg, "violates foreign key constraint"):
		return ForeignKeyViolation
	case strings.Contains(msg, "not null constraint failed"):
		return NotNullViolation
	case strings.Contains(msg, "check constraint failed"):
		return CheckViolation
	}
	return Other
}

func IsUniqueViolation(err error) bool     { return Classify(err) == UniqueViolation }
func IsForeignKeyViolation(err error) bool { return Classify(err) == ForeignKeyViolation }

// Describe returns a short caller-facing sentence for a constraint violation on
// the given entity, e.g. "a reception point with this identifier already exists".
func Describe(err error, entity string) string {
	name := strings.ToLower(Humanize(entity))
	if name == "" {
		name = "record"
	}
	switch Classify(err) {
	case UniqueViolation:
		return "a " + name + " with this identifier already exists"
	case ForeignKeyViolation:
		return "the referenced " + name + " does not exist"
	case NotNullViolation:
		return "a required " + name + " field is missing"
	case CheckViolation:
		return "a " + name + " value does not meet required conditions"
	}
	return "an error occurred while processing your request"
}

// Humanize turns snake_case into Title Case: "reception_point" -> "Reception Point".
func Humanize(s string) string {
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}
