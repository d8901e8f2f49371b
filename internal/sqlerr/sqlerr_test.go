package sqlerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyPostgres(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", TableName: "reception_points"})
	assert.True(t, IsUniqueViolation(err))

	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.Equal(t, NotNullViolation, Classify(&pgconn.PgError{Code: "23502"}))
	assert.Equal(t, Other, Classify(&pgconn.PgError{Code: "42P01"}))
}

func TestClassifySqliteMessages(t *testing.T) {
	assert.True(t, IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: reception_points.address (2067)")))
	assert.True(t, IsForeignKeyViolation(errors.New("FOREIGN KEY constraint failed (787)")))
	assert.Equal(t, Other, Classify(errors.New("no such table: wastes")))
	assert.Equal(t, Other, Classify(nil))
}

func TestClassifyGormSentinels(t *testing.T) {
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsForeignKeyViolation(gorm.ErrForeignKeyViolated))
}

func TestDescribe(t *testing.T) {
	err := errors.New("UNIQUE constraint failed: reception_points.address")
	assert.Equal(t, "a reception point with this identifier already exists", Describe(err, "reception_point"))
	assert.Equal(t, "Waste Translation", Humanize("waste_translation"))
}
