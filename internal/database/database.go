package database

import (
	"fmt"
	"strings"
	"time"

	"ecos/internal/domain"
	"ecos/internal/pkg/logger"

	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

// IsPostgres reports whether dsn selects the postgres driver.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Connect opens dsn with postgres for postgres:// URLs and sqlite (modernc,
// pure Go) for anything else. SQL is logged through log at debug level and
// join models are registered before the handle is returned.
func Connect(dsn string, log *logger.Logger) (*gorm.DB, error) {
	if log == nil {
		log = logger.Nop()
	}
	cfg := &gorm.Config{
		Logger: gormlogger.New(log.StdLog(zapcore.DebugLevel), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	if IsPostgres(dsn) {
		log.Info("connecting to postgres")
		dialector = postgres.Open(dsn)
	} else {
		log.Info("using sqlite", "dsn", dsn)
		dialector = gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		})
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := domain.SetupJoinTables(db); err != nil {
		return nil, fmt.Errorf("setup join tables: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table. On postgres the PostGIS extension
// is enabled first and the location index created last.
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS postgis").Error; err != nil {
			return fmt.Errorf("enable postgis: %w", err)
		}
	}
	if err := db.AutoMigrate(domain.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec(LocationIndexSQL).Error; err != nil {
			return fmt.Errorf("create location index: %w", err)
		}
	}
	return nil
}

// LocationIndexSQL creates the GiST expression index that serves radius
// search on reception points.
var LocationIndexSQL = "CREATE INDEX IF NOT EXISTS idx_reception_points_location ON reception_points USING GIST ((" +
	domain.LocationGeography("longitude", "latitude") + "))"
