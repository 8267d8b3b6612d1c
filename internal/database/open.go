package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/config"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects with the configured driver. SQLite is limited to a single
// connection so the account row updates serialize the same way row locks do
// on Postgres.
func Open(cfg *config.Config) (*gorm.DB, error) {
	return OpenDSN(cfg.DatabaseDriver, cfg.DatabaseURL)
}

func OpenDSN(driver, dsn string) (*gorm.DB, error) {
	start := time.Now()
	ctx := context.Background()
	defer func() {
		observability.RecordDatabaseStartupDuration(ctx, "open", time.Since(start))
	}()

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres, "":
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		observability.RecordDatabaseStartupEvent(ctx, "open", "error")
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		observability.RecordDatabaseStartupEvent(ctx, "open", "error")
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		observability.RecordDatabaseStartupEvent(ctx, "open", "error")
		return nil, err
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	observability.RecordDatabaseStartupEvent(ctx, "open", "success")
	return db, nil
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
