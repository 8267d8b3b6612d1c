package database

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
)

// Models lists every table the service owns, in creation order.
func Models() []any {
	return []any{&domain.User{}, &domain.AuditLog{}}
}

func Migrate(ctx context.Context, db *gorm.DB) error {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(ctx, "migrate", time.Since(start))
	}()
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		observability.RecordDatabaseStartupEvent(ctx, "migrate", "error")
		return err
	}
	observability.RecordDatabaseStartupEvent(ctx, "migrate", "success")
	return nil
}

// PendingTables reports which model tables do not exist yet.
func PendingTables(ctx context.Context, db *gorm.DB) ([]string, error) {
	migrator := db.WithContext(ctx).Migrator()
	var pending []string
	for _, m := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, err
		}
		if !migrator.HasTable(m) {
			pending = append(pending, stmt.Schema.Table)
		}
	}
	return pending, nil
}
