package migrate

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/config"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/database"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/di"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/tools/common"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/tools/ui"
)

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tooling",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newUpCommand(opts),
		newStatusCommand(opts),
		newPlanCommand(opts),
	)
	return cmd
}

func newUpCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "migrate up", func(ctx context.Context) ([]string, error) {
				if err := common.LoadEnvFile(opts.envFile); err != nil {
					return nil, err
				}
				runner, err := di.InitializeMigrationRunner()
				if err != nil {
					return nil, err
				}
				if err := runner.Run(ctx); err != nil {
					return nil, err
				}
				return []string{"schema migration applied", "tables: " + strings.Join(tableNames(), ", ")}, nil
			})
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check connectivity and pending tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "migrate status", func(ctx context.Context) ([]string, error) {
				cfg, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer func() { _ = database.Close(db) }()
				sqlDB, err := db.DB()
				if err != nil {
					return nil, err
				}
				if err := sqlDB.PingContext(ctx); err != nil {
					return nil, fmt.Errorf("db ping: %w", err)
				}
				pending, err := database.PendingTables(ctx, db)
				if err != nil {
					return nil, err
				}
				state := "up to date"
				if len(pending) > 0 {
					state = "pending: " + strings.Join(pending, ", ")
				}
				return []string{"database reachable", "driver: " + cfg.DatabaseDriver, "migrations: " + state}, nil
			})
		},
	}
}

func newPlanCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show migration plan (dry-run)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "migrate plan", func(ctx context.Context) ([]string, error) {
				_, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer func() { _ = database.Close(db) }()
				pending, err := database.PendingTables(ctx, db)
				if err != nil {
					return nil, err
				}
				details := []string{"would apply AutoMigrate for: " + strings.Join(tableNames(), ", ")}
				if len(pending) == 0 {
					details = append(details, "all tables exist; columns and indexes would be reconciled")
				} else {
					details = append(details, "would create: "+strings.Join(pending, ", "))
				}
				return append(details, "no mutation executed in plan mode"), nil
			})
		},
	}
}

func execute(opts *options, title string, fn func(context.Context) ([]string, error)) error {
	var (
		details []string
		err     error
	)
	start := time.Now()
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
		details, err = fn(ctx)
		cancel()
		common.PrintCIResult(err == nil, title, details, err)
	} else {
		details, err = ui.Run(title, opts.timeout, fn)
	}
	common.RecordRun("migrate", title, start, err)
	if err != nil {
		os.Exit(3)
	}
	return nil
}

func tableNames() []string {
	return []string{"users", "audit_logs"}
}

func loadConfigDB(envFile string) (*config.Config, *gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
