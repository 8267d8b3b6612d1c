package admin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/database"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/di"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/service"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/tools/common"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/tools/ui"
)

type options struct {
	envFile string
	actor   string
	timeout time.Duration
	ci      bool
}

// toolkitFactory is swapped in tests.
var toolkitFactory = di.InitializeAdminToolkit

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "admin", Short: "Account administration tooling"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.actor, "actor", defaultActor(), "operator recorded in the audit log")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(
		newCreateAdminCommand(opts),
		newPromoteCommand(opts),
		newUnlockCommand(opts),
		newVerifyEmailCommand(opts),
		newAuditReplayCommand(opts),
		newStatusCommand(opts),
	)
	return cmd
}

func newCreateAdminCommand(opts *options) *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a verified admin or promote an existing account",
		Long:  "The password is read from ADMIN_PASSWORD so it never appears in shell history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "admin create-admin", func(ctx context.Context, tk *di.AdminToolkit) ([]string, error) {
				if strings.TrimSpace(email) == "" {
					return nil, errors.New("email is required")
				}
				u, created, err := tk.Users.CreateAdmin(ctx, service.CreateAdminInput{
					Email:    email,
					Name:     name,
					Password: os.Getenv("ADMIN_PASSWORD"),
					Actor:    opts.actor,
				})
				if err != nil {
					return nil, describe(err)
				}
				if created {
					return []string{"created admin: " + u.Email, "id: " + u.ID}, nil
				}
				return []string{"promoted existing account: " + u.Email, "id: " + u.ID}, nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email local part)")
	return cmd
}

func newPromoteCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Grant the admin role to an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "admin promote", func(ctx context.Context, tk *di.AdminToolkit) ([]string, error) {
				u, err := tk.Users.PromoteExisting(ctx, email, opts.actor)
				if err != nil {
					return nil, describe(err)
				}
				return []string{fmt.Sprintf("%s role=%s", u.Email, u.Role)}, nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newUnlockCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Clear failed attempts and any active lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "admin unlock", func(ctx context.Context, tk *di.AdminToolkit) ([]string, error) {
				u, err := tk.Users.Unlock(ctx, email, opts.actor)
				if err != nil {
					return nil, describe(err)
				}
				return []string{"unlocked: " + u.Email}, nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newVerifyEmailCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "verify-email",
		Short: "Mark an account verified without a token (local environments only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "admin verify-email", func(ctx context.Context, tk *di.AdminToolkit) ([]string, error) {
				if !tk.Config.IsLocalLike() {
					return nil, fmt.Errorf("verify-email is disabled in %s", tk.Config.Env)
				}
				if err := database.MarkEmailVerified(ctx, tk.DB, email); err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return nil, fmt.Errorf("no account for %s", email)
					}
					return nil, err
				}
				return []string{"marked verified: " + strings.ToLower(strings.TrimSpace(email))}, nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newAuditReplayCommand(opts *options) *cobra.Command {
	var max int
	cmd := &cobra.Command{
		Use:   "audit-replay",
		Short: "Write dead-lettered audit entries back to the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "admin audit-replay", func(ctx context.Context, tk *di.AdminToolkit) ([]string, error) {
				n, err := tk.Audit.Replay(ctx, max)
				details := []string{fmt.Sprintf("replayed=%d", n)}
				if err != nil {
					return details, err
				}
				return details, nil
			})
		},
	}
	cmd.Flags().IntVar(&max, "max", 500, "maximum entries to replay")
	return cmd
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize account and audit state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "admin status", func(ctx context.Context, tk *di.AdminToolkit) ([]string, error) {
				c, err := database.Summarize(ctx, tk.DB, time.Now().UTC())
				if err != nil {
					return nil, err
				}
				return []string{
					fmt.Sprintf("users=%d", c.Users),
					fmt.Sprintf("admins=%d", c.Admins),
					fmt.Sprintf("unverified=%d", c.Unverified),
					fmt.Sprintf("locked=%d", c.Locked),
					fmt.Sprintf("audit_entries=%d", c.AuditEntries),
				}, nil
			})
		},
	}
}

func execute(opts *options, title string, fn func(context.Context, *di.AdminToolkit) ([]string, error)) error {
	action := func(ctx context.Context) ([]string, error) {
		if err := common.LoadEnvFile(opts.envFile); err != nil {
			return nil, err
		}
		tk, err := toolkitFactory()
		if err != nil {
			return nil, err
		}
		defer func() { _ = tk.Close() }()
		return fn(ctx, tk)
	}
	var (
		details []string
		err     error
	)
	start := time.Now()
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
		details, err = action(ctx)
		cancel()
		common.PrintCIResult(err == nil, title, details, err)
	} else {
		details, err = ui.Run(title, opts.timeout, action)
	}
	common.RecordRun("admin", title, start, err)
	if err != nil {
		os.Exit(3)
	}
	return nil
}

func describe(err error) error {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return errors.New("no account with that email")
	case errors.Is(err, service.ErrDomainNotAllowed):
		return errors.New("email domain is not allowed")
	case errors.Is(err, service.ErrWeakPassword):
		return fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
	default:
		return err
	}
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return "cli:" + u
	}
	return "cli"
}
