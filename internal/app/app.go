package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/config"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/database"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/ratelimit"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/service"
)

const (
	breakerIdle        = 10 * time.Minute
	auditReplayBatch   = 100
	auditReplayEvery   = time.Minute
	bootstrapActorName = "bootstrap"
)

// Background holds the periodic maintenance the server runs next to the
// HTTP listener. Nil members are skipped.
type Background struct {
	Counters *ratelimit.MemoryStore
	Breaker  *ratelimit.DenialBreaker
	Audit    *service.AuditRecorder
}

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	DB            *gorm.DB
	Redis         redis.UniversalClient
	Users         *service.UserService
	Background    Background
	Closers       []io.Closer
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	users *service.UserService,
	background Background,
	closers []io.Closer,
) *App {
	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Observability: runtime,
		DB:            db,
		Redis:         redisClient,
		Users:         users,
		Background:    background,
		Closers:       closers,
	}
}

// Run serves until ctx is cancelled, then shuts down in order: HTTP drain,
// background loops, telemetry flush, connections.
func (a *App) Run(ctx context.Context) error {
	a.bootstrapAdmin(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("server starting", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if c := a.Background.Counters; c != nil {
		g.Go(func() error {
			c.Run(gctx, a.Config.RateLimitCleanupInterval)
			return nil
		})
	}
	if b := a.Background.Breaker; b != nil {
		g.Go(func() error {
			every(gctx, a.Config.RateLimitCleanupInterval, func(now time.Time) {
				if n := b.Sweep(now, breakerIdle); n > 0 {
					a.Logger.Debug("denial breaker sweep", "removed", n)
				}
			})
			return nil
		})
	}
	if rec := a.Background.Audit; rec != nil && a.Config.AuditDeadLetterEnabled {
		g.Go(func() error {
			every(gctx, auditReplayEvery, func(time.Time) {
				n, err := rec.Replay(gctx, auditReplayBatch)
				if err != nil {
					a.Logger.Warn("audit replay incomplete", "replayed", n, "error", err)
					return
				}
				if n > 0 {
					a.Logger.Info("audit records replayed", "replayed", n)
				}
			})
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})
	return g.Wait()
}

func (a *App) bootstrapAdmin(ctx context.Context) {
	email := a.Config.BootstrapAdminEmail
	if email == "" || a.Users == nil {
		return
	}
	u, err := a.Users.PromoteExisting(ctx, email, bootstrapActorName)
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		a.Logger.Warn("bootstrap admin not registered yet", "email", email)
	case err != nil:
		a.Logger.Error("bootstrap admin promotion failed", "email", email, "error", err)
	default:
		a.Logger.Info("bootstrap admin ensured", "email", u.Email)
	}
}

func (a *App) shutdown() error {
	totalTimeout := a.Config.ShutdownTimeout
	if totalTimeout <= 0 {
		totalTimeout = 20 * time.Second
	}
	totalCtx, totalCancel := context.WithTimeout(context.Background(), totalTimeout)
	defer totalCancel()

	var errs []error
	httpTimeout := a.Config.ShutdownHTTPDrainTimeout
	if httpTimeout <= 0 {
		httpTimeout = 10 * time.Second
	}
	httpCtx, httpCancel := context.WithTimeout(totalCtx, httpTimeout)
	if err := a.Server.Shutdown(httpCtx); err != nil {
		a.Logger.Error("failed to shutdown http server", "error", err)
		errs = append(errs, err)
	}
	httpCancel()

	if a.Observability != nil {
		obsTimeout := a.Config.ShutdownObservabilityTimeout
		if obsTimeout <= 0 {
			obsTimeout = 8 * time.Second
		}
		obsCtx, obsCancel := context.WithTimeout(totalCtx, obsTimeout)
		if err := a.Observability.Shutdown(obsCtx); err != nil {
			a.Logger.Error("failed to shutdown observability", "error", err)
		}
		obsCancel()
	}

	for _, c := range a.Closers {
		if err := c.Close(); err != nil {
			a.Logger.Error("failed to close dependency", "error", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("failed to close redis client", "error", err)
		}
	}
	if err := database.Close(a.DB); err != nil {
		a.Logger.Error("failed to close database connection", "error", err)
	}
	return errors.Join(errs...)
}

func every(ctx context.Context, interval time.Duration, fn func(time.Time)) {
	if interval <= 0 {
		interval = ratelimit.DefaultCleanupInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			fn(now)
		}
	}
}
