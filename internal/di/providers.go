package di

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/app"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/config"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/database"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/health"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/handler"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/middleware"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/router"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/mailer"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/ratelimit"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/repository"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/security"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideMailPublisher,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewAuditLogRepository,
)

var SecuritySet = wire.NewSet(
	provideSessionManager,
	provideCookieManager,
)

var ServiceSet = wire.NewSet(
	provideAuditDeadLetter,
	service.NewAuditRecorder,
	provideEmailVerificationNotifier,
	service.NewAccountSecurityService,
	service.NewUserService,
	wire.Bind(new(service.AccountSecurityServiceInterface), new(*service.AccountSecurityService)),
	wire.Bind(new(service.UserServiceInterface), new(*service.UserService)),
)

var RateLimitSet = wire.NewSet(
	provideRateLimitBackend,
	provideDenialBreaker,
	provideLimiter,
	provideRateLimitMiddleware,
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	handler.NewUserHandler,
	handler.NewAdminHandler,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideBackground, provideClosers, app.New)

// MigrationRunner applies the schema outside the API process.
type MigrationRunner struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewMigrationRunner(db *gorm.DB, logger *slog.Logger) *MigrationRunner {
	return &MigrationRunner{db: db, logger: logger}
}

func (m *MigrationRunner) Run(ctx context.Context) error {
	defer func() { _ = database.Close(m.db) }()
	if err := database.Migrate(ctx, m.db); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "migration complete")
	return nil
}

// AdminToolkit carries what the admin CLI needs without starting the API.
type AdminToolkit struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  redis.UniversalClient
	Users  *service.UserService
	Audit  *service.AuditRecorder
	Logger *slog.Logger
}

func NewAdminToolkit(
	cfg *config.Config,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	users *service.UserService,
	audit *service.AuditRecorder,
	logger *slog.Logger,
) *AdminToolkit {
	return &AdminToolkit{Config: cfg, DB: db, Redis: redisClient, Users: users, Audit: audit, Logger: logger}
}

func (t *AdminToolkit) Close() error {
	var err error
	if t.Redis != nil {
		err = t.Redis.Close()
	}
	if cerr := database.Close(t.DB); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideBootstrapLogger(cfg *config.Config) *slog.Logger {
	return observability.NewBootstrapLogger(cfg)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}

// provideRedisClient returns nil unless a component needs Redis.
func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if !cfg.RateLimitRedisEnabled && !cfg.AuditDeadLetterEnabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, observability.RedisKeyspaces{
		cfg.RateLimitRedisPrefix + ":": "rate_limit",
		cfg.AuditDeadLetterKey:         "audit_dead_letter",
	}, logger)
	return client
}

func provideMailPublisher(cfg *config.Config) (*mailer.Publisher, error) {
	if cfg.NotifierDriver != config.NotifierAMQP {
		return nil, nil
	}
	p, err := mailer.NewPublisher(cfg.AMQPURL, cfg.AMQPEmailQueue)
	if err != nil {
		return nil, fmt.Errorf("connect mail queue: %w", err)
	}
	return p, nil
}

func provideSessionManager(cfg *config.Config) *security.SessionManager {
	return security.NewSessionManager(cfg.SessionJWTSecret, cfg.SessionTTL)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.SessionCookieSecure)
}

func provideAuditDeadLetter(cfg *config.Config, redisClient redis.UniversalClient, logger *slog.Logger) service.AuditDeadLetter {
	if cfg.AuditDeadLetterEnabled && redisClient != nil {
		return service.NewRedisAuditDeadLetter(redisClient, cfg.AuditDeadLetterKey)
	}
	return service.NewLogAuditDeadLetter(logger)
}

func provideEmailVerificationNotifier(cfg *config.Config, logger *slog.Logger, publisher *mailer.Publisher) service.EmailVerificationNotifier {
	switch cfg.NotifierDriver {
	case config.NotifierMailgun:
		return service.NewMailgunEmailVerificationNotifier(
			mailer.NewMailgunSender(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender),
		)
	case config.NotifierAMQP:
		if publisher != nil {
			return service.NewQueueEmailVerificationNotifier(publisher)
		}
	}
	return service.NewDevEmailVerificationNotifier(logger)
}

type rateLimitBackend struct {
	store  ratelimit.Store
	memory *ratelimit.MemoryStore
	name   string
}

func provideRateLimitBackend(cfg *config.Config, redisClient redis.UniversalClient) rateLimitBackend {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		return rateLimitBackend{store: ratelimit.NewRedisStore(redisClient, cfg.RateLimitRedisPrefix), name: "redis"}
	}
	mem := ratelimit.NewMemoryStore(cfg.RateLimitWindow)
	return rateLimitBackend{store: mem, memory: mem, name: "memory"}
}

func provideDenialBreaker(cfg *config.Config) *ratelimit.DenialBreaker {
	return ratelimit.NewDenialBreaker(cfg.RateLimitDenyBreakerRPS, cfg.RateLimitDenyBreakerBurst)
}

func provideLimiter(cfg *config.Config, backend rateLimitBackend, breaker *ratelimit.DenialBreaker) *ratelimit.Limiter {
	policy := ratelimit.NewPolicy(cfg.RateLimitWindow, cfg.RateLimitDefaultQuota, cfg.RateLimitRouteQuotas)
	return ratelimit.New(policy, backend.store, ratelimit.WithBreaker(breaker))
}

func provideRateLimitMiddleware(limiter *ratelimit.Limiter, backend rateLimitBackend) *middleware.RateLimiter {
	return middleware.NewRateLimiter(limiter, backend.name, "/api/auth")
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	adminHandler *handler.AdminHandler,
	sessions *security.SessionManager,
	users service.UserServiceInterface,
	rateLimiter *middleware.RateLimiter,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:    authHandler,
		UserHandler:    userHandler,
		AdminHandler:   adminHandler,
		Sessions:       sessions,
		Users:          users,
		RateLimiter:    rateLimiter,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		Readiness:      readiness,
		EnableOTelHTTP: cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient, publisher *mailer.Publisher) *health.ProbeRunner {
	var queue health.Checker
	if publisher != nil {
		queue = health.NewPingChecker("mail_queue", publisher)
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ServerStartGracePeriod,
		health.NewDBChecker(db),
		health.NewRedisChecker(redisClient),
		queue,
	)
}

func provideBackground(backend rateLimitBackend, breaker *ratelimit.DenialBreaker, audit *service.AuditRecorder) app.Background {
	return app.Background{Counters: backend.memory, Breaker: breaker, Audit: audit}
}

func provideClosers(publisher *mailer.Publisher) []io.Closer {
	if publisher == nil {
		return nil
	}
	return []io.Closer{publisher}
}
