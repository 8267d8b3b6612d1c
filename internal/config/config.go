package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseDriver string
	DatabaseURL    string

	AuthAllowedEmailDomain string
	AuthMaxLoginAttempts   int
	AuthLockoutDuration    time.Duration
	AuthVerifyTokenTTL     time.Duration
	AuthBcryptCost         int
	AuthVerifyBaseURL      string
	AuthSignInRedirectURL  string
	BootstrapAdminEmail    string

	SessionJWTSecret    string
	SessionTTL          time.Duration
	SessionCookieSecure bool
	CORSAllowedOrigins  []string

	RateLimitWindow              time.Duration
	RateLimitDefaultQuota        int
	RateLimitRouteQuotas         map[string]int
	RateLimitCleanupInterval     time.Duration
	RateLimitRedisEnabled        bool
	RateLimitRedisPrefix         string
	RateLimitDenyBreakerRPS      float64
	RateLimitDenyBreakerBurst    int
	RedisAddr                    string
	RedisPassword                string
	RedisDB                      int
	AuditDeadLetterEnabled       bool
	AuditDeadLetterKey           string
	ReadinessProbeTimeout        time.Duration
	ServerStartGracePeriod       time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	NotifierDriver string
	MailgunDomain  string
	MailgunAPIKey  string
	MailgunSender  string
	AMQPURL        string
	AMQPEmailQueue string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

const (
	NotifierLog     = "log"
	NotifierMailgun = "mailgun"
	NotifierAMQP    = "amqp"
)

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")
	cfg := &Config{
		Env:                       env,
		HTTPPort:                  getEnv("HTTP_PORT", "8080"),
		DatabaseDriver:            strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		AuthAllowedEmailDomain:    strings.ToLower(strings.TrimSpace(getEnv("AUTH_ALLOWED_EMAIL_DOMAIN", "@reichmanjorgensen.com"))),
		AuthMaxLoginAttempts:      getEnvInt("AUTH_MAX_LOGIN_ATTEMPTS", 5),
		AuthBcryptCost:            getEnvInt("AUTH_BCRYPT_COST", 12),
		AuthVerifyBaseURL:         strings.TrimRight(getEnv("AUTH_VERIFY_BASE_URL", "http://localhost:8080"), "/"),
		AuthSignInRedirectURL:     getEnv("AUTH_SIGNIN_REDIRECT_URL", "http://localhost:3000/auth/signin"),
		BootstrapAdminEmail:       strings.TrimSpace(strings.ToLower(os.Getenv("BOOTSTRAP_ADMIN_EMAIL"))),
		SessionJWTSecret:          os.Getenv("SESSION_JWT_SECRET"),
		SessionCookieSecure:       getEnvBool("SESSION_COOKIE_SECURE", !isLocalLikeEnv(env)),
		CORSAllowedOrigins:        splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitDefaultQuota:     getEnvInt("RATE_LIMIT_DEFAULT_QUOTA", 100),
		RateLimitRedisEnabled:     getEnvBool("RATE_LIMIT_REDIS_ENABLED", false),
		RateLimitRedisPrefix:      getEnv("RATE_LIMIT_REDIS_PREFIX", "rl"),
		RateLimitDenyBreakerRPS:   getEnvFloat("RATE_LIMIT_DENY_BREAKER_RPS", 1),
		RateLimitDenyBreakerBurst: getEnvInt("RATE_LIMIT_DENY_BREAKER_BURST", 60),
		RedisAddr:                 getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:             os.Getenv("REDIS_PASSWORD"),
		RedisDB:                   getEnvInt("REDIS_DB", 0),
		AuditDeadLetterEnabled:    getEnvBool("AUDIT_DEAD_LETTER_ENABLED", false),
		AuditDeadLetterKey:        getEnv("AUDIT_DEAD_LETTER_KEY", "audit:dead_letter"),
		NotifierDriver:            strings.ToLower(getEnv("NOTIFIER_DRIVER", NotifierLog)),
		MailgunDomain:             os.Getenv("MAILGUN_DOMAIN"),
		MailgunAPIKey:             os.Getenv("MAILGUN_API_KEY"),
		MailgunSender:             os.Getenv("MAILGUN_SENDER"),
		AMQPURL:                   os.Getenv("AMQP_URL"),
		AMQPEmailQueue:            getEnv("AMQP_EMAIL_QUEUE", "auth.verification.emails"),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "legal-chat-auth"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", true),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", true),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	quotas, err := ParseRouteQuotas(getEnv("RATE_LIMIT_ROUTE_QUOTAS", "/api/chat=20,/api/auth=5"))
	if err != nil {
		return nil, fmt.Errorf("parse RATE_LIMIT_ROUTE_QUOTAS: %w", err)
	}
	cfg.RateLimitRouteQuotas = quotas

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"AUTH_LOCKOUT_DURATION", "30m", &cfg.AuthLockoutDuration},
		{"AUTH_VERIFY_TOKEN_TTL", "24h", &cfg.AuthVerifyTokenTTL},
		{"SESSION_TTL", "8h", &cfg.SessionTTL},
		{"RATE_LIMIT_WINDOW", "60s", &cfg.RateLimitWindow},
		{"RATE_LIMIT_CLEANUP_INTERVAL", "5m", &cfg.RateLimitCleanupInterval},
		{"READINESS_PROBE_TIMEOUT", "1s", &cfg.ReadinessProbeTimeout},
		{"SERVER_START_GRACE_PERIOD", "0s", &cfg.ServerStartGracePeriod},
		{"SHUTDOWN_TIMEOUT", "20s", &cfg.ShutdownTimeout},
		{"SHUTDOWN_HTTP_DRAIN_TIMEOUT", "10s", &cfg.ShutdownHTTPDrainTimeout},
		{"SHUTDOWN_OBSERVABILITY_TIMEOUT", "8s", &cfg.ShutdownObservabilityTimeout},
		{"OTEL_METRICS_EXPORT_INTERVAL", "10s", &cfg.OTELMetricsExportInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		errs = append(errs, "DATABASE_DRIVER must be postgres or sqlite")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if !strings.HasPrefix(c.AuthAllowedEmailDomain, "@") || len(c.AuthAllowedEmailDomain) < 3 {
		errs = append(errs, "AUTH_ALLOWED_EMAIL_DOMAIN must look like @example.com")
	}
	if c.AuthMaxLoginAttempts <= 0 {
		errs = append(errs, "AUTH_MAX_LOGIN_ATTEMPTS must be > 0")
	}
	if c.AuthLockoutDuration <= 0 {
		errs = append(errs, "AUTH_LOCKOUT_DURATION must be > 0")
	}
	if c.AuthVerifyTokenTTL <= 0 {
		errs = append(errs, "AUTH_VERIFY_TOKEN_TTL must be > 0")
	}
	if c.AuthBcryptCost < 12 || c.AuthBcryptCost > 31 {
		errs = append(errs, "AUTH_BCRYPT_COST must be between 12 and 31")
	}
	if len(c.SessionJWTSecret) < 32 {
		errs = append(errs, "SESSION_JWT_SECRET must be at least 32 chars")
	}
	if !isLocalLikeEnv(c.Env) && !c.SessionCookieSecure {
		errs = append(errs, "SESSION_COOKIE_SECURE must be true outside local environments")
	}
	if c.SessionTTL <= 0 || c.SessionTTL > 7*24*time.Hour {
		errs = append(errs, "SESSION_TTL must be between 1s and 7d")
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, "RATE_LIMIT_WINDOW must be > 0")
	}
	if c.RateLimitDefaultQuota <= 0 {
		errs = append(errs, "RATE_LIMIT_DEFAULT_QUOTA must be > 0")
	}
	if c.RateLimitCleanupInterval <= 0 {
		errs = append(errs, "RATE_LIMIT_CLEANUP_INTERVAL must be > 0")
	}
	if c.RateLimitDenyBreakerRPS < 0 || c.RateLimitDenyBreakerBurst < 0 {
		errs = append(errs, "RATE_LIMIT_DENY_BREAKER_* must be >= 0")
	}
	if (c.RateLimitRedisEnabled || c.AuditDeadLetterEnabled) && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when redis-backed features are enabled")
	}
	switch c.NotifierDriver {
	case NotifierLog:
	case NotifierMailgun:
		if c.MailgunDomain == "" || c.MailgunAPIKey == "" || c.MailgunSender == "" {
			errs = append(errs, "MAILGUN_DOMAIN, MAILGUN_API_KEY and MAILGUN_SENDER are required when NOTIFIER_DRIVER=mailgun")
		}
	case NotifierAMQP:
		if c.AMQPURL == "" || c.AMQPEmailQueue == "" {
			errs = append(errs, "AMQP_URL and AMQP_EMAIL_QUEUE are required when NOTIFIER_DRIVER=amqp")
		}
	default:
		errs = append(errs, "NOTIFIER_DRIVER must be one of log, mailgun, amqp")
	}
	if c.NotifierDriver == NotifierLog && !isLocalLikeEnv(c.Env) {
		errs = append(errs, "NOTIFIER_DRIVER=log is only allowed in local environments")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ParseRouteQuotas reads "prefix=quota" pairs separated by commas.
func ParseRouteQuotas(v string) (map[string]int, error) {
	out := make(map[string]int)
	for _, pair := range splitCSV(v) {
		prefix, raw, ok := strings.Cut(pair, "=")
		prefix = strings.TrimSpace(prefix)
		if !ok || !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("invalid route quota %q", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid quota for %s", prefix)
		}
		out[prefix] = n
	}
	return out, nil
}

// RouteQuotaPrefixes returns configured prefixes in a stable order for logging.
func (c *Config) RouteQuotaPrefixes() []string {
	out := make([]string, 0, len(c.RateLimitRouteQuotas))
	for p := range c.RateLimitRouteQuotas {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// IsLocalLike reports whether dev-only shortcuts may run.
func (c *Config) IsLocalLike() bool {
	return isLocalLikeEnv(c.Env)
}

func isLocalLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local", "test":
		return true
	default:
		return false
	}
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
