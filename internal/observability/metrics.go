package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "legal-chat-auth"

type AppMetrics struct {
	authLoginCounter         metric.Int64Counter
	authRegistrationCounter  metric.Int64Counter
	authVerificationCounter  metric.Int64Counter
	authLockoutCounter       metric.Int64Counter
	authReqDuration          metric.Float64Histogram
	sessionValidationCounter metric.Int64Counter
	auditWriteFailures       metric.Int64Counter
	notifierDeliveryCounter  metric.Int64Counter
	mailerJobCounter         metric.Int64Counter
	rateLimitDecisionCounter metric.Int64Counter
	rateLimitRetryAfter      metric.Float64Histogram
	adminListReqDuration     metric.Float64Histogram
	repositoryOpsCounter     metric.Int64Counter
	databaseStartupCounter   metric.Int64Counter
	databaseStartupDuration  metric.Float64Histogram
	toolCommandRuns          metric.Int64Counter
	toolCommandDuration      metric.Float64Histogram
	healthCheckResultCounter metric.Int64Counter
	healthCheckDuration      metric.Float64Histogram
	middlewareValidation     metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "auth.request.duration"},
			sdkmetric.Stream{
				// bcrypt at cost 12 dominates login latency, so the buckets start at 50ms.
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1, 2, 5},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	loginCounter, err := meter.Int64Counter("auth.login.attempts")
	if err != nil {
		return nil, err
	}
	registrationCounter, err := meter.Int64Counter("auth.registration.events")
	if err != nil {
		return nil, err
	}
	verificationCounter, err := meter.Int64Counter("auth.verification.events")
	if err != nil {
		return nil, err
	}
	lockoutCounter, err := meter.Int64Counter("auth.lockouts",
		metric.WithDescription("Accounts locked after reaching the failed login threshold"))
	if err != nil {
		return nil, err
	}
	authReqDuration, err := meter.Float64Histogram("auth.request.duration", metric.WithUnit("s"), metric.WithDescription("Duration of auth endpoint requests in seconds"))
	if err != nil {
		return nil, err
	}
	sessionValidationCounter, err := meter.Int64Counter("auth.session.validation.events")
	if err != nil {
		return nil, err
	}
	auditWriteFailures, err := meter.Int64Counter("audit.write.failures",
		metric.WithDescription("Audit records that could not be written to the store"))
	if err != nil {
		return nil, err
	}
	notifierDeliveryCounter, err := meter.Int64Counter("notifier.delivery.events")
	if err != nil {
		return nil, err
	}
	mailerJobCounter, err := meter.Int64Counter("mailer.jobs")
	if err != nil {
		return nil, err
	}
	rateLimitDecisionCounter, err := meter.Int64Counter("http.rate_limit.decisions")
	if err != nil {
		return nil, err
	}
	rateLimitRetryAfter, err := meter.Float64Histogram(
		"http.rate_limit.retry_after",
		metric.WithUnit("s"),
		metric.WithDescription("Retry-after duration in seconds for throttled requests"),
	)
	if err != nil {
		return nil, err
	}
	adminListReqDuration, err := meter.Float64Histogram(
		"admin.list.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of admin list endpoint requests in seconds"),
	)
	if err != nil {
		return nil, err
	}
	repositoryOpsCounter, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	databaseStartupCounter, err := meter.Int64Counter("database.startup.events")
	if err != nil {
		return nil, err
	}
	databaseStartupDuration, err := meter.Float64Histogram("database.startup.duration", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	toolCommandRuns, err := meter.Int64Counter("tool.command.runs")
	if err != nil {
		return nil, err
	}
	toolCommandDuration, err := meter.Float64Histogram("tool.command.duration", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	healthCheckResultCounter, err := meter.Int64Counter("health.check.results")
	if err != nil {
		return nil, err
	}
	healthCheckDuration, err := meter.Float64Histogram(
		"health.check.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of health dependency checks in seconds"),
	)
	if err != nil {
		return nil, err
	}

	middlewareValidation, err := meter.Int64Counter("http.middleware.validation.events")
	if err != nil {
		return nil, err
	}

	return &AppMetrics{
		authLoginCounter:         loginCounter,
		authRegistrationCounter:  registrationCounter,
		authVerificationCounter:  verificationCounter,
		authLockoutCounter:       lockoutCounter,
		authReqDuration:          authReqDuration,
		sessionValidationCounter: sessionValidationCounter,
		auditWriteFailures:       auditWriteFailures,
		notifierDeliveryCounter:  notifierDeliveryCounter,
		mailerJobCounter:         mailerJobCounter,
		rateLimitDecisionCounter: rateLimitDecisionCounter,
		rateLimitRetryAfter:      rateLimitRetryAfter,
		adminListReqDuration:     adminListReqDuration,
		repositoryOpsCounter:     repositoryOpsCounter,
		databaseStartupCounter:   databaseStartupCounter,
		databaseStartupDuration:  databaseStartupDuration,
		toolCommandRuns:          toolCommandRuns,
		toolCommandDuration:      toolCommandDuration,
		healthCheckResultCounter: healthCheckResultCounter,
		healthCheckDuration:      healthCheckDuration,
		middlewareValidation:     middlewareValidation,
	}, nil
}

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

// RecordAuthLogin counts one authentication attempt by outcome
// (success, invalid_credentials, locked, locked_now, unverified, domain_rejected, error).
func RecordAuthLogin(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordAuthRegistration(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authRegistrationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordAuthVerification(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authVerificationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordAuthLockout(ctx context.Context) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authLockoutCounter.Add(ctx, 1)
}

func RecordAuthRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authReqDuration.Record(
		ctx,
		duration.Seconds(),
		metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status", status),
		),
	)
}

func RecordSessionValidation(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.sessionValidationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordAuditWriteFailure counts an audit record the store rejected; sink is
// where it went instead (dead_letter or dropped).
func RecordAuditWriteFailure(ctx context.Context, action, sink string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.auditWriteFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("sink", sink),
	))
}

func RecordNotifierDelivery(ctx context.Context, driver, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.notifierDeliveryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("driver", driver),
		attribute.String("outcome", outcome),
	))
}

func RecordMailerJob(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.mailerJobCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rateLimitDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
		attribute.String("mode", mode),
	))
}

func RecordRateLimitRetryAfter(ctx context.Context, scope string, retryAfter time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rateLimitRetryAfter.Record(ctx, retryAfter.Seconds(), metric.WithAttributes(
		attribute.String("scope", scope),
	))
}

func RecordAdminListRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.adminListReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	))
}

func RecordRepositoryOperation(ctx context.Context, repository, operation, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.repositoryOpsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repository", repository),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordDatabaseStartupEvent(ctx context.Context, stage, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.databaseStartupCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}

func RecordDatabaseStartupDuration(ctx context.Context, stage string, duration time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.databaseStartupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
	))
}

func RecordToolCommandRun(ctx context.Context, tool, command, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.toolCommandRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("command", command),
		attribute.String("status", status),
	))
}

func RecordToolCommandDuration(ctx context.Context, tool, command, status string, duration time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.toolCommandDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("command", command),
		attribute.String("status", status),
	))
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.healthCheckResultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("outcome", outcome),
	))
}

func RecordHealthCheckDuration(ctx context.Context, check string, duration time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.healthCheckDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("check", check),
	))
}

func RecordMiddlewareValidationEvent(ctx context.Context, middleware, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.middlewareValidation.Add(ctx, 1, metric.WithAttributes(
		attribute.String("middleware", middleware),
		attribute.String("outcome", outcome),
	))
}
