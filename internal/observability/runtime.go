package observability

import (
	"context"
	"errors"
	"log/slog"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/config"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Runtime struct {
	LoggerProvider *sdklog.LoggerProvider
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
}

func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	lp, err := InitLogs(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		if lp != nil {
			_ = lp.Shutdown(ctx)
		}
		return nil, err
	}
	tp, err := InitTracing(ctx, cfg, logger)
	if err != nil {
		if mp != nil {
			_ = mp.Shutdown(ctx)
		}
		if lp != nil {
			_ = lp.Shutdown(ctx)
		}
		return nil, err
	}
	return &Runtime{LoggerProvider: lp, MeterProvider: mp, TracerProvider: tp}, nil
}

// Shutdown flushes traces and metrics before logs so that shutdown errors
// from the first two still reach the log exporter.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	type shutdowner interface{ Shutdown(context.Context) error }
	var errs []error
	for _, p := range []shutdowner{r.TracerProvider, r.MeterProvider, r.LoggerProvider} {
		if isNilProvider(p) {
			continue
		}
		if err := p.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isNilProvider(p interface{ Shutdown(context.Context) error }) bool {
	switch v := p.(type) {
	case *sdktrace.TracerProvider:
		return v == nil
	case *sdkmetric.MeterProvider:
		return v == nil
	case *sdklog.LoggerProvider:
		return v == nil
	}
	return p == nil
}
