package observability

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RedisKeyspaces maps a key prefix to the component label reported for
// commands touching it, e.g. {"rl:": "rate_limit", "audit:": "audit_dead_letter"}.
type RedisKeyspaces map[string]string

// InstrumentRedisClient adds command latency and error metrics to client.
// Call it once per client.
func InstrumentRedisClient(client redis.UniversalClient, keyspaces RedisKeyspaces, logger *slog.Logger) {
	if client == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	hook, err := newRedisMetricsHook(client, keyspaces)
	if err != nil {
		logger.Warn("redis observability instrumentation disabled", "error", err)
		return
	}
	client.AddHook(hook)
	logger.Info("redis observability instrumentation enabled", "keyspaces", len(keyspaces))
}

type redisMetricsHook struct {
	keyspaces  RedisKeyspaces
	cmdTotal   metric.Int64Counter
	cmdErrors  metric.Int64Counter
	cmdLatency metric.Float64Histogram
}

func newRedisMetricsHook(client redis.UniversalClient, keyspaces RedisKeyspaces) (*redisMetricsHook, error) {
	meter := otel.Meter(meterName)

	cmdTotal, err := meter.Int64Counter("redis.command.total",
		metric.WithDescription("Redis commands issued by rate limiting and audit dead-lettering"))
	if err != nil {
		return nil, err
	}
	cmdErrors, err := meter.Int64Counter("redis.command.errors")
	if err != nil {
		return nil, err
	}
	cmdLatency, err := meter.Float64Histogram("redis.command.duration", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	poolSaturation, err := meter.Float64ObservableGauge("redis.pool.saturation", metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := client.PoolStats()
		if stats == nil || stats.TotalConns == 0 {
			return nil
		}
		used := float64(stats.TotalConns-stats.IdleConns) / float64(stats.TotalConns)
		o.ObserveFloat64(poolSaturation, min(max(used, 0), 1))
		return nil
	}, poolSaturation)
	if err != nil {
		return nil, err
	}

	return &redisMetricsHook{
		keyspaces:  keyspaces,
		cmdTotal:   cmdTotal,
		cmdErrors:  cmdErrors,
		cmdLatency: cmdLatency,
	}, nil
}

func (h *redisMetricsHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *redisMetricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observe(ctx, cmd, err, time.Since(start))
		return err
	}
}

func (h *redisMetricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		elapsed := time.Since(start)
		for _, cmd := range cmds {
			h.observe(ctx, cmd, cmd.Err(), elapsed)
		}
		return err
	}
}

func (h *redisMetricsHook) observe(ctx context.Context, cmd redis.Cmder, err error, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("command", commandName(cmd)),
		attribute.String("component", h.component(cmd)),
		attribute.String("status", redisCommandStatus(err)),
	)
	h.cmdTotal.Add(ctx, 1, attrs)
	h.cmdLatency.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil && !errors.Is(err, redis.Nil) {
		h.cmdErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("command", commandName(cmd)),
			attribute.String("error_type", classifyRedisError(err)),
		))
	}
}

// component resolves the first key argument against the configured prefixes.
// EVALSHA and EVAL carry the key after the script and key count.
func (h *redisMetricsHook) component(cmd redis.Cmder) string {
	args := cmd.Args()
	keyPos := 1
	switch commandName(cmd) {
	case "eval", "evalsha":
		keyPos = 3
	}
	if len(args) <= keyPos {
		return "other"
	}
	key, ok := args[keyPos].(string)
	if !ok {
		return "other"
	}
	for prefix, name := range h.keyspaces {
		if strings.HasPrefix(key, prefix) {
			return name
		}
	}
	return "other"
}

func commandName(cmd redis.Cmder) string {
	return strings.ToLower(cmd.Name())
}

func redisCommandStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, redis.Nil):
		return "miss"
	default:
		return "error"
	}
}

func classifyRedisError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "connection"):
		return "connection"
	default:
		return "other"
	}
}
