package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/repository"
)

// LogAuditDeadLetter keeps nothing; the full record goes to the error log so
// it can be recovered from log storage.
type LogAuditDeadLetter struct {
	logger *slog.Logger
}

func NewLogAuditDeadLetter(logger *slog.Logger) *LogAuditDeadLetter {
	return &LogAuditDeadLetter{logger: logger}
}

func (d *LogAuditDeadLetter) Push(ctx context.Context, entry domain.AuditLog) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	d.logger.ErrorContext(ctx, "audit record dead-lettered", "record", string(payload))
	return nil
}

func (d *LogAuditDeadLetter) Drain(context.Context, int, func(domain.AuditLog) error) (int, error) {
	return 0, nil
}

// RedisAuditDeadLetter is a FIFO list of JSON-encoded audit records.
type RedisAuditDeadLetter struct {
	client redis.UniversalClient
	key    string
}

func NewRedisAuditDeadLetter(client redis.UniversalClient, key string) *RedisAuditDeadLetter {
	if key == "" {
		key = "audit:dead_letter"
	}
	return &RedisAuditDeadLetter{client: client, key: key}
}

func (d *RedisAuditDeadLetter) Push(ctx context.Context, entry domain.AuditLog) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return d.client.RPush(ctx, d.key, payload).Err()
}

func (d *RedisAuditDeadLetter) Len(ctx context.Context) (int64, error) {
	return d.client.LLen(ctx, d.key).Result()
}

// Drain pops records oldest first. Records fn marks with
// repository.ErrAuditRecordRejected go to the corrupt list and draining
// continues. Any other fn error pushes the record back to the head of the
// list and stops.
func (d *RedisAuditDeadLetter) Drain(ctx context.Context, max int, fn func(domain.AuditLog) error) (int, error) {
	written := 0
	for max <= 0 || written < max {
		raw, err := d.client.LPop(ctx, d.key).Bytes()
		if errors.Is(err, redis.Nil) {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		var entry domain.AuditLog
		if err := json.Unmarshal(raw, &entry); err != nil {
			// Undecodable records cannot be replayed; keep them aside for inspection.
			_ = d.client.RPush(ctx, d.corruptKey(), raw).Err()
			continue
		}
		err = fn(entry)
		if errors.Is(err, repository.ErrAuditRecordRejected) {
			if pushErr := d.client.RPush(ctx, d.corruptKey(), raw).Err(); pushErr != nil {
				_ = d.client.LPush(ctx, d.key, raw).Err()
				return written, errors.Join(err, fmt.Errorf("set aside rejected record: %w", pushErr))
			}
			continue
		}
		if err != nil {
			if pushErr := d.client.LPush(ctx, d.key, raw).Err(); pushErr != nil {
				return written, errors.Join(err, fmt.Errorf("restore dead letter: %w", pushErr))
			}
			return written, err
		}
		written++
	}
	return written, nil
}

func (d *RedisAuditDeadLetter) corruptKey() string { return d.key + ":corrupt" }
