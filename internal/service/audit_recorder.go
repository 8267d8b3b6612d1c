package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/repository"
)

// AuditDeadLetter holds audit records the store rejected so they can be
// replayed later.
type AuditDeadLetter interface {
	Push(ctx context.Context, entry domain.AuditLog) error
	Drain(ctx context.Context, max int, fn func(domain.AuditLog) error) (int, error)
}

// RequestMeta is the caller context attached to every audit record.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AuditRecorder writes audit records after the business mutation committed.
// Failures never reach the caller.
type AuditRecorder struct {
	repo       repository.AuditLogRepository
	deadLetter AuditDeadLetter
	logger     *slog.Logger
	now        func() time.Time
	replays    singleflight.Group
}

func NewAuditRecorder(repo repository.AuditLogRepository, deadLetter AuditDeadLetter, logger *slog.Logger) *AuditRecorder {
	return &AuditRecorder{
		repo:       repo,
		deadLetter: deadLetter,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *AuditRecorder) Record(ctx context.Context, entry domain.AuditLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	// The request may already be cancelled by the time a slow lockout
	// transaction finishes; the record must still be written.
	ctx = context.WithoutCancel(ctx)
	err := r.repo.Create(ctx, &entry)
	if err == nil {
		return
	}
	r.logger.ErrorContext(ctx, "audit write failed",
		"action", entry.Action,
		"email", entry.Email,
		"success", entry.Success,
		"error", err,
	)
	if r.deadLetter == nil {
		observability.RecordAuditWriteFailure(ctx, string(entry.Action), "dropped")
		return
	}
	if dlErr := r.deadLetter.Push(ctx, entry); dlErr != nil {
		r.logger.ErrorContext(ctx, "audit dead letter push failed", "action", entry.Action, "error", dlErr)
		observability.RecordAuditWriteFailure(ctx, string(entry.Action), "dropped")
		return
	}
	observability.RecordAuditWriteFailure(ctx, string(entry.Action), "dead_letter")
}

// Replay moves up to max dead-lettered records into the store and returns
// how many were drained. A record that already reached the store counts as
// drained. Concurrent callers share one drain.
func (r *AuditRecorder) Replay(ctx context.Context, max int) (int, error) {
	if r.deadLetter == nil {
		return 0, nil
	}
	v, err, _ := r.replays.Do("replay", func() (any, error) {
		return r.deadLetter.Drain(ctx, max, func(entry domain.AuditLog) error {
			return r.repo.Restore(ctx, &entry)
		})
	})
	n, _ := v.(int)
	return n, err
}

func newAuditEntry(action domain.AuditAction, userID *string, email string, meta RequestMeta, success bool) domain.AuditLog {
	return domain.AuditLog{
		Action:    action,
		UserID:    userID,
		Email:     email,
		IPAddress: orUnknown(meta.IP),
		UserAgent: orUnknown(meta.UserAgent),
		Success:   success,
	}
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
