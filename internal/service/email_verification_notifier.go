package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/mailer"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
)

type VerificationNotification struct {
	UserID          string
	Email           string
	Name            string
	ExpiresAt       time.Time
	VerificationURL string
}

//go:generate mockgen -source=email_verification_notifier.go -destination=mock_notifier_test.go -package=service

// EmailVerificationNotifier delivers the verification link. A nil error means
// the message was handed off (sent, queued or logged), not that it was read.
type EmailVerificationNotifier interface {
	SendEmailVerification(ctx context.Context, notification VerificationNotification) error
}

// DevEmailVerificationNotifier logs the link instead of sending it.
type DevEmailVerificationNotifier struct {
	logger *slog.Logger
}

func NewDevEmailVerificationNotifier(logger *slog.Logger) *DevEmailVerificationNotifier {
	return &DevEmailVerificationNotifier{logger: logger}
}

func (n *DevEmailVerificationNotifier) SendEmailVerification(ctx context.Context, notification VerificationNotification) error {
	n.logger.InfoContext(ctx, "email verification link issued",
		"user_id", notification.UserID,
		"email", notification.Email,
		"expires_at", notification.ExpiresAt,
		"verification_url", notification.VerificationURL,
	)
	observability.RecordNotifierDelivery(ctx, "log", "sent")
	return nil
}

// MailgunEmailVerificationNotifier renders and sends synchronously.
type MailgunEmailVerificationNotifier struct {
	sender mailer.Sender
	now    func() time.Time
}

func NewMailgunEmailVerificationNotifier(sender mailer.Sender) *MailgunEmailVerificationNotifier {
	return &MailgunEmailVerificationNotifier{sender: sender, now: time.Now}
}

func (n *MailgunEmailVerificationNotifier) SendEmailVerification(ctx context.Context, notification VerificationNotification) error {
	msg, err := mailer.RenderVerification(jobFor(notification), n.now())
	if err != nil {
		observability.RecordNotifierDelivery(ctx, "mailgun", "render_error")
		return err
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		observability.RecordNotifierDelivery(ctx, "mailgun", "error")
		return fmt.Errorf("mailgun send: %w", err)
	}
	observability.RecordNotifierDelivery(ctx, "mailgun", "sent")
	return nil
}

// JobPublisher is satisfied by *mailer.Publisher.
type JobPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// QueueEmailVerificationNotifier publishes a job for the mailer worker.
type QueueEmailVerificationNotifier struct {
	publisher JobPublisher
}

func NewQueueEmailVerificationNotifier(publisher JobPublisher) *QueueEmailVerificationNotifier {
	return &QueueEmailVerificationNotifier{publisher: publisher}
}

func (n *QueueEmailVerificationNotifier) SendEmailVerification(ctx context.Context, notification VerificationNotification) error {
	if err := n.publisher.PublishJSON(ctx, jobFor(notification)); err != nil {
		observability.RecordNotifierDelivery(ctx, "amqp", "error")
		return fmt.Errorf("publish verification job: %w", err)
	}
	observability.RecordNotifierDelivery(ctx, "amqp", "queued")
	return nil
}

func jobFor(n VerificationNotification) mailer.VerificationJob {
	return mailer.VerificationJob{
		To:        n.Email,
		Name:      n.Name,
		VerifyURL: n.VerificationURL,
		ExpiresAt: n.ExpiresAt,
	}
}
