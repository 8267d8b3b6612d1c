package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

const workerPrefetch = 16

// Worker drains verification jobs from the queue and sends them.
type Worker struct {
	sender      Sender
	logger      *slog.Logger
	sendTimeout time.Duration
	now         func() time.Time
}

func NewWorker(sender Sender, logger *slog.Logger) *Worker {
	return &Worker{sender: sender, logger: logger, sendTimeout: 15 * time.Second, now: time.Now}
}

// Consume blocks until ctx is done or the delivery channel closes.
func (w *Worker) Consume(ctx context.Context, conn *amqp.Connection, queue string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(workerPrefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	if _, err := declareQueue(ch, queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	w.logger.Info("mailer worker listening", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			w.Handle(ctx, d)
		}
	}
}

// Handle acks sent jobs, drops malformed ones and requeues send failures.
func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) {
	var job VerificationJob
	if err := json.Unmarshal(d.Body, &job); err != nil || !job.valid() {
		w.logger.WarnContext(ctx, "mailer dropped malformed job", "error", err, "delivery_tag", d.DeliveryTag)
		observability.RecordMailerJob(ctx, "dropped")
		_ = d.Nack(false, false)
		return
	}
	msg, err := RenderVerification(job, w.now())
	if err != nil {
		w.logger.ErrorContext(ctx, "mailer render failed", "error", err, "to", job.To)
		observability.RecordMailerJob(ctx, "dropped")
		_ = d.Nack(false, false)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()
	if err := w.sender.Send(sendCtx, msg); err != nil {
		w.logger.WarnContext(ctx, "mailer send failed, requeueing", "error", err, "to", job.To)
		observability.RecordMailerJob(ctx, "requeued")
		_ = d.Nack(false, true)
		return
	}
	observability.RecordMailerJob(ctx, "sent")
	_ = d.Ack(false)
}
