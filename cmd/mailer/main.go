package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/config"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/mailer"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.AMQPURL == "" || cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
		log.Fatal("mailer requires AMQP_URL and MAILGUN_DOMAIN, MAILGUN_API_KEY, MAILGUN_SENDER")
	}

	runtime, err := observability.InitRuntime(context.Background(), cfg, observability.NewBootstrapLogger(cfg))
	if err != nil {
		log.Fatal(err)
	}
	logger := observability.InitLogger(cfg, runtime.LoggerProvider)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		if err := runtime.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown observability", "error", err)
		}
	}()

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Error("amqp dial failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := mailer.NewWorker(mailer.NewMailgunSender(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender), logger)
	if err := worker.Consume(ctx, conn, cfg.AMQPEmailQueue); err != nil {
		logger.Error("mailer worker stopped", "error", err)
	}
}
