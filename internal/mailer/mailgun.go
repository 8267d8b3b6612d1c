package mailer

import (
	"context"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type MailgunSender struct {
	client  *mg.MailgunImpl
	sender  string
	timeout time.Duration
}

func NewMailgunSender(domain, apiKey, sender string) *MailgunSender {
	return &MailgunSender{client: mg.NewMailgun(domain, apiKey), sender: sender, timeout: 10 * time.Second}
}

func (m *MailgunSender) Send(ctx context.Context, msg Message) error {
	message := m.client.NewMessage(m.sender, msg.Subject, msg.Text, msg.To)
	if msg.HTML != "" {
		message.SetHtml(msg.HTML)
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	_, _, err := m.client.Send(ctx, message)
	return err
}
