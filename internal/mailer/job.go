// Package mailer renders and delivers account emails, either directly through
// Mailgun or through an AMQP queue drained by the mailer worker.
package mailer

import "time"

// VerificationJob is the JSON payload placed on the email queue.
type VerificationJob struct {
	To        string    `json:"to"`
	Name      string    `json:"name"`
	VerifyURL string    `json:"verify_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (j VerificationJob) valid() bool {
	return j.To != "" && j.VerifyURL != ""
}
