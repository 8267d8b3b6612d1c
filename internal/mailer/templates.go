package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltpl "html/template"
	texttpl "text/template"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const verificationSubject = "Verify your AI Legal account"

var (
	verifyHTML = htmltpl.Must(htmltpl.ParseFS(templateFS, "templates/verify_email.html.tmpl"))
	verifyText = texttpl.Must(texttpl.ParseFS(templateFS, "templates/verify_email.txt.tmpl"))
)

type verificationView struct {
	Name      string
	VerifyURL string
	ExpiresIn string
	Year      int
}

// Message is a rendered email ready to hand to a Sender.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

func RenderVerification(job VerificationJob, now time.Time) (Message, error) {
	view := verificationView{
		Name:      job.Name,
		VerifyURL: job.VerifyURL,
		ExpiresIn: humanizeUntil(job.ExpiresAt, now),
		Year:      now.Year(),
	}
	var text, html bytes.Buffer
	if err := verifyText.Execute(&text, view); err != nil {
		return Message{}, fmt.Errorf("render verification text: %w", err)
	}
	if err := verifyHTML.Execute(&html, view); err != nil {
		return Message{}, fmt.Errorf("render verification html: %w", err)
	}
	return Message{To: job.To, Subject: verificationSubject, Text: text.String(), HTML: html.String()}, nil
}

func humanizeUntil(t, now time.Time) string {
	d := t.Sub(now).Round(time.Hour)
	switch {
	case d <= 0:
		return "shortly"
	case d < 2*time.Hour:
		return "1 hour"
	default:
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
}
