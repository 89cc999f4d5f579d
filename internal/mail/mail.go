// Package mail builds and dispatches the login-link email.
//
// Actual SMTP delivery is not part of this service. A Mailer is the seam where
// a real transport plugs in; the built-in LogMailer writes the message to the
// structured log, which is all local development needs to click the link.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"
	"time"
)

// LoginSubject is the subject line of every login-link email.
const LoginSubject = "Your login link for Superlists"

// Message is a plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LoginParams is passed as data when executing the login template.
type LoginParams struct {
	Email string
	URL   string
	// Expiration is how long the link stays valid. Zero means it does not expire.
	Expiration time.Duration
}

// LoginTemplate is the body of the login-link email.
const LoginTemplate = `Use this link to log in:

{{.URL}}
{{if .Expiration}}
The link works once and expires in {{printf "%.f" .Expiration.Minutes}} minutes.
{{end}}
If you did not ask to log in to Superlists, you can ignore this email.
`

var loginTmpl = template.Must(template.New("login").Parse(LoginTemplate))

// LoginMessage renders the login email for p, sent from the given address.
func LoginMessage(from string, p LoginParams) (Message, error) {
	var body bytes.Buffer
	if err := loginTmpl.Execute(&body, p); err != nil {
		return Message{}, fmt.Errorf("mail: rendering login email: %w", err)
	}
	return Message{
		From:    from,
		To:      p.Email,
		Subject: LoginSubject,
		Body:    body.String(),
	}, nil
}

// LogMailer "sends" mail by logging it.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer writing to logger.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs msg at info level.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "email sent",
		slog.String("from", msg.From),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}
