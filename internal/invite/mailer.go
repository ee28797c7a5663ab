package invite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/matricare/pkg/config"
)

const inviteSubject = "MatriCare Family Access Invitation"

// ErrNotConfigured is returned while SMTP credentials are missing.
var ErrNotConfigured = errors.New("SMTP not configured")

var inviteTemplate = template.Must(template.New("invite").Parse(`
<h2>You've been granted access to maternal health records</h2>
<p>{{if .PatientName}}{{.PatientName}} has added you as a family member.{{end}}
Click the button below to view updates:</p>
<a href="{{.Link}}">
  <button style="padding:10px;background-color:#ff4081;color:white;border:none;border-radius:6px">
    Access MatriCare
  </button>
</a>
`))

// Invitation is the data rendered into the email body.
type Invitation struct {
	To          string
	PatientName string
	Link        string
}

// Sender delivers one invitation.
type Sender interface {
	Send(ctx context.Context, inv Invitation) error
}

// EmailSender sends invitations over SMTP
type EmailSender struct {
	config *config.SMTPConfig
	logger *zap.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSender creates a new email sender
func NewEmailSender(cfg *config.SMTPConfig, logger *zap.Logger) *EmailSender {
	return &EmailSender{config: cfg, logger: logger, send: smtp.SendMail}
}

// Configured reports whether SMTP credentials are present.
func (e *EmailSender) Configured() bool {
	return e.config.Host != "" && e.config.Username != "" && e.config.Password != ""
}

// Send renders and delivers an invitation. Without SMTP configuration it
// returns ErrNotConfigured so the invitation is not recorded as sent.
func (e *EmailSender) Send(ctx context.Context, inv Invitation) error {
	body, err := renderInvite(inv)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	if !e.Configured() {
		e.logger.Warn("SMTP not configured, invitation held",
			zap.String("to", inv.To))
		return ErrNotConfigured
	}

	message := buildMessage(e.config.From, inv.To, body)
	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)

	if err := e.send(addr, auth, e.config.From, []string{inv.To}, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info("invitation sent", zap.String("to", inv.To))
	return nil
}

// TestConnection tests the SMTP connection
func (e *EmailSender) TestConnection() error {
	if !e.Configured() {
		return ErrNotConfigured
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	return nil
}

func renderInvite(inv Invitation) (string, error) {
	var buf bytes.Buffer
	if err := inviteTemplate.Execute(&buf, inv); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildMessage(from, to, body string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", inviteSubject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.Bytes()
}
