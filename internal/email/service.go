// Package email delivers notification messages over SMTP.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/rs/zerolog"

	"collabsauce/api/internal/notify"
)

var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service sends rendered notification messages.
type Service struct {
	config    Config
	server    string
	auth      smtp.Auth
	templates map[notify.Template]*template.Template
	send      sendFunc
}

var _ notify.Sender = (*Service)(nil)

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config:    config,
		server:    config.Host + ":" + config.Port,
		auth:      auth,
		templates: parseTemplates(),
		send:      smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) Send(ctx context.Context, msg notify.Message) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := s.Render(msg)
	if err != nil {
		return err
	}
	if err := s.send(s.server, s.auth, s.config.From, []string{msg.To}, body); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	zerolog.Ctx(ctx).Debug().Str("to", msg.To).Str("template", string(msg.Template)).Msg("email sent")
	return nil
}

// Render builds the multipart message for msg.
func (s *Service) Render(msg notify.Message) ([]byte, error) {
	tmpl, ok := s.templates[msg.Template]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", msg.Template)
	}
	var html bytes.Buffer
	view := struct {
		notify.Data
		ToName  string
		Subject string
	}{msg.Data, msg.ToName, msg.Subject}
	if err := tmpl.Execute(&html, view); err != nil {
		return nil, fmt.Errorf("render %s template: %w", msg.Template, err)
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	to := msg.To
	if msg.ToName != "" {
		to = fmt.Sprintf("%s <%s>", msg.ToName, msg.To)
	}

	boundary := "boundary-collabsauce"

	var out bytes.Buffer
	fmt.Fprintf(&out, "To: %s\r\n", to)
	fmt.Fprintf(&out, "From: %s\r\n", from)
	fmt.Fprintf(&out, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&out, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&out, "\r\n")

	// Plain text part (fallback)
	fmt.Fprintf(&out, "--%s\r\n", boundary)
	fmt.Fprintf(&out, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&out, "\r\n")
	fmt.Fprintf(&out, "%s\r\n", msg.Subject)
	if link := msg.Data.TaskURL + msg.Data.InviteURL; link != "" {
		fmt.Fprintf(&out, "%s\r\n", link)
	}
	fmt.Fprintf(&out, "\r\n")

	fmt.Fprintf(&out, "--%s\r\n", boundary)
	fmt.Fprintf(&out, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&out, "\r\n")
	fmt.Fprintf(&out, "%s\r\n", html.String())
	fmt.Fprintf(&out, "\r\n")
	fmt.Fprintf(&out, "--%s--\r\n", boundary)

	return out.Bytes(), nil
}

// LogSender writes messages to the log instead of sending them. It is used
// when SMTP is not configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg notify.Message) error {
	zerolog.Ctx(ctx).Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("template", string(msg.Template)).
		Msg("email not configured; notification logged")
	return nil
}
