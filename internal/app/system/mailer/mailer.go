// internal/app/system/mailer/mailer.go
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"sync"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Email is one outgoing message. TextBody is required; HTMLBody is optional.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Transport delivers a rendered message.
type Transport interface {
	Deliver(ctx context.Context, from mail.Address, e Email) error
}

// Mailer sends email through its transport with a fixed sender.
type Mailer struct {
	From      mail.Address
	transport Transport
	log       *zap.Logger
}

// Config selects and configures a transport. SendGridKey wins over SMTPHost;
// with neither set messages are logged instead of sent.
type Config struct {
	FromAddress string
	FromName    string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string

	SendGridKey string
}

// New builds a Mailer from cfg.
func New(cfg Config, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	var t Transport
	switch {
	case cfg.SendGridKey != "":
		t = &SendGrid{client: sendgrid.NewSendClient(cfg.SendGridKey)}
	case cfg.SMTPHost != "":
		t = &SMTP{Host: cfg.SMTPHost, Port: cfg.SMTPPort, User: cfg.SMTPUser, Pass: cfg.SMTPPass}
	default:
		t = &LogTransport{Log: log}
	}
	return NewWithTransport(mail.Address{Name: cfg.FromName, Address: cfg.FromAddress}, t, log)
}

// NewWithTransport builds a Mailer around an explicit transport.
func NewWithTransport(from mail.Address, t Transport, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailer{From: from, transport: t, log: log}
}

// Send validates and delivers e.
func (m *Mailer) Send(ctx context.Context, e Email) error {
	if _, err := mail.ParseAddress(e.To); err != nil {
		return fmt.Errorf("mailer: bad recipient %q: %w", e.To, err)
	}
	if e.Subject == "" || e.TextBody == "" {
		return errors.New("mailer: subject and text body are required")
	}
	if err := m.transport.Deliver(ctx, m.From, e); err != nil {
		return fmt.Errorf("mailer: deliver: %w", err)
	}
	m.log.Debug("email sent", zap.String("to", e.To), zap.String("subject", e.Subject))
	return nil
}

// SMTP delivers over net/smtp with PLAIN auth when a user is set.
type SMTP struct {
	Host string
	Port int
	User string
	Pass string
}

func (s *SMTP) Deliver(ctx context.Context, from mail.Address, e Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := Render(from, e, time.Now())
	if err != nil {
		return err
	}
	port := s.Port
	if port == 0 {
		port = 587
	}
	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	addr := s.Host + ":" + strconv.Itoa(port)
	return smtp.SendMail(addr, auth, from.Address, []string{e.To}, body)
}

// SendGrid delivers through the SendGrid v3 API.
type SendGrid struct {
	client *sendgrid.Client
}

func (s *SendGrid) Deliver(_ context.Context, from mail.Address, e Email) error {
	msg := sgmail.NewSingleEmail(
		sgmail.NewEmail(from.Name, from.Address),
		e.Subject,
		sgmail.NewEmail("", e.To),
		e.TextBody,
		e.HTMLBody,
	)
	res, err := s.client.Send(msg)
	if err != nil {
		return err
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// LogTransport logs messages instead of sending them and keeps a copy of each.
// Used in development and tests.
type LogTransport struct {
	Log *zap.Logger

	mu   sync.Mutex
	sent []Email
}

func (t *LogTransport) Deliver(_ context.Context, from mail.Address, e Email) error {
	t.mu.Lock()
	t.sent = append(t.sent, e)
	t.mu.Unlock()
	if t.Log != nil {
		t.Log.Info("email (not sent)",
			zap.String("from", from.String()),
			zap.String("to", e.To),
			zap.String("subject", e.Subject),
			zap.String("body", e.TextBody))
	}
	return nil
}

// Sent returns the messages delivered so far.
func (t *LogTransport) Sent() []Email {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Email(nil), t.sent...)
}

// Render builds an RFC 5322 message. A message with an HTML body is sent as
// multipart/alternative.
func Render(from mail.Address, e Email, at time.Time) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", e.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mimeHeader(e.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", at.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if e.HTMLBody == "" {
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		buf.WriteString(e.TextBody)
		return buf.Bytes(), nil
	}

	var parts bytes.Buffer
	mw := multipart.NewWriter(&parts)
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())

	for _, p := range []struct{ ctype, body string }{
		{"text/plain; charset=UTF-8", e.TextBody},
		{"text/html; charset=UTF-8", e.HTMLBody},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.ctype}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	buf.Write(parts.Bytes())
	return buf.Bytes(), nil
}

func mimeHeader(s string) string {
	return mime.QEncoding.Encode("utf-8", s)
}
