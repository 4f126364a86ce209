package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/Davzs/adezz/internal/config"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      []string
	Subject string
	// Kind is the template the message was rendered from.
	Kind string
	// Raw is the complete RFC 5322 message, headers included.
	Raw []byte
}

// Sender defines the interface for sending emails.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender implements the Sender interface using Go's net/smtp package.
type SMTPSender struct {
	cfg  *config.Config
	auth smtp.Auth
	addr string
	log  *zap.Logger
}

// NewSMTPSender creates a new SMTPSender, or a LoggingSender when no SMTP
// host is configured.
func NewSMTPSender(cfg *config.Config, log *zap.Logger) Sender {
	if cfg.SmtpHost == "" {
		log.Info("SMTP host not configured, using logging email sender")
		return &LoggingSender{cfg: cfg, log: log}
	}

	var auth smtp.Auth
	if cfg.SmtpUsername != "" {
		auth = smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost)
	}

	return &SMTPSender{
		cfg:  cfg,
		auth: auth,
		addr: fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort),
		log:  log,
	}
}

// Send sends an email using SMTP.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := smtp.SendMail(s.addr, s.auth, s.cfg.SmtpFromAddress, msg.To, msg.Raw); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}
	s.log.Info("email sent via SMTP", zap.Strings("to", msg.To), zap.String("kind", msg.Kind))
	return nil
}

// LoggingSender only logs email details. Useful for development or when SMTP
// isn't configured.
type LoggingSender struct {
	cfg *config.Config
	log *zap.Logger
}

func NewLoggingSender(cfg *config.Config, log *zap.Logger) *LoggingSender {
	return &LoggingSender{cfg: cfg, log: log}
}

func (s *LoggingSender) Send(ctx context.Context, msg Message) error {
	s.log.Info("email (logged, not sent)",
		zap.Strings("to", msg.To),
		zap.String("from", s.cfg.SmtpFromAddress),
		zap.String("subject", msg.Subject),
		zap.String("kind", msg.Kind),
		zap.ByteString("raw", msg.Raw),
	)
	return nil
}
