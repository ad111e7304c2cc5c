package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"golang.org/x/time/rate"

	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/pkg/logger"
)

const (
	mailgunTimeout = 30 * time.Second

	// stays under Mailgun's per-domain sending rate
	mailgunRate  = rate.Limit(5)
	mailgunBurst = 5
)

// mailgunClient is the part of the Mailgun SDK the sender uses
type mailgunClient interface {
	NewMessage(from, subject, text string, to ...string) *mailgun.Message
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

// MailgunSender emails each new application to the configured recipient
type MailgunSender struct {
	cfg       *config.NotificationsConfig
	client    mailgunClient
	templates *Templates
	limiter   *rate.Limiter
	log       *slog.Logger
}

func NewMailgunSender(cfg *config.NotificationsConfig, templates *Templates, log *slog.Logger) *MailgunSender {
	return &MailgunSender{
		cfg:       cfg,
		client:    mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey),
		templates: templates,
		limiter:   rate.NewLimiter(mailgunRate, mailgunBurst),
		log:       log.With(logger.Scope("notifications.mailgun")),
	}
}

func (s *MailgunSender) Send(ctx context.Context, msg Message, _ string) error {
	if err := s.validate(); err != nil {
		return err
	}

	rendered, err := s.templates.Render(msg)
	if err != nil {
		return err
	}

	from := fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromEmail)
	m := s.client.NewMessage(from, rendered.Subject, rendered.Text, s.cfg.Recipient)
	m.SetHtml(rendered.HTML)
	m.SetReplyTo(msg.CandidateEmail)

	sendCtx, cancel := context.WithTimeout(ctx, mailgunTimeout)
	defer cancel()

	if err := s.limiter.Wait(sendCtx); err != nil {
		return fmt.Errorf("mailgun rate limit: %w", err)
	}

	_, id, err := s.client.Send(sendCtx, m)
	if err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}

	s.log.Info("notification email sent",
		slog.Int64("job_id", msg.JobID),
		slog.String("to", s.cfg.Recipient),
		slog.String("mailgun_id", id),
	)
	return nil
}

func (s *MailgunSender) validate() error {
	switch {
	case s.cfg.MailgunDomain == "":
		return errors.New("MAILGUN_DOMAIN is required")
	case s.cfg.MailgunAPIKey == "":
		return errors.New("MAILGUN_API_KEY is required")
	case s.cfg.FromEmail == "":
		return errors.New("EMAIL_FROM_ADDRESS is required")
	case s.cfg.Recipient == "":
		return errors.New("NOTIFICATION_RECIPIENT is required")
	}
	return nil
}
