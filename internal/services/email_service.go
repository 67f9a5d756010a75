package services

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"cookbook/internal/config"
	"cookbook/internal/logging"
)

// Notifier доставляет одно письмо. Ошибка означает, что письмо не ушло.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailService struct {
	sender mailSender
	from   string
	dryRun bool
	log    logging.Logger
}

func NewEmailService(cfg config.EmailConfig, log logging.Logger) *EmailService {
	return &EmailService{
		sender: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.FromEmail,
		dryRun: cfg.DryRun,
		log:    log,
	}
}

func (s *EmailService) Send(ctx context.Context, recipient, subject, body string) error {
	if s.dryRun {
		s.log.Info(ctx, "[email][dry-run] message not sent", "to", recipient, "subject", subject, "body", body)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.sender.DialAndSend(m); err != nil {
		s.log.Error(ctx, "[email][send] failed", "to", recipient, "subject", subject, "err", err)
		return fmt.Errorf("send email to %s: %w", recipient, err)
	}
	s.log.Info(ctx, "[email][send] ok", "to", recipient, "subject", subject)
	return nil
}
