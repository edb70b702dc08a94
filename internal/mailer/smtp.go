package mailer

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

type SMTPMailer struct {
	dialer    *mail.Dialer
	fromEmail string
	logger    *zap.SugaredLogger
	backoff   time.Duration
}

func NewSMTP(host string, port int, username, password, fromEmail string, logger *zap.SugaredLogger) *SMTPMailer {
	d := mail.NewDialer(host, port, username, password)
	d.Timeout = 10 * time.Second
	return &SMTPMailer{
		dialer:    d,
		fromEmail: fromEmail,
		logger:    logger,
		backoff:   time.Second,
	}
}

func (m *SMTPMailer) Send(templateFile, username, email string, data any) error {
	subject, body, err := render(templateFile, data)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, FromName)
	msg.SetAddressHeader("To", email, username)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	for i := 0; i < maxRetires; i++ {
		err = m.dialer.DialAndSend(msg)
		if err == nil {
			return nil
		}
		m.logger.Warnw("failed to send email", "to", email, "attempt", i+1, "error", err)
		time.Sleep(m.backoff * time.Duration(i+1))
	}
	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetires, err)
}

// Noop is used when SMTP is not configured.
type Noop struct {
	logger *zap.SugaredLogger
}

func NewNoop(logger *zap.SugaredLogger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) Send(templateFile, _, email string, data any) error {
	subject, _, err := render(templateFile, data)
	if err != nil {
		return err
	}
	n.logger.Debugw("email not sent, smtp disabled", "to", email, "subject", subject)
	return nil
}
