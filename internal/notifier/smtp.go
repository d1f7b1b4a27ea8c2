package notifier

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"otp-gateway/internal/config"
)

// ErrSMTPNoSender is returned when neither From nor Username is configured
var ErrSMTPNoSender = errors.New("no sender provided")

// SMTPNotifier sends notifications through an SMTP relay using an app password
type SMTPNotifier struct {
	host string
	port int
	from string
	auth smtp.Auth
}

// NewSMTPNotifier creates an SMTP notifier
func NewSMTPNotifier(cfg config.SMTPConfig, from string) (*SMTPNotifier, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, errors.New("smtp host and port are required")
	}
	if from == "" {
		from = cfg.Username
	}
	if from == "" {
		return nil, ErrSMTPNoSender
	}

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTPNotifier{host: cfg.Host, port: cfg.Port, from: from, auth: auth}, nil
}

// Send delivers the message; ctx bounds the whole SMTP exchange
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	raw, err := compose(n.from, to, subject, body, time.Now())
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- n.deliver(ctx, to, raw)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send notification via SMTP: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *SMTPNotifier) deliver(ctx context.Context, to string, raw []byte) error {
	addr := net.JoinHostPort(n.host, strconv.Itoa(n.port))

	// port 465 speaks TLS from the first byte; everything else upgrades with STARTTLS
	if n.port != 465 {
		return smtp.SendMail(addr, n.auth, n.from, []string{to}, raw)
	}

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: n.host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, n.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if n.auth != nil {
		if err := c.Auth(n.auth); err != nil {
			return err
		}
	}
	if err := c.Mail(n.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
