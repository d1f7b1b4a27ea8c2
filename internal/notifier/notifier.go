package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// ErrNotConfigured is returned by the no-op notifier
var ErrNotConfigured = errors.New("notifier is not configured")

// Notifier delivers a short plain-text message to an operator
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Noop is used when no notifier is configured
type Noop struct{}

// Send always fails with ErrNotConfigured
func (Noop) Send(context.Context, string, string, string) error {
	return ErrNotConfigured
}

// compose renders a single-part text/plain RFC 5322 message
func compose(from, to, subject, body string, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	if from != "" {
		h.SetAddressList("From", []*mail.Address{{Address: from}})
	}
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message writer: %w", err)
	}
	return buf.Bytes(), nil
}
