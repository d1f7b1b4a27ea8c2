package notifier

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"otp-gateway/internal/config"
)

const gmailMaxRetries = 2

// messageSender is the part of the Gmail API used to deliver a raw message
type messageSender interface {
	Send(ctx context.Context, userID string, msg *gmail.Message) error
}

// GmailNotifier sends notifications through the Gmail API
type GmailNotifier struct {
	sender    messageSender
	userEmail string
	from      string
	backoff   time.Duration
}

// NewGmailNotifier creates a notifier authorized by an OAuth2 refresh token
func NewGmailNotifier(ctx context.Context, cfg config.GmailConfig, from string) (*GmailNotifier, error) {
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}

	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	userEmail := cfg.UserEmail
	if userEmail == "" {
		userEmail = "me"
	}
	if from == "" {
		from = cfg.UserEmail
	}

	return &GmailNotifier{
		sender:    &gmailSender{service: service},
		userEmail: userEmail,
		from:      from,
		backoff:   time.Second,
	}, nil
}

// Send delivers the message, retrying with exponential backoff while Gmail reports rate limiting
func (n *GmailNotifier) Send(ctx context.Context, to, subject, body string) error {
	raw, err := compose(n.from, to, subject, body, time.Now())
	if err != nil {
		return err
	}
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}

	b := retry.WithMaxRetries(gmailMaxRetries, retry.NewExponential(n.backoff))
	attempt := 0
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := n.sender.Send(ctx, n.userEmail, msg)
		if err == nil {
			return nil
		}
		if isRateLimited(err) {
			logrus.Warnf("Gmail rate limited notification (attempt %d/%d): %v", attempt, gmailMaxRetries+1, err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to send notification via Gmail: %w", err)
	}
	return nil
}

func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "ratelimit")
}

type gmailSender struct {
	service *gmail.Service
}

func (s *gmailSender) Send(ctx context.Context, userID string, msg *gmail.Message) error {
	_, err := s.service.Users.Messages.Send(userID, msg).Context(ctx).Do()
	return err
}
