package mailbox

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"otp-gateway/internal/apperr"
	"otp-gateway/internal/metrics"
	"otp-gateway/internal/model"
)

// DefaultLookback is how far back a code search looks
const DefaultLookback = 5 * time.Minute

// Fetcher finds the latest OTP delivered to a mailbox
type Fetcher struct {
	resolver  *Resolver
	transport Transport
	lookback  time.Duration
	timeout   time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewFetcher creates a fetcher
func NewFetcher(resolver *Resolver, transport Transport, lookback, timeout time.Duration, m *metrics.Metrics) *Fetcher {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Fetcher{
		resolver:  resolver,
		transport: transport,
		lookback:  lookback,
		timeout:   timeout,
		metrics:   metrics.OrUnregistered(m),
		now:       time.Now,
	}
}

// FetchLatestCode returns the 6 digit code of the newest unread message received within the lookback window.
func (f *Fetcher) FetchLatestCode(ctx context.Context, email, appPassword, senderFilter string) (string, error) {
	ep, err := f.resolver.Resolve(email)
	if err != nil {
		return "", err
	}

	start := f.now()
	defer func() {
		f.metrics.MailboxFetchTime.Observe(time.Since(start).Seconds())
	}()

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	log := logrus.WithFields(logrus.Fields{"account": email, "host": ep.Host})

	session, err := f.transport.Dial(ctx, ep, email, appPassword)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTransport, "mailbox connection failed", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warnf("Failed to close mailbox session: %v", err)
		}
	}()

	if err := session.SelectInbox(ctx); err != nil {
		return "", apperr.Wrap(apperr.KindTransport, "mailbox select failed", err)
	}

	since := start.Add(-f.lookback)
	candidates, err := session.Search(ctx, Criteria{Since: since, Unseen: true, From: senderFilter})
	if err != nil {
		return "", apperr.Wrap(apperr.KindTransport, "mailbox search failed", err)
	}

	var recent []model.MailCandidate
	for _, c := range candidates {
		if !c.ReceivedAt.Before(since) {
			recent = append(recent, c)
		}
	}
	if len(recent) == 0 {
		log.Debug("No recent messages in mailbox")
		return "", apperr.New(apperr.KindNoMessagesFound, "no code found")
	}

	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].ReceivedAt.After(recent[j].ReceivedAt)
	})
	latest := recent[0]

	text, err := ExtractText(latest.Raw)
	if err != nil {
		log.Warnf("Failed to parse message, scanning raw source: %v", err)
		text = string(latest.Raw)
	}

	code, ok := ExtractCode(text)
	if !ok {
		return "", apperr.New(apperr.KindCodeNotFound, "no code found in the latest message")
	}

	log.WithField("received_at", latest.ReceivedAt).Info("Code found in mailbox")
	return code, nil
}
