package syncjob

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"otp-gateway/internal/apperr"
	"otp-gateway/internal/ledger"
	"otp-gateway/internal/mailbox"
	"otp-gateway/internal/metrics"
)

// DefaultLookback is how far back rotation notifications are replayed
const DefaultLookback = 7 * 24 * time.Hour

var notificationPattern = regexp.MustCompile(`(?m)^\s*([^,\s]+)\s*,\s*(\d{4})\s*$`)

// Result aggregates the outcome of one run
type Result struct {
	Inspected int `json:"inspected"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
}

// Options configures a Job
type Options struct {
	Inbox         string
	AppPassword   string
	Subject       string
	Lookback      time.Duration
	LedgerTimeout time.Duration
}

// Job replays rotation notifications from a mailbox into the ledger
type Job struct {
	resolver  *mailbox.Resolver
	transport mailbox.Transport
	ledger    ledger.Ledger
	metrics   *metrics.Metrics
	opts      Options
	now       func() time.Time

	mu      sync.Mutex
	lastRun Result
}

// New creates a sync job
func New(resolver *mailbox.Resolver, transport mailbox.Transport, l ledger.Ledger, m *metrics.Metrics, opts Options) *Job {
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	return &Job{
		resolver:  resolver,
		transport: transport,
		ledger:    l,
		metrics:   metrics.OrUnregistered(m),
		opts:      opts,
		now:       time.Now,
	}
}

// ParseNotification extracts the account and PIN of a rotation notification body
func ParseNotification(body string) (account, pin string, ok bool) {
	m := notificationPattern.FindStringSubmatch(body)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Run scans the inbox once. Messages are replayed oldest first so the newest PIN of each account wins.
func (j *Job) Run(ctx context.Context) (Result, error) {
	var res Result

	if j.opts.Inbox == "" || j.opts.AppPassword == "" {
		return res, apperr.New(apperr.KindNotConfigured, "sync inbox is not configured")
	}

	ep, err := j.resolver.Resolve(j.opts.Inbox)
	if err != nil {
		return res, err
	}

	j.metrics.SyncRuns.Inc()
	log := logrus.WithField("inbox", j.opts.Inbox)

	session, err := j.transport.Dial(ctx, ep, j.opts.Inbox, j.opts.AppPassword)
	if err != nil {
		return res, apperr.Wrap(apperr.KindTransport, "sync inbox connection failed", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warnf("Failed to close sync inbox session: %v", err)
		}
	}()

	if err := session.SelectInbox(ctx); err != nil {
		return res, apperr.Wrap(apperr.KindTransport, "sync inbox select failed", err)
	}

	since := j.now().Add(-j.opts.Lookback)
	candidates, err := session.Search(ctx, mailbox.Criteria{Since: since, Subject: j.opts.Subject})
	if err != nil {
		return res, apperr.Wrap(apperr.KindTransport, "sync inbox search failed", err)
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].ReceivedAt.Before(candidates[b].ReceivedAt)
	})

	for _, c := range candidates {
		if c.ReceivedAt.Before(since) {
			continue
		}
		if j.opts.Subject != "" && !strings.Contains(strings.ToLower(c.Subject), strings.ToLower(j.opts.Subject)) {
			continue
		}
		res.Inspected++

		text, err := mailbox.ExtractText(c.Raw)
		if err != nil {
			text = string(c.Raw)
		}

		account, pin, ok := ParseNotification(text)
		if !ok {
			res.Skipped++
			continue
		}

		switch r, err := j.upsert(ctx, account, pin); {
		case err != nil:
			log.WithField("account", account).Warnf("Failed to replay rotation into ledger: %v", err)
			res.Skipped++
		case r == ledger.Inserted:
			res.Inserted++
		default:
			res.Updated++
		}
	}

	j.metrics.SyncMessages.WithLabelValues("inserted").Add(float64(res.Inserted))
	j.metrics.SyncMessages.WithLabelValues("updated").Add(float64(res.Updated))
	j.metrics.SyncMessages.WithLabelValues("skipped").Add(float64(res.Skipped))

	j.mu.Lock()
	j.lastRun = res
	j.mu.Unlock()

	log.WithFields(logrus.Fields{
		"inspected": res.Inspected,
		"inserted":  res.Inserted,
		"updated":   res.Updated,
		"skipped":   res.Skipped,
	}).Info("Rotation sync finished")

	return res, nil
}

func (j *Job) upsert(ctx context.Context, account, pin string) (ledger.Result, error) {
	if j.opts.LedgerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.opts.LedgerTimeout)
		defer cancel()
	}
	return j.ledger.Upsert(ctx, account, pin)
}

// LastResult returns the counts of the most recent successful run
func (j *Job) LastResult() Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRun
}
