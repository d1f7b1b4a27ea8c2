package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"otp-gateway/internal/model"
)

// IMAPTransport dials IMAP servers with go-imap
type IMAPTransport struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Dial connects and logs in
func (t *IMAPTransport) Dial(ctx context.Context, ep Endpoint, user, password string) (Session, error) {
	addr := net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
	dialer := &net.Dialer{Timeout: t.Timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	var (
		c   *client.Client
		err error
	)
	if ep.TLS {
		c, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{
			ServerName:         ep.Host,
			InsecureSkipVerify: t.InsecureSkipVerify,
		})
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	c.Timeout = t.Timeout

	if err := c.Login(user, password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	return &imapSession{client: c}, nil
}

type imapSession struct {
	client *client.Client
}

func (s *imapSession) SelectInbox(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.Select("INBOX", true); err != nil {
		return fmt.Errorf("failed to select INBOX: %w", err)
	}
	return nil
}

// searchCriteria builds the server-side query. SINCE is a bare date compared on the
// server's clock, so it is sent in UTC and widened by a day; Search applies the exact
// cutoff on the internal date.
func searchCriteria(cr Criteria) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	if cr.Unseen {
		criteria.WithoutFlags = []string{imap.SeenFlag}
	}
	if !cr.Since.IsZero() {
		criteria.Since = cr.Since.UTC().Add(-24 * time.Hour)
	}
	if cr.From != "" {
		criteria.Header.Add("From", cr.From)
	}
	if cr.Subject != "" {
		criteria.Header.Add("Subject", cr.Subject)
	}
	return criteria
}

// Search returns matching messages without marking them as seen.
func (s *imapSession) Search(ctx context.Context, cr Criteria) ([]model.MailCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	criteria := searchCriteria(cr)
	seqNums, err := s.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(seqNums) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(seqNums...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(seqNums))
	done := make(chan error, 1)
	go func() {
		done <- s.client.Fetch(seqset, items, messages)
	}()

	var candidates []model.MailCandidate
	for msg := range messages {
		cand := model.MailCandidate{UID: msg.Uid, ReceivedAt: msg.InternalDate}
		if msg.Envelope != nil {
			cand.Subject = msg.Envelope.Subject
			if len(msg.Envelope.From) > 0 {
				cand.From = msg.Envelope.From[0].Address()
			}
			if cand.ReceivedAt.IsZero() {
				cand.ReceivedAt = msg.Envelope.Date
			}
		}
		if r := msg.GetBody(section); r != nil {
			raw, err := io.ReadAll(r)
			if err != nil {
				continue
			}
			cand.Raw = raw
		}
		if !cr.Since.IsZero() && cand.ReceivedAt.Before(cr.Since) {
			continue
		}
		candidates = append(candidates, cand)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return candidates, nil
}

func (s *imapSession) Close() error {
	return s.client.Logout()
}
