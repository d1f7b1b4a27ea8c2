package mailbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otp-gateway/internal/apperr"
	"otp-gateway/internal/config"
	"otp-gateway/internal/metrics"
	"otp-gateway/internal/model"
)

type fakeSession struct {
	candidates []model.MailCandidate
	selectErr  error
	searchErr  error
	criteria   Criteria
	closed     int
}

func (s *fakeSession) SelectInbox(context.Context) error { return s.selectErr }

func (s *fakeSession) Search(_ context.Context, cr Criteria) ([]model.MailCandidate, error) {
	s.criteria = cr
	return s.candidates, s.searchErr
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeTransport struct {
	session  *fakeSession
	err      error
	endpoint Endpoint
}

func (t *fakeTransport) Dial(_ context.Context, ep Endpoint, _, _ string) (Session, error) {
	t.endpoint = ep
	if t.err != nil {
		return nil, t.err
	}
	return t.session, nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestFetcher(tr Transport) *Fetcher {
	f := NewFetcher(NewResolver(nil), tr, 5*time.Minute, time.Second, metrics.NewMetrics(prometheus.NewRegistry()))
	f.now = func() time.Time { return testNow }
	return f
}

func plainMessage(body string) []byte {
	return []byte("From: noreply@example.com\r\nSubject: Your code\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n" + body)
}

func TestResolver(t *testing.T) {
	r := NewResolver([]config.ProviderHost{{Domain: "Corp.example", Host: "mail.corp.example"}})

	ep, err := r.Resolve("a@Gmail.com")
	require.NoError(t, err)
	assert.Equal(t, Endpoint{Host: "imap.gmail.com", Port: 993, TLS: true}, ep)

	ep, err = r.Resolve("b@hotmail.com")
	require.NoError(t, err)
	assert.Equal(t, "imap-mail.outlook.com", ep.Host)

	ep, err = r.Resolve("c@corp.example")
	require.NoError(t, err)
	assert.Equal(t, 993, ep.Port)

	_, err = r.Resolve("d@unknown.org")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedProvider)

	_, err = r.Resolve("no-at-sign")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestExtractCode(t *testing.T) {
	code, ok := ExtractCode("Your verification code is 482913. Call 5551234567 for help.")
	require.True(t, ok)
	assert.Equal(t, "482913", code)

	_, ok = ExtractCode("Call 5551234567 or 12345")
	assert.False(t, ok)

	code, ok = ExtractCode("order 1234567890 then code 000111 then 222333")
	require.True(t, ok)
	assert.Equal(t, "000111", code)
}

func TestExtractTextPrefersPlainPart(t *testing.T) {
	raw := "Content-Type: multipart/alternative; boundary=XYZ\r\n\r\n" +
		"--XYZ\r\nContent-Type: text/html; charset=utf-8\r\n\r\n<p>html 111111</p>\r\n" +
		"--XYZ\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nplain 222222\r\n" +
		"--XYZ--\r\n"

	text, err := ExtractText([]byte(raw))
	require.NoError(t, err)
	code, ok := ExtractCode(text)
	require.True(t, ok)
	assert.Equal(t, "222222", code)
}

func TestExtractTextFallsBackToHTML(t *testing.T) {
	raw := "Content-Type: text/html; charset=utf-8\r\nContent-Transfer-Encoding: quoted-printable\r\n\r\n" +
		"<style>.x{color:#123456}</style><div>Code:&nbsp;<b>654321</b></div>"

	text, err := ExtractText([]byte(raw))
	require.NoError(t, err)
	code, ok := ExtractCode(text)
	require.True(t, ok)
	assert.Equal(t, "654321", code)
}

func TestFetchSelectsNewestCandidate(t *testing.T) {
	session := &fakeSession{candidates: []model.MailCandidate{
		{ReceivedAt: testNow.Add(-3 * time.Minute), Raw: plainMessage("code 111111")},
		{ReceivedAt: testNow.Add(-30 * time.Second), Raw: plainMessage("code 333333")},
		{ReceivedAt: testNow.Add(-2 * time.Minute), Raw: plainMessage("code 222222")},
	}}
	f := newTestFetcher(&fakeTransport{session: session})

	code, err := f.FetchLatestCode(context.Background(), "a@gmail.com", "app-pass", "noreply@example.com")
	require.NoError(t, err)
	assert.Equal(t, "333333", code)

	assert.Equal(t, 1, session.closed)
	assert.True(t, session.criteria.Unseen)
	assert.Equal(t, "noreply@example.com", session.criteria.From)
	assert.Equal(t, testNow.Add(-5*time.Minute), session.criteria.Since)
}

func TestFetchIgnoresMessagesOutsideWindow(t *testing.T) {
	session := &fakeSession{candidates: []model.MailCandidate{
		{ReceivedAt: testNow.Add(-10 * time.Minute), Raw: plainMessage("code 111111")},
	}}
	f := newTestFetcher(&fakeTransport{session: session})

	_, err := f.FetchLatestCode(context.Background(), "a@gmail.com", "app-pass", "")
	assert.ErrorIs(t, err, apperr.ErrNoMessagesFound)
	assert.Equal(t, 1, session.closed)
}

func TestFetchNoMessages(t *testing.T) {
	session := &fakeSession{}
	f := newTestFetcher(&fakeTransport{session: session})

	_, err := f.FetchLatestCode(context.Background(), "a@yahoo.com", "app-pass", "")
	assert.ErrorIs(t, err, apperr.ErrNoMessagesFound)
	assert.Equal(t, "no code found", err.Error())
	assert.Equal(t, 1, session.closed)
}

func TestFetchCodeNotFound(t *testing.T) {
	session := &fakeSession{candidates: []model.MailCandidate{
		{ReceivedAt: testNow.Add(-time.Minute), Raw: plainMessage("call 5551234567")},
	}}
	f := newTestFetcher(&fakeTransport{session: session})

	_, err := f.FetchLatestCode(context.Background(), "a@outlook.com", "app-pass", "")
	assert.ErrorIs(t, err, apperr.ErrCodeNotFound)
	assert.Equal(t, 1, session.closed)
}

func TestFetchClosesSessionOnTransportErrors(t *testing.T) {
	selectFails := &fakeSession{selectErr: errors.New("NO [UNAVAILABLE]")}
	_, err := newTestFetcher(&fakeTransport{session: selectFails}).
		FetchLatestCode(context.Background(), "a@gmail.com", "app-pass", "")
	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.Equal(t, 1, selectFails.closed)

	searchFails := &fakeSession{searchErr: errors.New("connection reset")}
	_, err = newTestFetcher(&fakeTransport{session: searchFails}).
		FetchLatestCode(context.Background(), "a@gmail.com", "app-pass", "")
	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 1, searchFails.closed)
}

func TestFetchDialFailure(t *testing.T) {
	tr := &fakeTransport{err: errors.New("i/o timeout")}
	_, err := newTestFetcher(tr).FetchLatestCode(context.Background(), "a@gmail.com", "bad", "")
	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.Equal(t, "imap.gmail.com", tr.endpoint.Host)
}

func TestFetchUnsupportedProviderSkipsNetwork(t *testing.T) {
	tr := &fakeTransport{session: &fakeSession{}}
	_, err := newTestFetcher(tr).FetchLatestCode(context.Background(), "a@proton.me", "x", "")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedProvider)
	assert.Empty(t, tr.endpoint.Host)
}

func TestSearchCriteriaSinceUsesServerDay(t *testing.T) {
	bangkok := time.FixedZone("+07", 7*60*60)
	now := time.Date(2026, 3, 2, 0, 10, 0, 0, bangkok)
	since := now.Add(-5 * time.Minute)

	criteria := searchCriteria(Criteria{Since: since, Unseen: true, From: "otp@example.com"})

	// go-imap writes SINCE with Format("2-Jan-2006") and no zone conversion.
	assert.Equal(t, "28-Feb-2026", criteria.Since.Format("2-Jan-2006"))
	assert.Equal(t, time.UTC, criteria.Since.Location())
	received := time.Date(2026, 3, 1, 17, 10, 0, 0, time.UTC)
	assert.False(t, received.Truncate(24*time.Hour).Before(criteria.Since.Truncate(24*time.Hour)))
	assert.Equal(t, []string{"\\Seen"}, criteria.WithoutFlags)
	assert.Equal(t, "otp@example.com", criteria.Header.Get("From"))
}

func TestSearchCriteriaWithoutSince(t *testing.T) {
	criteria := searchCriteria(Criteria{Subject: "code"})
	assert.True(t, criteria.Since.IsZero())
	assert.Empty(t, criteria.WithoutFlags)
	assert.Equal(t, "code", criteria.Header.Get("Subject"))
}

func TestFetchWithoutMetrics(t *testing.T) {
	session := &fakeSession{candidates: []model.MailCandidate{
		{ReceivedAt: testNow.Add(-time.Minute), Raw: plainMessage("code 444444")},
	}}
	f := NewFetcher(NewResolver(nil), &fakeTransport{session: session}, 0, time.Second, nil)
	f.now = func() time.Time { return testNow }

	code, err := f.FetchLatestCode(context.Background(), "a@gmail.com", "app-pass", "")
	require.NoError(t, err)
	assert.Equal(t, "444444", code)
}
