package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:          http.StatusBadRequest,
		KindUnknownAccount:      http.StatusBadRequest,
		KindUnsupportedProvider: http.StatusBadRequest,
		KindNotConfigured:       http.StatusBadRequest,
		KindUnauthorized:        http.StatusUnauthorized,
		KindPinNotConfigured:    http.StatusForbidden,
		KindRateLimited:         http.StatusTooManyRequests,
		KindNoMessagesFound:     http.StatusNotFound,
		KindCodeNotFound:        http.StatusNotFound,
		KindTransport:           http.StatusInternalServerError,
		KindInternal:            http.StatusInternalServerError,
	}

	for kind, want := range cases {
		assert.Equal(t, want, StatusCode(New(kind, "x")), string(kind))
	}
}

func TestWrappedErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := fmt.Errorf("fetch: %w", Wrap(KindTransport, "mailbox unavailable", cause))

	assert.True(t, errors.Is(err, ErrTransport))
	assert.False(t, errors.Is(err, ErrInternal))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, "fetch: mailbox unavailable: dial tcp: i/o timeout", err.Error())
}

func TestForeignErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}
