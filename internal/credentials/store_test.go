package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"otp-gateway/internal/config"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	s := NewStore(Record{AccountID: "A@X.com", PinSecret: "1234"})

	r, ok := s.Lookup(" a@x.COM ")
	assert.True(t, ok)
	assert.Equal(t, "a@x.com", r.AccountID)
	assert.Equal(t, "1234", r.PinSecret)

	_, ok = s.Lookup("b@x.com")
	assert.False(t, ok)
}

func TestSetPinSecretDoesNotMutateCopies(t *testing.T) {
	s := NewStore(Record{AccountID: "a@x.com", PinSecret: "1234"})
	before, _ := s.Lookup("a@x.com")

	assert.True(t, s.SetPinSecret("a@x.com", "5678"))
	assert.False(t, s.SetPinSecret("missing@x.com", "5678"))

	after, _ := s.Lookup("a@x.com")
	assert.Equal(t, "1234", before.PinSecret)
	assert.Equal(t, "5678", after.PinSecret)
}

func TestFromConfig(t *testing.T) {
	s := FromConfig([]config.AccountConfig{
		{Email: "a@gmail.com", PinHash: "$2b$10$x", AppPassword: "app"},
		{Email: "b@x.com", TotpSecret: "JBSWY3DPEHPK3PXP"},
	})

	assert.Equal(t, 2, s.Accounts())
	a, _ := s.Lookup("a@gmail.com")
	assert.Equal(t, "app", a.MailAppPassword)
	b, _ := s.Lookup("b@x.com")
	assert.Equal(t, "JBSWY3DPEHPK3PXP", b.TotpSeed)
}
