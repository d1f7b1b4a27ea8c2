package otp

import (
	"context"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"otp-gateway/internal/apperr"
	"otp-gateway/internal/credentials"
)

// SourceTOTP marks codes computed locally from a seed
const SourceTOTP = "otp"

// Period is the TOTP time step in seconds
const Period = 30

// MailFetcher retrieves the newest code delivered to a mailbox
type MailFetcher interface {
	FetchLatestCode(ctx context.Context, email, appPassword, senderFilter string) (string, error)
}

// Result is a code plus where it came from
type Result struct {
	Code   string
	Source string
}

// Provider picks TOTP synthesis or mailbox retrieval per account
type Provider struct {
	mail         MailFetcher
	senderFilter string
	now          func() time.Time
}

// NewProvider creates a provider; senderFilter restricts mailbox searches to one sender
func NewProvider(mail MailFetcher, senderFilter string) *Provider {
	return &Provider{mail: mail, senderFilter: senderFilter, now: time.Now}
}

// Fetch returns a code for rec. A TOTP seed takes priority over a mailbox app password.
func (p *Provider) Fetch(ctx context.Context, rec credentials.Record) (Result, error) {
	switch {
	case rec.TotpSeed != "":
		code, err := Generate(rec.TotpSeed, p.now())
		if err != nil {
			return Result{}, apperr.Wrap(apperr.KindInternal, "invalid totp seed", err)
		}
		return Result{Code: code, Source: SourceTOTP}, nil

	case rec.MailAppPassword != "":
		if p.mail == nil {
			return Result{}, apperr.New(apperr.KindNotConfigured, "mailbox retrieval is not available")
		}
		code, err := p.mail.FetchLatestCode(ctx, rec.AccountID, rec.MailAppPassword, p.senderFilter)
		if err != nil {
			return Result{}, err
		}
		return Result{Code: code}, nil

	default:
		return Result{}, apperr.New(apperr.KindNotConfigured, "account has neither a totp seed nor an app password")
	}
}

// Generate computes the RFC 6238 code of a base32 seed at t
func Generate(seed string, t time.Time) (string, error) {
	seed = strings.ToUpper(strings.ReplaceAll(seed, " ", ""))
	return totp.GenerateCodeCustom(seed, t, totp.ValidateOpts{
		Period:    Period,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}
