package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"otp-gateway/internal/apperr"
	"otp-gateway/internal/credentials"
	"otp-gateway/internal/limiter"
	"otp-gateway/internal/metrics"
	"otp-gateway/internal/otp"
	"otp-gateway/internal/pin"
	"otp-gateway/internal/rotation"
)

// CodeProvider returns a code for an account
type CodeProvider interface {
	Fetch(ctx context.Context, rec credentials.Record) (otp.Result, error)
}

// Service exchanges a PIN for an OTP
type Service struct {
	store    *credentials.Store
	global   *rotation.GlobalPin
	limiter  *limiter.UsageLimiter
	rotator  *rotation.Rotator
	provider CodeProvider
	metrics  *metrics.Metrics

	beforeConsume func()
}

// NewService creates the gateway service. A nil global selects per-account PINs.
// A nil m records metrics on a private registry.
func NewService(
	store *credentials.Store,
	global *rotation.GlobalPin,
	lim *limiter.UsageLimiter,
	rotator *rotation.Rotator,
	provider CodeProvider,
	m *metrics.Metrics,
) *Service {
	return &Service{
		store:    store,
		global:   global,
		limiter:  lim,
		rotator:  rotator,
		provider: provider,
		metrics:  metrics.OrUnregistered(m),
	}
}

// GetOTP verifies the PIN of account, consumes one use and returns a code.
// When the usage cap is reached a rotation is triggered and the call is rejected.
func (s *Service) GetOTP(ctx context.Context, account, submittedPin string) (otp.Result, error) {
	res, err := s.getOTP(ctx, account, submittedPin)
	outcome := "success"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	s.metrics.OTPRequests.WithLabelValues(outcome).Inc()
	return res, err
}

func (s *Service) getOTP(ctx context.Context, account, submittedPin string) (otp.Result, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return otp.Result{}, apperr.New(apperr.KindValidation, "accountEmail is required")
	}
	if submittedPin == "" {
		return otp.Result{}, apperr.New(apperr.KindValidation, "pin is required")
	}

	rec, ok := s.store.Lookup(account)
	if !ok {
		return otp.Result{}, apperr.New(apperr.KindUnknownAccount, "unsupported email")
	}

	log := logrus.WithField("account", rec.AccountID)

	stored := rec.PinSecret
	if s.global != nil {
		stored = s.global.Current()
	}
	if stored == "" {
		return otp.Result{}, apperr.New(apperr.KindPinNotConfigured, "PIN not configured for this account")
	}

	valid, err := pin.Verify(submittedPin, stored)
	if err != nil {
		log.Errorf("PIN verification failed: %v", err)
		return otp.Result{}, apperr.Wrap(apperr.KindInternal, "PIN verification failed", err)
	}
	if !valid {
		log.Warn("Invalid PIN submitted")
		return otp.Result{}, apperr.New(apperr.KindUnauthorized, "invalid PIN")
	}

	if s.beforeConsume != nil {
		s.beforeConsume()
	}
	isCurrent := func() bool { return s.currentSecret(rec.AccountID) == stored }
	switch s.limiter.ConsumeCurrent(rec.AccountID, submittedPin, isCurrent) {
	case limiter.Stale:
		log.Warn("PIN rotated during verification")
		return otp.Result{}, apperr.New(apperr.KindUnauthorized, "invalid PIN")
	case limiter.Denied:
		switch err := s.rotator.Rotate(rec.AccountID); {
		case err == nil:
			log.Info("Usage limit reached, PIN rotation started")
		case errors.Is(err, rotation.ErrRotationInProgress):
			log.Debug("Usage limit reached, rotation already in progress")
		default:
			log.Errorf("PIN rotation failed: %v", err)
		}
		return otp.Result{}, apperr.New(apperr.KindRateLimited, "usage limit exceeded, PIN has been rotated")
	}

	res, err := s.provider.Fetch(ctx, rec)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindTransport || apperr.KindOf(err) == apperr.KindInternal {
			log.Errorf("Failed to fetch code: %v", err)
		}
		return otp.Result{}, err
	}

	log.WithField("source", sourceLabel(res)).Info("Code delivered")
	return res, nil
}

// currentSecret returns the secret a PIN is checked against right now
func (s *Service) currentSecret(account string) string {
	if s.global != nil {
		return s.global.Current()
	}
	rec, _ := s.store.Lookup(account)
	return rec.PinSecret
}

func sourceLabel(res otp.Result) string {
	if res.Source != "" {
		return res.Source
	}
	return "mailbox"
}
