package rotation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"otp-gateway/internal/credentials"
	"otp-gateway/internal/ledger"
	"otp-gateway/internal/limiter"
	"otp-gateway/internal/metrics"
	"otp-gateway/internal/notifier"
	"otp-gateway/internal/pin"
)

// ErrRotationInProgress is returned when the scope already has a rotation in flight
var ErrRotationInProgress = errors.New("rotation already in progress")

// Mode selects how PINs are rotated
type Mode string

const (
	ModeGlobal     Mode = "global"
	ModePerAccount Mode = "per_account"
)

const defaultSideEffectTimeout = 10 * time.Second

// Options configures the rotation fan-out
type Options struct {
	Recipients    []string
	Subject       string
	NotifyTimeout time.Duration
	LedgerTimeout time.Duration
}

// Deps are the collaborators of a Rotator. A nil Global selects per-account mode.
// Nil Lock, Notifier, Ledger and Metrics get working defaults.
type Deps struct {
	Store    *credentials.Store
	Global   *GlobalPin
	Limiter  *limiter.UsageLimiter
	Lock     *Lock
	Notifier notifier.Notifier
	Ledger   ledger.Ledger
	Metrics  *metrics.Metrics
}

// Rotator replaces PINs once their usage cap is reached
type Rotator struct {
	deps     Deps
	opts     Options
	mode     Mode
	wg       sync.WaitGroup
	generate func(previous string) (string, error)
}

// NewRotator creates a rotator
func NewRotator(deps Deps, opts Options) *Rotator {
	if deps.Lock == nil {
		deps.Lock = NewLock()
	}
	if deps.Notifier == nil {
		deps.Notifier = notifier.Noop{}
	}
	if deps.Ledger == nil {
		deps.Ledger = ledger.Noop{}
	}
	deps.Metrics = metrics.OrUnregistered(deps.Metrics)
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultSideEffectTimeout
	}
	if opts.LedgerTimeout <= 0 {
		opts.LedgerTimeout = defaultSideEffectTimeout
	}

	mode := ModePerAccount
	if deps.Global != nil {
		mode = ModeGlobal
	}

	return &Rotator{
		deps:     deps,
		opts:     opts,
		mode:     mode,
		generate: pin.GenerateDistinct,
	}
}

// Mode returns the rotation mode
func (r *Rotator) Mode() Mode {
	return r.mode
}

// Scope returns the lock scope guarding the PIN used by account
func (r *Rotator) Scope(account string) string {
	if r.mode == ModeGlobal {
		return GlobalScope
	}
	return strings.ToLower(strings.TrimSpace(account))
}

// Rotate replaces the PIN of trigger's scope and clears its usage counters.
// State changes happen before Rotate returns; the notification and ledger
// writes continue in the background and hold the scope until they finish.
func (r *Rotator) Rotate(trigger string) error {
	scope := r.Scope(trigger)
	if !r.deps.Lock.TryEnter(scope) {
		r.deps.Metrics.RotationRejections.Inc()
		return ErrRotationInProgress
	}

	newPin, err := r.apply(trigger)
	if err != nil {
		r.deps.Lock.Exit(scope)
		return err
	}

	eventID := uuid.NewString()
	r.deps.Metrics.Rotations.WithLabelValues(string(r.mode)).Inc()
	logrus.WithFields(logrus.Fields{
		"event":   eventID,
		"scope":   scope,
		"account": trigger,
		"mode":    r.mode,
	}).Info("PIN rotated")

	r.wg.Add(1)
	go r.fanOut(eventID, scope, trigger, newPin)

	return nil
}

// apply generates the new PIN and swaps it into the in-memory state
func (r *Rotator) apply(trigger string) (string, error) {
	if r.mode == ModeGlobal {
		newPin, err := r.generate(r.deps.Global.Current())
		if err != nil {
			return "", err
		}
		r.deps.Global.Set(newPin)
		r.deps.Limiter.ResetAll()
		return newPin, nil
	}

	rec, ok := r.deps.Store.Lookup(trigger)
	if !ok {
		return "", fmt.Errorf("unknown account %q", trigger)
	}
	newPin, err := r.generate(rec.PinSecret)
	if err != nil {
		return "", err
	}
	r.deps.Store.SetPinSecret(trigger, newPin)
	r.deps.Limiter.Reset(trigger)
	return newPin, nil
}

// fanOut delivers the new PIN to the notifier and the ledger, then releases the scope
func (r *Rotator) fanOut(eventID, scope, trigger, newPin string) {
	defer r.wg.Done()
	defer r.deps.Lock.Exit(scope)

	log := logrus.WithFields(logrus.Fields{"event": eventID, "scope": scope, "account": trigger})
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("Rotation fan-out panicked: %v", p)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.notify(log, trigger, newPin)
	}()
	go func() {
		defer wg.Done()
		r.record(log, trigger, newPin)
	}()
	wg.Wait()
}

func (r *Rotator) notify(log *logrus.Entry, trigger, newPin string) {
	body := fmt.Sprintf("%s, %s", trigger, newPin)
	for _, to := range r.opts.Recipients {
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.NotifyTimeout)
		err := r.deps.Notifier.Send(ctx, to, r.opts.Subject, body)
		cancel()

		switch {
		case err == nil:
			log.WithField("recipient", to).Info("Rotation notification sent")
		case errors.Is(err, notifier.ErrNotConfigured):
			log.Debug("No notifier configured, skipping rotation notification")
			return
		default:
			r.deps.Metrics.SideEffectFailures.WithLabelValues("notifier").Inc()
			log.WithField("recipient", to).Warnf("Failed to send rotation notification: %v", err)
		}
	}
}

func (r *Rotator) record(log *logrus.Entry, trigger, newPin string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.LedgerTimeout)
	defer cancel()

	res, err := r.deps.Ledger.Upsert(ctx, trigger, newPin)
	switch {
	case err == nil:
		log.WithField("result", res.String()).Info("Ledger updated")
	case errors.Is(err, ledger.ErrNotConfigured):
		log.Debug("No ledger configured, skipping ledger write")
	default:
		r.deps.Metrics.SideEffectFailures.WithLabelValues("ledger").Inc()
		log.Warnf("Failed to write ledger: %v", err)
	}
}

// Wait blocks until every background fan-out has finished
func (r *Rotator) Wait() {
	r.wg.Wait()
}

// Rotating reports whether the scope of account has a rotation in flight
func (r *Rotator) Rotating(account string) bool {
	return r.deps.Lock.Rotating(r.Scope(account))
}
