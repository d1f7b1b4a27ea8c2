package limiter

import (
	"strings"
	"sync"
)

// DefaultMaxUses is the cap applied when none is configured
const DefaultMaxUses = 3

type key struct {
	account string
	pin     string
}

// UsageLimiter counts uses of each (account, pin) pair against a cap.
// Counters live in memory for the lifetime of the process.
type UsageLimiter struct {
	mu     sync.Mutex
	max    int
	counts map[key]int
}

// New creates a limiter; non-positive caps fall back to DefaultMaxUses
func New(maxUses int) *UsageLimiter {
	if maxUses <= 0 {
		maxUses = DefaultMaxUses
	}
	return &UsageLimiter{max: maxUses, counts: make(map[key]int)}
}

// Decision is the outcome of ConsumeCurrent
type Decision int

const (
	// Allowed means the use was counted
	Allowed Decision = iota
	// Denied means the cap was already reached
	Denied
	// Stale means the PIN was rotated away before the use was counted
	Stale
)

// Consume records one use and reports whether it was allowed.
// A denied call does not increment the counter.
func (l *UsageLimiter) Consume(account, pin string) bool {
	return l.ConsumeCurrent(account, pin, nil) == Allowed
}

// ConsumeCurrent is Consume with a freshness check. isCurrent runs under the
// limiter lock, and rotations change the PIN before resetting counters, so a
// PIN that is replaced after verification is reported Stale and never counted.
func (l *UsageLimiter) ConsumeCurrent(account, pin string, isCurrent func() bool) Decision {
	k := key{account: normalize(account), pin: pin}

	l.mu.Lock()
	defer l.mu.Unlock()

	if isCurrent != nil && !isCurrent() {
		return Stale
	}
	if l.counts[k] >= l.max {
		return Denied
	}
	l.counts[k]++
	return Allowed
}

// Usage returns the current count of (account, pin)
func (l *UsageLimiter) Usage(account, pin string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[key{account: normalize(account), pin: pin}]
}

// AccountUsage returns the summed count of every key of account
func (l *UsageLimiter) AccountUsage(account string) int {
	a := normalize(account)

	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for k, n := range l.counts {
		if k.account == a {
			total += n
		}
	}
	return total
}

// Reset clears every counter of account
func (l *UsageLimiter) Reset(account string) {
	a := normalize(account)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k := range l.counts {
		if k.account == a {
			delete(l.counts, k)
		}
	}
}

// ResetAll clears every counter
func (l *UsageLimiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts = make(map[key]int)
}

// Max returns the configured cap
func (l *UsageLimiter) Max() int {
	return l.max
}

func normalize(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}
