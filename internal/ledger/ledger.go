package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Result tells whether an upsert created or replaced the row of an account
type Result int

const (
	Inserted Result = iota + 1
	Updated
)

// String returns the string representation of the result
func (r Result) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// ErrNotConfigured is returned by the no-op ledger
var ErrNotConfigured = errors.New("ledger is not configured")

// Ledger records the current PIN of each account in durable storage
type Ledger interface {
	Upsert(ctx context.Context, email, pin string) (Result, error)
}

// Noop is used when no ledger is configured
type Noop struct{}

// Upsert always fails with ErrNotConfigured
func (Noop) Upsert(context.Context, string, string) (Result, error) {
	return 0, ErrNotConfigured
}

// Memory is an in-process ledger
type Memory struct {
	mu   sync.Mutex
	pins map[string]string
}

// NewMemory creates an empty in-process ledger
func NewMemory() *Memory {
	return &Memory{pins: make(map[string]string)}
}

// Upsert stores pin for email
func (m *Memory) Upsert(ctx context.Context, email, pin string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	key := normalizeEmail(email)

	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.pins[key]
	m.pins[key] = pin
	if exists {
		return Updated, nil
	}
	return Inserted, nil
}

// Get returns the stored PIN of email
func (m *Memory) Get(email string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pin, ok := m.pins[normalizeEmail(email)]
	return pin, ok
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
