package credentials

import (
	"strings"
	"sync"

	"otp-gateway/internal/config"
)

// Record is the credential record of one account
type Record struct {
	AccountID       string
	PinSecret       string
	MailAppPassword string
	TotpSeed        string
}

// Store maps account identities to their credential records.
// Lookups return copies so callers never observe a concurrent rotation mid-request.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewStore creates a store from the given records
func NewStore(records ...Record) *Store {
	s := &Store{records: make(map[string]Record, len(records))}
	for _, r := range records {
		r.AccountID = normalize(r.AccountID)
		s.records[r.AccountID] = r
	}
	return s
}

// FromConfig builds a store from the configured accounts
func FromConfig(accounts []config.AccountConfig) *Store {
	records := make([]Record, 0, len(accounts))
	for _, acc := range accounts {
		records = append(records, Record{
			AccountID:       acc.Email,
			PinSecret:       acc.PinHash,
			MailAppPassword: acc.AppPassword,
			TotpSeed:        acc.TotpSecret,
		})
	}
	return NewStore(records...)
}

// Lookup returns the record for accountID
func (s *Store) Lookup(accountID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[normalize(accountID)]
	return r, ok
}

// SetPinSecret replaces the PIN secret of an account and reports whether it exists
func (s *Store) SetPinSecret(accountID, secret string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := normalize(accountID)
	r, ok := s.records[id]
	if !ok {
		return false
	}
	r.PinSecret = secret
	s.records[id] = r
	return true
}

// Accounts returns the number of configured accounts
func (s *Store) Accounts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func normalize(accountID string) string {
	return strings.ToLower(strings.TrimSpace(accountID))
}
