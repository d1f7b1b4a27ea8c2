package mailbox

import (
	"context"
	"time"

	"otp-gateway/internal/model"
)

// Criteria narrows a mailbox search
type Criteria struct {
	Since   time.Time
	Unseen  bool
	From    string
	Subject string
}

// Transport opens authenticated mail sessions
type Transport interface {
	Dial(ctx context.Context, ep Endpoint, user, password string) (Session, error)
}

// Session is one authenticated mailbox connection
type Session interface {
	SelectInbox(ctx context.Context) error
	Search(ctx context.Context, criteria Criteria) ([]model.MailCandidate, error)
	Close() error
}
