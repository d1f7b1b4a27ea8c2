package model

import "time"

// MailCandidate is a message returned by a mailbox search
type MailCandidate struct {
	UID        uint32
	ReceivedAt time.Time
	Subject    string
	From       string
	Raw        []byte
}
