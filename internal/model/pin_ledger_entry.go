package model

import (
	"time"
)

// PinLedgerEntry is the current PIN recorded for an account
type PinLedgerEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Email     string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	Pin       string    `json:"-" gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for PinLedgerEntry
func (PinLedgerEntry) TableName() string {
	return "pin_ledger_entries"
}
