package ledger

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"otp-gateway/internal/model"
)

// GormLedger stores PINs in the pin_ledger_entries table
type GormLedger struct {
	db *gorm.DB
}

// NewGormLedger creates a ledger backed by db
func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

// Upsert inserts or updates the row of email inside a transaction
func (l *GormLedger) Upsert(ctx context.Context, email, pin string) (Result, error) {
	email = normalizeEmail(email)
	var result Result

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry model.PinLedgerEntry
		err := tx.Where("email = ?", email).First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result = Inserted
			return tx.Create(&model.PinLedgerEntry{Email: email, Pin: pin}).Error
		}
		if err != nil {
			return err
		}

		result = Updated
		return tx.Model(&entry).Update("pin", pin).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert ledger entry: %w", err)
	}
	return result, nil
}

// Ping checks the database connection
func (l *GormLedger) Ping(ctx context.Context) error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
