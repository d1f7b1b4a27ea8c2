package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sirupsen/logrus"

	"otp-gateway/internal/config"
	"otp-gateway/internal/model"
)

// Rotations write one row at a time, so the ledger needs only a small pool.
const (
	ledgerIdleConns    = 2
	ledgerOpenConns    = 10
	ledgerConnLifetime = time.Hour
	slowUpsert         = time.Second
)

// ledgerModels are the tables owned by the PIN ledger
var ledgerModels = []interface{}{&model.PinLedgerEntry{}}

// OpenLedger connects to the MySQL PIN ledger and creates its tables.
// Slow statements and errors other than record-not-found go to logrus.
func OpenLedger(cfg config.DatabaseConfig) (*gorm.DB, error) {
	conn, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{Logger: ledgerLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger database %s: %w", cfg.DBName, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(ledgerIdleConns)
	sqlDB.SetMaxOpenConns(ledgerOpenConns)
	sqlDB.SetConnMaxLifetime(ledgerConnLifetime)

	if err := migrateLedger(conn); err != nil {
		return nil, err
	}

	logrus.WithField("database", cfg.DBName).Info("PIN ledger database ready")
	return conn, nil
}

func ledgerLogger() logger.Interface {
	return logger.New(logrus.StandardLogger(), logger.Config{
		SlowThreshold:             slowUpsert,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func migrateLedger(conn *gorm.DB) error {
	if err := conn.AutoMigrate(ledgerModels...); err != nil {
		return fmt.Errorf("failed to migrate PIN ledger tables: %w", err)
	}
	logrus.Debug("PIN ledger tables migrated")
	return nil
}
