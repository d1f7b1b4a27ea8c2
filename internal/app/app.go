package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"otp-gateway/internal/config"
	"otp-gateway/internal/credentials"
	"otp-gateway/internal/db"
	"otp-gateway/internal/gateway"
	"otp-gateway/internal/handlers"
	"otp-gateway/internal/ledger"
	"otp-gateway/internal/limiter"
	"otp-gateway/internal/mailbox"
	"otp-gateway/internal/metrics"
	"otp-gateway/internal/notifier"
	"otp-gateway/internal/otp"
	"otp-gateway/internal/rotation"
	"otp-gateway/internal/scheduler"
	"otp-gateway/internal/server"
	"otp-gateway/internal/syncjob"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting OTP Gateway")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	setLogLevel(cfg.Log.Level)

	ctx := context.Background()
	m := metrics.NewMetrics(nil)

	store := credentials.FromConfig(cfg.Accounts)
	m.ConfiguredAccounts.Set(float64(store.Accounts()))

	var global *rotation.GlobalPin
	if cfg.Pin.UseGlobalPin {
		global = rotation.NewGlobalPin(cfg.Pin.GlobalPin)
	}
	lim := limiter.New(cfg.Pin.Cap())

	n, err := newNotifier(ctx, cfg.Notify)
	if err != nil {
		return err
	}

	var dbConn *gorm.DB
	if cfg.Ledger.Driver == config.DriverMySQL {
		dbConn, err = db.OpenLedger(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to open PIN ledger database: %w", err)
		}
	}
	l, pinger, err := newLedger(ctx, cfg.Ledger, dbConn)
	if err != nil {
		return err
	}

	rotator := rotation.NewRotator(rotation.Deps{
		Store:    store,
		Global:   global,
		Limiter:  lim,
		Notifier: n,
		Ledger:   l,
		Metrics:  m,
	}, rotation.Options{
		Recipients:    cfg.Notify.Recipients,
		Subject:       cfg.Notify.Subject,
		NotifyTimeout: cfg.Notify.Timeout,
		LedgerTimeout: cfg.Ledger.Timeout,
	})
	logrus.Infof("PIN rotation mode: %s", rotator.Mode())

	resolver := mailbox.NewResolver(cfg.Mailbox.Providers)
	transport := &mailbox.IMAPTransport{
		Timeout:            cfg.Mailbox.Timeout,
		InsecureSkipVerify: cfg.Mailbox.InsecureSkipVerify,
	}
	fetcher := mailbox.NewFetcher(resolver, transport, cfg.Mailbox.Lookback, cfg.Mailbox.Timeout, m)
	provider := otp.NewProvider(fetcher, cfg.Mailbox.SenderFilter)

	svc := gateway.NewService(store, global, lim, rotator, provider, m)

	job := syncjob.New(resolver, transport, l, m, syncOptions(cfg, store))
	sched := scheduler.NewScheduler(cfg.Sync.IntervalMinutes, job)

	h := handlers.NewHandlers(svc, sched, pinger, nil, string(rotator.Mode()))
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Sync.IntervalMinutes > 0 {
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()
	rotator.Wait()

	if dbConn != nil {
		if sqlDB, err := dbConn.DB(); err == nil {
			sqlDB.Close()
		}
	}

	logrus.Info("Server stopped gracefully")
	return nil
}

func setLogLevel(level string) {
	if level == "" {
		return
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, keeping %s", level, logrus.GetLevel())
		return
	}
	logrus.SetLevel(lvl)
}

func newNotifier(ctx context.Context, cfg config.NotifyConfig) (notifier.Notifier, error) {
	switch cfg.Driver {
	case config.DriverGmail:
		n, err := notifier.NewGmailNotifier(ctx, cfg.Gmail, cfg.From)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gmail notifier: %w", err)
		}
		logrus.Info("Using Gmail API for rotation notifications")
		return n, nil
	case config.DriverSMTP:
		n, err := notifier.NewSMTPNotifier(cfg.SMTP, cfg.From)
		if err != nil {
			return nil, fmt.Errorf("failed to create SMTP notifier: %w", err)
		}
		logrus.Info("Using SMTP for rotation notifications")
		return n, nil
	default:
		logrus.Warn("No notifier configured, rotated PINs will only reach the ledger")
		return notifier.Noop{}, nil
	}
}

// newLedger returns the configured ledger and, when it has one, its health check
func newLedger(ctx context.Context, cfg config.LedgerConfig, dbConn *gorm.DB) (ledger.Ledger, handlers.Pinger, error) {
	switch cfg.Driver {
	case config.DriverMySQL:
		if dbConn == nil {
			return nil, nil, fmt.Errorf("mysql ledger requires a database connection")
		}
		l := ledger.NewGormLedger(dbConn)
		logrus.Info("Using MySQL ledger")
		return l, l, nil
	case config.DriverSheets:
		l, err := ledger.NewSheetsLedger(ctx, cfg.SpreadsheetID, cfg.SheetName, cfg.CredentialsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create sheets ledger: %w", err)
		}
		logrus.Info("Using Google Sheets ledger")
		return l, nil, nil
	default:
		logrus.Warn("No ledger configured, rotated PINs will not be recorded")
		return ledger.Noop{}, nil, nil
	}
}

func syncOptions(cfg *config.Config, store *credentials.Store) syncjob.Options {
	opts := syncjob.Options{
		Inbox:         cfg.SyncInbox(),
		AppPassword:   cfg.Sync.AppPassword,
		Subject:       cfg.Notify.Subject,
		Lookback:      cfg.Sync.Lookback,
		LedgerTimeout: cfg.Ledger.Timeout,
	}
	if opts.AppPassword == "" && opts.Inbox != "" {
		if rec, ok := store.Lookup(opts.Inbox); ok {
			opts.AppPassword = rec.MailAppPassword
		}
	}
	return opts
}
