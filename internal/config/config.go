package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Log      LogConfig       `mapstructure:"log"`
	Pin      PinConfig       `mapstructure:"pin"`
	Accounts []AccountConfig `mapstructure:"accounts"`
	Mailbox  MailboxConfig   `mapstructure:"mailbox"`
	Notify   NotifyConfig    `mapstructure:"notify"`
	Ledger   LedgerConfig    `mapstructure:"ledger"`
	Database DatabaseConfig  `mapstructure:"database"`
	Sync     SyncConfig      `mapstructure:"sync"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// PinConfig holds PIN verification and usage limiting configuration
type PinConfig struct {
	UseGlobalPin  bool   `mapstructure:"use_global_pin"`
	GlobalPin     string `mapstructure:"global_pin"`
	MaxUses       int    `mapstructure:"max_uses"`
	GlobalMaxUses int    `mapstructure:"global_max_uses"`
}

// Cap returns the usage cap that applies to the active PIN mode
func (p PinConfig) Cap() int {
	if p.UseGlobalPin {
		return p.GlobalMaxUses
	}
	return p.MaxUses
}

// AccountConfig is the credential record of a single account.
// The json tags follow the CREDENTIALS environment blob, which is keyed by email.
type AccountConfig struct {
	Email       string `mapstructure:"email" json:"-"`
	PinHash     string `mapstructure:"pin_hash" json:"pinHash"`
	AppPassword string `mapstructure:"app_password" json:"appPass"`
	TotpSecret  string `mapstructure:"totp_secret" json:"totpSecret"`
}

// MailboxConfig holds IMAP lookup configuration
type MailboxConfig struct {
	SenderFilter       string         `mapstructure:"sender_filter"`
	Lookback           time.Duration  `mapstructure:"lookback"`
	Timeout            time.Duration  `mapstructure:"timeout"`
	InsecureSkipVerify bool           `mapstructure:"insecure_skip_verify"`
	Providers          []ProviderHost `mapstructure:"providers"`
}

// ProviderHost describes an extra IMAP host for an email domain
type ProviderHost struct {
	Domain string `mapstructure:"domain"`
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	TLS    bool   `mapstructure:"tls"`
}

// NotifyConfig holds rotation notification configuration
type NotifyConfig struct {
	Driver     string        `mapstructure:"driver"`
	Recipients []string      `mapstructure:"recipients"`
	Subject    string        `mapstructure:"subject"`
	From       string        `mapstructure:"from"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Gmail      GmailConfig   `mapstructure:"gmail"`
	SMTP       SMTPConfig    `mapstructure:"smtp"`
}

// GmailConfig holds Gmail API OAuth2 configuration
type GmailConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
}

// SMTPConfig holds SMTP relay configuration
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// LedgerConfig holds ledger sink configuration
type LedgerConfig struct {
	Driver          string        `mapstructure:"driver"`
	Timeout         time.Duration `mapstructure:"timeout"`
	SpreadsheetID   string        `mapstructure:"spreadsheet_id"`
	SheetName       string        `mapstructure:"sheet_name"`
	CredentialsFile string        `mapstructure:"credentials_file"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// SyncConfig holds rotation sync job configuration
type SyncConfig struct {
	InboxEmail      string        `mapstructure:"inbox_email"`
	AppPassword     string        `mapstructure:"app_password"`
	Lookback        time.Duration `mapstructure:"lookback"`
	IntervalMinutes int           `mapstructure:"interval_minutes"`
}

// Driver names
const (
	DriverNone   = "none"
	DriverGmail  = "gmail"
	DriverSMTP   = "smtp"
	DriverMySQL  = "mysql"
	DriverSheets = "sheets"
)

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// comma separated lists arrive as a single element from the environment
	cfg.Notify.Recipients = splitList(cfg.Notify.Recipients)

	if raw := v.GetString("credentials"); raw != "" {
		if err := cfg.mergeCredentials(raw); err != nil {
			return nil, err
		}
	}
	cfg.normalizeAccounts()

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("log.level", "info")

	v.SetDefault("pin.use_global_pin", false)
	v.SetDefault("pin.max_uses", 3)
	v.SetDefault("pin.global_max_uses", 3)

	v.SetDefault("mailbox.lookback", "5m")
	v.SetDefault("mailbox.timeout", "10s")

	v.SetDefault("notify.driver", DriverNone)
	v.SetDefault("notify.subject", "OTP gateway PIN rotated")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.smtp.port", 587)

	v.SetDefault("ledger.driver", DriverNone)
	v.SetDefault("ledger.timeout", "10s")
	v.SetDefault("ledger.sheet_name", "Sheet1")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)

	v.SetDefault("sync.lookback", "168h")
	v.SetDefault("sync.interval_minutes", 0)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT", "SERVER_PORT")
	v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	v.BindEnv("log.level", "LOG_LEVEL")

	// PIN
	v.BindEnv("pin.use_global_pin", "USE_GLOBAL_PIN")
	v.BindEnv("pin.global_pin", "GLOBAL_PIN")
	v.BindEnv("pin.max_uses", "MAX_USES")
	v.BindEnv("pin.global_max_uses", "GLOBAL_MAX_USES")
	v.BindEnv("credentials", "CREDENTIALS")

	// Mailbox
	v.BindEnv("mailbox.sender_filter", "MAILBOX_SENDER_FILTER")
	v.BindEnv("mailbox.timeout", "MAILBOX_TIMEOUT")

	// Notify
	v.BindEnv("notify.driver", "NOTIFY_DRIVER")
	v.BindEnv("notify.recipients", "NOTIFY_RECIPIENTS")
	v.BindEnv("notify.subject", "NOTIFY_SUBJECT")
	v.BindEnv("notify.from", "NOTIFY_FROM")
	v.BindEnv("notify.gmail.client_id", "GMAIL_CLIENT_ID")
	v.BindEnv("notify.gmail.client_secret", "GMAIL_CLIENT_SECRET")
	v.BindEnv("notify.gmail.refresh_token", "GMAIL_REFRESH_TOKEN")
	v.BindEnv("notify.gmail.user_email", "GMAIL_USER_EMAIL")
	v.BindEnv("notify.smtp.host", "SMTP_HOST")
	v.BindEnv("notify.smtp.port", "SMTP_PORT")
	v.BindEnv("notify.smtp.username", "SMTP_USERNAME")
	v.BindEnv("notify.smtp.password", "SMTP_PASSWORD")

	// Ledger
	v.BindEnv("ledger.driver", "LEDGER_DRIVER")
	v.BindEnv("ledger.spreadsheet_id", "LEDGER_SPREADSHEET_ID")
	v.BindEnv("ledger.sheet_name", "LEDGER_SHEET_NAME")
	v.BindEnv("ledger.credentials_file", "LEDGER_CREDENTIALS_FILE")

	// Database
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")

	// Sync
	v.BindEnv("sync.inbox_email", "SYNC_INBOX_EMAIL")
	v.BindEnv("sync.app_password", "SYNC_APP_PASSWORD")
	v.BindEnv("sync.interval_minutes", "SYNC_INTERVAL_MINUTES")
}

// mergeCredentials merges the CREDENTIALS JSON blob into the account list.
// Entries from the blob win over YAML entries with the same email.
func (c *Config) mergeCredentials(raw string) error {
	var blob map[string]AccountConfig
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return fmt.Errorf("error parsing CREDENTIALS: %w", err)
	}
	for email, acc := range blob {
		acc.Email = email
		c.Accounts = append(c.Accounts, acc)
	}
	return nil
}

// normalizeAccounts lower-cases emails and drops duplicates, keeping the last entry
func (c *Config) normalizeAccounts() {
	index := make(map[string]int, len(c.Accounts))
	var out []AccountConfig
	for _, acc := range c.Accounts {
		acc.Email = strings.ToLower(strings.TrimSpace(acc.Email))
		if acc.Email == "" {
			continue
		}
		if i, ok := index[acc.Email]; ok {
			out[i] = acc
			continue
		}
		index[acc.Email] = len(out)
		out = append(out, acc)
	}
	c.Accounts = out
}

func splitList(in []string) []string {
	parts := lo.FlatMap(in, func(item string, _ int) []string {
		return strings.Split(item, ",")
	})
	parts = lo.Map(parts, func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	out := lo.Uniq(lo.Compact(parts))
	if len(out) == 0 {
		return nil
	}
	return out
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// SyncInbox returns the mailbox scanned by the rotation sync job
func (c *Config) SyncInbox() string {
	if c.Sync.InboxEmail != "" {
		return c.Sync.InboxEmail
	}
	if len(c.Notify.Recipients) > 0 {
		return c.Notify.Recipients[0]
	}
	return ""
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Pin.Cap() <= 0 {
		return fmt.Errorf("pin usage cap must be greater than 0")
	}

	if c.Pin.UseGlobalPin && c.Pin.GlobalPin == "" {
		return fmt.Errorf("global pin is required when use_global_pin is enabled")
	}

	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}

	switch c.Notify.Driver {
	case "", DriverNone:
	case DriverGmail:
		if c.Notify.Gmail.ClientID == "" || c.Notify.Gmail.ClientSecret == "" || c.Notify.Gmail.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required for the gmail notifier")
		}
	case DriverSMTP:
		if c.Notify.SMTP.Host == "" || c.Notify.SMTP.Port == 0 {
			return fmt.Errorf("SMTP host and port are required for the smtp notifier")
		}
	default:
		return fmt.Errorf("unknown notify driver %q", c.Notify.Driver)
	}

	if c.Notify.Driver != "" && c.Notify.Driver != DriverNone && len(c.Notify.Recipients) == 0 {
		return fmt.Errorf("at least one notification recipient is required")
	}

	switch c.Ledger.Driver {
	case "", DriverNone:
	case DriverMySQL:
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required for the mysql ledger")
		}
	case DriverSheets:
		if c.Ledger.SpreadsheetID == "" {
			return fmt.Errorf("spreadsheet id is required for the sheets ledger")
		}
	default:
		return fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver)
	}

	if c.Sync.IntervalMinutes < 0 {
		return fmt.Errorf("sync interval must not be negative")
	}

	return nil
}
