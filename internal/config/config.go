package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Workflow WorkflowConfig
	Inbox    InboxConfig
	Refresh  RefreshConfig
	MongoDB  MongoDBConfig
	Sheets   SheetsConfig
	WhatsApp WhatsAppConfig
	LogLevel string
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// BackendConfig points the console at the operations backend.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// WorkflowConfig holds the pacing used by mutations.
type WorkflowConfig struct {
	BatchGap            time.Duration
	InboxRemovalDelay   time.Duration
	InvoiceRefreshDelay time.Duration
}

// InboxConfig controls which emails the inbox lists.
type InboxConfig struct {
	SubjectFilter string
}

// RefreshConfig holds the background refresh schedule.
type RefreshConfig struct {
	CronSchedule string
}

// MongoDBConfig holds settings for the activity trail. Empty URI disables it.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// SheetsConfig contains configuration required to export invoices to Google Sheets.
// Empty values disable the export.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// WhatsAppConfig contains credentials for the Meta WhatsApp Cloud API used to
// notify the finance contact. Missing credentials disable notifications.
type WhatsAppConfig struct {
	AccessToken      string
	PhoneNumberID    string
	BaseURL          string
	APIVersion       string
	FinanceRecipient string
}

// Enabled reports whether activity recording is configured.
func (c MongoDBConfig) Enabled() bool { return c.URI != "" }

// Enabled reports whether invoice export is configured.
func (c SheetsConfig) Enabled() bool { return c.CredentialsPath != "" && c.SpreadsheetID != "" }

// Enabled reports whether finance notifications are configured.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != "" && c.FinanceRecipient != ""
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	var errs []error
	duration := func(key string, fallback time.Duration) time.Duration {
		d, err := getDurationWithDefault(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Backend: BackendConfig{
			BaseURL: getenvWithDefault("BACKEND_API_URL", "http://localhost:5000"),
			Timeout: duration("BACKEND_TIMEOUT", 30*time.Second),
		},
		Workflow: WorkflowConfig{
			BatchGap:            duration("BATCH_GAP", time.Second),
			InboxRemovalDelay:   duration("INBOX_REMOVAL_DELAY", 3*time.Second),
			InvoiceRefreshDelay: duration("INVOICE_REFRESH_DELAY", 2*time.Second),
		},
		Inbox: InboxConfig{
			SubjectFilter: getenvWithDefault("INBOX_SUBJECT_FILTER", "timesheet"),
		},
		Refresh: RefreshConfig{
			CronSchedule: getenvWithDefault("REFRESH_CRON_SCHEDULE", "@every 1m"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "staffops"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_INVOICES_ID"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:      os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID:    os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:          getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:       getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			FinanceRecipient: os.Getenv("WHATSAPP_FINANCE_RECIPIENT"),
		},
		LogLevel: getenvWithDefault("LOG_LEVEL", "info"),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Backend.BaseURL == "" {
		return errors.New("BACKEND_API_URL must not be empty")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_API_URL must be an absolute URL, got %q", c.Backend.BaseURL)
	}
	c.Backend.BaseURL = strings.TrimSuffix(c.Backend.BaseURL, "/")

	switch {
	case c.Backend.Timeout <= 0:
		return errors.New("BACKEND_TIMEOUT must be positive")
	case c.Workflow.BatchGap < 0:
		return errors.New("BATCH_GAP must not be negative")
	case c.Workflow.InboxRemovalDelay < 0:
		return errors.New("INBOX_REMOVAL_DELAY must not be negative")
	case c.Workflow.InvoiceRefreshDelay < 0:
		return errors.New("INVOICE_REFRESH_DELAY must not be negative")
	}

	if c.Refresh.CronSchedule == "" {
		return errors.New("REFRESH_CRON_SCHEDULE must be provided")
	}

	if c.MongoDB.Enabled() && c.MongoDB.DBName == "" {
		return errors.New("MONGODB_DB_NAME must be provided when MONGODB_URI is set")
	}

	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and GOOGLE_SHEET_INVOICES_ID must be set together")
	}

	if c.WhatsApp.Enabled() {
		if c.WhatsApp.BaseURL == "" {
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		}
		if c.WhatsApp.APIVersion == "" {
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDurationWithDefault(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
