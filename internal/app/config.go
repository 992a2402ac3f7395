package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"orders_sync/internal/cbr"
	"orders_sync/internal/sheets"
	"orders_sync/internal/store"
)

const (
	SourceGoogle = "google"
	SourceXLSX   = "xlsx"
)

// Config holds every setting read from the environment.
type Config struct {
	DBDriver   string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPath     string
	// DBWait keeps retrying the initial connection until it succeeds.
	DBWait bool

	SheetSource      string
	SpreadsheetID    string
	SpreadsheetRange string
	CredentialsFile  string
	XLSXPath         string
	XLSXSheet        string

	RateURL        string
	RateCurrencyID string
	RateMaxAge     time.Duration

	SyncInterval time.Duration
	MetricsAddr  string

	NtfyEnabled  bool
	NtfyURL      string
	NtfyTopic    string
	NtfyPriority string
}

// LoadConfig reads the configuration from the environment. All invalid
// values are reported together.
func LoadConfig() (Config, error) {
	var errs []error

	cfg := Config{
		DBDriver:         GetEnvWithDefault("DB_DRIVER", store.DriverPostgres),
		DBHost:           GetEnvWithDefault("DB_HOST", "localhost"),
		DBUser:           GetEnvWithDefault("DB_USER", "postgres"),
		DBPassword:       os.Getenv("DB_PASSWORD"),
		DBName:           GetEnvWithDefault("DB_NAME", "orders"),
		DBSSLMode:        GetEnvWithDefault("DB_SSLMODE", "disable"),
		DBPath:           GetEnvWithDefault("DB_PATH", "orders.db"),
		SheetSource:      GetEnvWithDefault("SHEET_SOURCE", SourceGoogle),
		SpreadsheetID:    os.Getenv("SPREADSHEET_ID"),
		SpreadsheetRange: GetEnvWithDefault("SPREADSHEET_RANGE", sheets.DefaultRange),
		CredentialsFile:  GetEnvWithDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		XLSXPath:         os.Getenv("XLSX_PATH"),
		XLSXSheet:        GetEnvWithDefault("XLSX_SHEET", "Sheet1"),
		RateURL:          GetEnvWithDefault("RATE_URL", cbr.DefaultURL),
		RateCurrencyID:   GetEnvWithDefault("RATE_CURRENCY_ID", cbr.USD),
		MetricsAddr:      os.Getenv("METRICS_ADDR"),
		NtfyURL:          GetEnvWithDefault("NTFY_URL", "https://ntfy.sh"),
		NtfyTopic:        GetEnvWithDefault("NTFY_TOPIC", "orders-sync"),
		NtfyPriority:     os.Getenv("NTFY_PRIORITY"),
	}

	var err error
	if cfg.DBPort, err = envInt("DB_PORT", 5432); err != nil {
		errs = append(errs, err)
	}
	if cfg.DBWait, err = envBool("DB_WAIT", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.RateMaxAge, err = envDuration("RATE_MAX_AGE", 96*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.SyncInterval, err = envDuration("SYNC_INTERVAL", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.NtfyEnabled, err = envBool("NTFY_ENABLED", false); err != nil {
		errs = append(errs, err)
	}

	switch cfg.DBDriver {
	case store.DriverPostgres, store.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", store.DriverPostgres, store.DriverSQLite, cfg.DBDriver))
	}

	switch cfg.SheetSource {
	case SourceGoogle:
		if _, err := GetRequiredEnv("SPREADSHEET_ID"); err != nil {
			errs = append(errs, err)
		}
	case SourceXLSX:
		if _, err := GetRequiredEnv("XLSX_PATH"); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("SHEET_SOURCE must be %q or %q, got %q", SourceGoogle, SourceXLSX, cfg.SheetSource))
	}

	if cfg.SyncInterval <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_INTERVAL must be positive, got %s", cfg.SyncInterval))
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// DSN returns the connection string for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == store.DriverSQLite {
		return c.DBPath
	}
	return store.PostgresDSN(c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// AdminDSN points at the server's maintenance database, used to create DBName.
func (c Config) AdminDSN() string {
	return store.PostgresDSN(c.DBHost, c.DBPort, c.DBUser, c.DBPassword, "postgres", c.DBSSLMode)
}

// GetRequiredEnv fetches a required environment variable.
func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s environment variable is required", key)
	}
	return value, nil
}

// GetEnvWithDefault fetches an environment variable with a default fallback.
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func envInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}

func envBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	return b, nil
}

func envDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}
