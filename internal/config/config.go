package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// ConfigFileEnv names an optional config file (yaml, toml or json) read
// before the environment. Environment variables win over file values.
const ConfigFileEnv = "FINTRACK_CONFIG"

var validBackends = []string{"memory", "sqlite"}

type Config struct {
	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// AMQP; an empty URL disables event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Recurrence worker
	RecurringInterval    time.Duration
	RecurringItemTimeout time.Duration

	// Ledger
	LedgerMaxRetries int
	DefaultCurrency  string

	// Notify worker dedupe cache
	NotifyCacheSize int
	NotifyCacheTTL  time.Duration

	LogLevel string
}

var defaults = map[string]any{
	"data_backend":           "sqlite",
	"sqlite_db_path":         "./data/fintrack.db",
	"amqp_url":               "",
	"amqp_exchange":          "fintrack",
	"amqp_queue":             "ledger_events",
	"recurring_interval":     "1h",
	"recurring_item_timeout": "30s",
	"ledger_max_retries":     "3",
	"default_currency":       "EUR",
	"notify_cache_size":      "10000",
	"notify_cache_ttl":       "24h",
	"log_level":              "info",
}

// Load reads defaults, then the file named by FINTRACK_CONFIG if set, then
// the environment. Unparseable numbers and durations fall back to defaults.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	// Keys map to upper-cased env vars: sqlite_db_path -> SQLITE_DB_PATH.
	v.AutomaticEnv()

	cfg := &Config{
		DataBackend:  strings.ToLower(v.GetString("data_backend")),
		SQLiteDBPath: v.GetString("sqlite_db_path"),

		AMQPURL:      v.GetString("amqp_url"),
		AMQPExchange: v.GetString("amqp_exchange"),
		AMQPQueue:    v.GetString("amqp_queue"),

		RecurringInterval:    getDuration(v, "recurring_interval"),
		RecurringItemTimeout: getDuration(v, "recurring_item_timeout"),

		LedgerMaxRetries: getInt(v, "ledger_max_retries"),
		DefaultCurrency:  strings.ToUpper(v.GetString("default_currency")),

		NotifyCacheSize: getInt(v, "notify_cache_size"),
		NotifyCacheTTL:  getDuration(v, "notify_cache_ttl"),

		LogLevel: v.GetString("log_level"),
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate recurrence worker configuration
	if c.RecurringInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 second", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}
	if c.RecurringItemTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid recurring item timeout %v: must be positive", c.RecurringItemTimeout))
	}

	// Validate ledger configuration
	if c.LedgerMaxRetries < 0 || c.LedgerMaxRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid ledger max retries %d: must be between 0 and 10", c.LedgerMaxRetries))
	}
	if _, err := core.ValidateCurrency(c.DefaultCurrency); err != nil {
		errors = append(errors, fmt.Sprintf("invalid default currency: %v", err))
	}

	if c.NotifyCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid notify cache size %d: must be at least 1", c.NotifyCacheSize))
	}
	if c.NotifyCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid notify cache ttl %v: must be at least 1 second", c.NotifyCacheTTL))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getInt(v *viper.Viper, key string) int {
	if i, err := strconv.Atoi(strings.TrimSpace(v.GetString(key))); err == nil {
		return i
	}
	i, _ := strconv.Atoi(defaults[key].(string))
	return i
}

func getDuration(v *viper.Viper, key string) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key))); err == nil {
		return d
	}
	d, _ := time.ParseDuration(defaults[key].(string))
	return d
}
