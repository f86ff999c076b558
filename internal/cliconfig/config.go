package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bft-labs/fieldsync/internal/domain"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Connectivity modes.
const (
	ConnectivityProbe   = "probe"
	ConnectivityMarker  = "marker"
	ConnectivityOnline  = "online"
	ConnectivityOffline = "offline"
)

// Config holds CLI configuration for fieldsync.
type Config struct {
	ServiceURL string
	AuthKey    string
	StateDir   string

	Store         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string

	Connectivity  string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	MarkerPath    string

	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	ReplayRate    float64
	ReplayBurst   int
	SweepSchedule string
	HTTPTimeout   time.Duration

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	MetricsAddr string
	LogLevel    string
	LogFormat   string

	// DryRun replaces the HTTP remote with an in-memory one.
	DryRun bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Store:         StoreFile,
		Connectivity:  ConnectivityProbe,
		ProbeInterval: 10 * time.Second,
		ProbeTimeout:  3 * time.Second,
		MaxRetries:    3,
		RetryDelay:    5 * time.Second,
		HTTPTimeout:   15 * time.Second,
		MQTTTopic:     "fieldsync",
		LogLevel:      "info",
		LogFormat:     "console",
		AuthKey:       os.Getenv("FIELDSYNC_AUTH_KEY"),
	}
}

// DefaultStateDir returns ~/.fieldsync, or "" if the home directory is unknown.
func DefaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".fieldsync")
	}
	return ""
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")
	if c.ServiceURL == "" && !c.DryRun {
		return invalid("service-url is required")
	}

	if c.StateDir == "" {
		c.StateDir = DefaultStateDir()
	}
	if c.StateDir == "" {
		return invalid("state-dir is required")
	}

	switch c.Store {
	case StoreFile, StoreRedis:
	case StoreSQLite:
		if c.SQLitePath == "" {
			c.SQLitePath = filepath.Join(c.StateDir, "queue.db")
		}
	default:
		return invalid("unknown store %q (want file, sqlite or redis)", c.Store)
	}
	if c.Store == StoreRedis && c.RedisAddr == "" {
		return invalid("redis-addr is required for the redis store")
	}

	switch c.Connectivity {
	case ConnectivityProbe:
		if c.ProbeInterval <= 0 || c.ProbeTimeout <= 0 {
			return invalid("probe interval and timeout must be positive")
		}
	case ConnectivityMarker:
		if c.MarkerPath == "" {
			c.MarkerPath = filepath.Join(c.StateDir, "offline")
		}
	case ConnectivityOnline, ConnectivityOffline:
	default:
		return invalid("unknown connectivity mode %q", c.Connectivity)
	}

	if c.MaxRetries < 1 {
		return invalid("max-retries must be at least 1")
	}
	if c.RetryDelay <= 0 {
		return invalid("retry-delay must be positive")
	}
	if c.MaxRetryDelay != 0 && c.MaxRetryDelay < c.RetryDelay {
		return invalid("max-retry-delay must not be below retry-delay")
	}
	if c.ReplayRate < 0 {
		return invalid("replay-rate must not be negative")
	}
	if c.ReplayRate > 0 && c.ReplayBurst < 1 {
		c.ReplayBurst = 1
	}
	if c.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
			return invalid("sweep schedule %q: %v", c.SweepSchedule, err)
		}
	}
	if c.HTTPTimeout <= 0 {
		return invalid("timeout must be positive")
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return invalid("unknown log format %q", c.LogFormat)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
