package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations so files stay
// readable. The same struct decodes TOML and YAML.
type FileConfig struct {
	ServiceURL    string  `toml:"service_url" yaml:"service_url"`
	AuthKey       string  `toml:"auth_key" yaml:"auth_key"`
	StateDir      string  `toml:"state_dir" yaml:"state_dir"`
	Store         string  `toml:"store" yaml:"store"`
	RedisAddr     string  `toml:"redis_addr" yaml:"redis_addr"`
	RedisPassword string  `toml:"redis_password" yaml:"redis_password"`
	RedisDB       int     `toml:"redis_db" yaml:"redis_db"`
	SQLitePath    string  `toml:"sqlite_path" yaml:"sqlite_path"`
	Connectivity  string  `toml:"connectivity" yaml:"connectivity"`
	ProbeInterval string  `toml:"probe_interval" yaml:"probe_interval"`
	ProbeTimeout  string  `toml:"probe_timeout" yaml:"probe_timeout"`
	MarkerPath    string  `toml:"marker_path" yaml:"marker_path"`
	MaxRetries    int     `toml:"max_retries" yaml:"max_retries"`
	RetryDelay    string  `toml:"retry_delay" yaml:"retry_delay"`
	MaxRetryDelay string  `toml:"max_retry_delay" yaml:"max_retry_delay"`
	ReplayRate    float64 `toml:"replay_rate" yaml:"replay_rate"`
	ReplayBurst   int     `toml:"replay_burst" yaml:"replay_burst"`
	SweepSchedule string  `toml:"sweep_schedule" yaml:"sweep_schedule"`
	HTTPTimeout   string  `toml:"http_timeout" yaml:"http_timeout"`
	MQTTBroker    string  `toml:"mqtt_broker" yaml:"mqtt_broker"`
	MQTTTopic     string  `toml:"mqtt_topic" yaml:"mqtt_topic"`
	MQTTClientID  string  `toml:"mqtt_client_id" yaml:"mqtt_client_id"`
	MetricsAddr   string  `toml:"metrics_addr" yaml:"metrics_addr"`
	LogLevel      string  `toml:"log_level" yaml:"log_level"`
	LogFormat     string  `toml:"log_format" yaml:"log_format"`
	DryRun        *bool   `toml:"dry_run" yaml:"dry_run"`
}

// LoadFileConfig reads a config file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = toml.Unmarshal(b, &fc)
	}
	if err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.fieldsync/config.toml if the user home
// directory is accessible.
func DefaultConfigPath() string {
	if dir := DefaultStateDir(); dir != "" {
		return filepath.Join(dir, "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("store", fc.Store, &cfg.Store)
	s.setString("redis-addr", fc.RedisAddr, &cfg.RedisAddr)
	s.setString("redis-password", fc.RedisPassword, &cfg.RedisPassword)
	s.setString("sqlite-path", fc.SQLitePath, &cfg.SQLitePath)
	s.setString("connectivity", fc.Connectivity, &cfg.Connectivity)
	s.setString("marker-path", fc.MarkerPath, &cfg.MarkerPath)
	s.setString("sweep", fc.SweepSchedule, &cfg.SweepSchedule)
	s.setString("mqtt-broker", fc.MQTTBroker, &cfg.MQTTBroker)
	s.setString("mqtt-topic", fc.MQTTTopic, &cfg.MQTTTopic)
	s.setString("mqtt-client-id", fc.MQTTClientID, &cfg.MQTTClientID)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"probe-interval", fc.ProbeInterval, &cfg.ProbeInterval},
		{"probe-timeout", fc.ProbeTimeout, &cfg.ProbeTimeout},
		{"retry-delay", fc.RetryDelay, &cfg.RetryDelay},
		{"max-retry-delay", fc.MaxRetryDelay, &cfg.MaxRetryDelay},
		{"timeout", fc.HTTPTimeout, &cfg.HTTPTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setInt("redis-db", fc.RedisDB, &cfg.RedisDB)
	s.setInt("max-retries", fc.MaxRetries, &cfg.MaxRetries)
	s.setInt("replay-burst", fc.ReplayBurst, &cfg.ReplayBurst)
	s.setFloat("replay-rate", fc.ReplayRate, &cfg.ReplayRate)

	s.setBool("dry-run", fc.DryRun, &cfg.DryRun)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
