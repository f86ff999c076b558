package cliconfig

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE files into the process environment. Missing
// files are skipped and variables already set are not overwritten, so the
// real environment always wins over a .env file.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnvConfig applies configuration from environment variables (FIELDSYNC_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", os.Getenv("FIELDSYNC_SERVICE_URL"), &cfg.ServiceURL)
	s.setString("auth-key", os.Getenv("FIELDSYNC_AUTH_KEY"), &cfg.AuthKey)
	s.setString("state-dir", os.Getenv("FIELDSYNC_STATE_DIR"), &cfg.StateDir)
	s.setString("store", os.Getenv("FIELDSYNC_STORE"), &cfg.Store)
	s.setString("redis-addr", os.Getenv("FIELDSYNC_REDIS_ADDR"), &cfg.RedisAddr)
	s.setString("redis-password", os.Getenv("FIELDSYNC_REDIS_PASSWORD"), &cfg.RedisPassword)
	s.setString("sqlite-path", os.Getenv("FIELDSYNC_SQLITE_PATH"), &cfg.SQLitePath)
	s.setString("connectivity", os.Getenv("FIELDSYNC_CONNECTIVITY"), &cfg.Connectivity)
	s.setString("marker-path", os.Getenv("FIELDSYNC_MARKER_PATH"), &cfg.MarkerPath)
	s.setString("sweep", os.Getenv("FIELDSYNC_SWEEP_SCHEDULE"), &cfg.SweepSchedule)
	s.setString("mqtt-broker", os.Getenv("FIELDSYNC_MQTT_BROKER"), &cfg.MQTTBroker)
	s.setString("mqtt-topic", os.Getenv("FIELDSYNC_MQTT_TOPIC"), &cfg.MQTTTopic)
	s.setString("mqtt-client-id", os.Getenv("FIELDSYNC_MQTT_CLIENT_ID"), &cfg.MQTTClientID)
	s.setString("metrics-addr", os.Getenv("FIELDSYNC_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv("FIELDSYNC_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("FIELDSYNC_LOG_FORMAT"), &cfg.LogFormat)

	durations := []struct {
		flag string
		env  string
		dst  *time.Duration
	}{
		{"probe-interval", "FIELDSYNC_PROBE_INTERVAL", &cfg.ProbeInterval},
		{"probe-timeout", "FIELDSYNC_PROBE_TIMEOUT", &cfg.ProbeTimeout},
		{"retry-delay", "FIELDSYNC_RETRY_DELAY", &cfg.RetryDelay},
		{"max-retry-delay", "FIELDSYNC_MAX_RETRY_DELAY", &cfg.MaxRetryDelay},
		{"timeout", "FIELDSYNC_HTTP_TIMEOUT", &cfg.HTTPTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, os.Getenv(d.env), d.dst); err != nil {
			return err
		}
	}

	if err := s.setIntFromString("redis-db", os.Getenv("FIELDSYNC_REDIS_DB"), &cfg.RedisDB); err != nil {
		return err
	}
	if err := s.setIntFromString("max-retries", os.Getenv("FIELDSYNC_MAX_RETRIES"), &cfg.MaxRetries); err != nil {
		return err
	}
	if err := s.setIntFromString("replay-burst", os.Getenv("FIELDSYNC_REPLAY_BURST"), &cfg.ReplayBurst); err != nil {
		return err
	}
	if err := s.setFloatFromString("replay-rate", os.Getenv("FIELDSYNC_REPLAY_RATE"), &cfg.ReplayRate); err != nil {
		return err
	}

	s.setBoolFromString("dry-run", os.Getenv("FIELDSYNC_DRY_RUN"), &cfg.DryRun)

	return nil
}
