package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/fieldsync/internal/cliconfig"
	"github.com/bft-labs/fieldsync/pkg/log"
)

const helpDescription = `
Perform record changes from the field, online or not.

Highlights:
  - Changes made while offline are saved locally and replayed in order on reconnect.
  - Every change carries an idempotency key, so replays never apply twice.
  - Retries are bounded; changes that cannot be delivered are reported, not lost silently.
  - Queue storage on disk, SQLite or Redis; configure via file, env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  fieldsync run --service-url https://records.example.com --auth-key <key>
  fieldsync submit --action create --entity stationControl --payload '{"station":4}' --description "Open station 4"
  fieldsync queue list
  fieldsync drain
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries configuration and the logger shared by all subcommands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	envFile string

	zl     zerolog.Logger
	logger *log.ZerologAdapter
	closer func()
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig(), closer: func() {}}
	c.zl, _, _ = log.NewZerolog(log.Options{})

	root := &cobra.Command{
		Use:           "fieldsync",
		Short:         "Offline-aware record mutations with durable replay",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.closer()
		},
	}

	c.bindFlags(root.PersistentFlags())

	root.AddCommand(
		newRunCmd(c),
		newSubmitCmd(c),
		newDrainCmd(c),
		newQueueCmd(c),
	)

	if err := root.Execute(); err != nil {
		c.zl.Error().Err(err).Msg("fieldsync")
		os.Exit(1)
	}
}

func (c *cli) bindFlags(f *pflag.FlagSet) {
	cfg := &c.cfg

	f.StringVar(&c.cfgPath, "config", "", "path to config file, .toml or .yaml (default: $HOME/.fieldsync/config.toml)")
	f.StringVar(&c.envFile, "env-file", ".env", "optional KEY=VALUE file loaded into the environment")

	f.StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, "record service base URL")
	f.StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "API key for authentication")
	f.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for the queue and marker files (default: $HOME/.fieldsync)")
	f.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")
	f.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "use an in-memory remote instead of the record service")

	f.StringVar(&cfg.Store, "store", cfg.Store, "queue storage: file, sqlite or redis")
	f.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database path (default: <state-dir>/queue.db)")
	f.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address")
	f.StringVar(&cfg.RedisPassword, "redis-password", cfg.RedisPassword, "Redis password")
	f.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "Redis database number")

	f.StringVar(&cfg.Connectivity, "connectivity", cfg.Connectivity, "connectivity source: probe, marker, online or offline")
	f.DurationVar(&cfg.ProbeInterval, "probe-interval", cfg.ProbeInterval, "interval between reachability probes")
	f.DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "timeout of one reachability probe")
	f.StringVar(&cfg.MarkerPath, "marker-path", cfg.MarkerPath, "offline while this file exists (default: <state-dir>/offline)")

	f.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "replay attempts per operation before it is abandoned")
	f.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "delay before an automatic retry pass")
	f.DurationVar(&cfg.MaxRetryDelay, "max-retry-delay", cfg.MaxRetryDelay, "cap for a growing retry delay (0 keeps it fixed)")
	f.Float64Var(&cfg.ReplayRate, "replay-rate", cfg.ReplayRate, "max replays per second (0 means unlimited)")
	f.IntVar(&cfg.ReplayBurst, "replay-burst", cfg.ReplayBurst, "replay rate burst")
	f.StringVar(&cfg.SweepSchedule, "sweep", cfg.SweepSchedule, `cron schedule for periodic drains, e.g. "@every 1m"`)

	f.StringVar(&cfg.MQTTBroker, "mqtt-broker", cfg.MQTTBroker, "MQTT broker URL for notifications, e.g. tcp://localhost:1883")
	f.StringVar(&cfg.MQTTTopic, "mqtt-topic", cfg.MQTTTopic, "MQTT topic prefix")
	f.StringVar(&cfg.MQTTClientID, "mqtt-client-id", cfg.MQTTClientID, "MQTT client id (default: generated)")

	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (run only)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console or json")
}

// load applies file, .env and environment configuration under the flags,
// validates it and builds the logger.
func (c *cli) load(cmd *cobra.Command) error {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.LoadDotEnv(c.envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}

	if err := c.cfg.Validate(); err != nil {
		return err
	}

	zl, closer, err := log.NewZerolog(log.Options{Level: c.cfg.LogLevel, Format: c.cfg.LogFormat})
	if err != nil {
		return err
	}
	c.zl = zl
	c.logger = log.NewZerologAdapterWithLogger(zl)
	if closer != nil {
		c.closer = func() { _ = closer.Close() }
	}

	logCfg := c.cfg
	if logCfg.AuthKey != "" {
		logCfg.AuthKey = "*****"
	}
	if logCfg.RedisPassword != "" {
		logCfg.RedisPassword = "*****"
	}
	c.zl.Debug().Interface("config", logCfg).Msg("configuration")
	return nil
}
