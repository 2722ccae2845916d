package main

import (
	"fmt"
	"time"

	"github.com/shelltaskenv/shelltask/config"
	"github.com/shelltaskenv/shelltask/cron"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Set by ldflags.
var (
	version = "dev"
	commit  = "none"
)

type options struct {
	configPath string

	debug     bool
	json      bool
	splitLogs bool
	logFormat string
	console   bool

	poll      time.Duration
	heartbeat time.Duration
	test      bool
	inotify   bool
	noReap    bool

	prometheusListen string

	sentryDsn         string
	sentryEnvironment string
	sentryRelease     string
}

func main() {
	logger := logrus.StandardLogger()
	if err := rootCmd(logger).Execute(); err != nil {
		logger.Fatal(err)
	}
}

func rootCmd(logger *logrus.Logger) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "shelltask",
		Short:         "Run shell commands and log rotation on plan or interval schedules",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, logger, opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "path to the configuration file (created with defaults if missing)")

	flags := root.Flags()
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&opts.json, "json", false, "enable JSON logging")
	flags.BoolVar(&opts.splitLogs, "split-logs", false, "write debug and info to stdout, warnings and errors to stderr")
	flags.StringVar(&opts.logFormat, "log-format", "", "custom console log format, e.g. '%time [%level] %task %message'")
	flags.BoolVar(&opts.console, "console", true, "also log to the console")
	flags.DurationVar(&opts.poll, "poll", cron.DefaultPollInterval, "how often the schedule is checked")
	flags.DurationVar(&opts.heartbeat, "heartbeat", cron.DefaultHeartbeatInterval, "how often a liveness message is logged")
	flags.BoolVar(&opts.test, "test", false, "validate the configuration, print the schedule and exit")
	flags.BoolVar(&opts.inotify, "inotify", false, "reload the configuration when the file changes")
	flags.BoolVar(&opts.noReap, "no-reap", false, "do not reap orphaned processes when running as PID 1")
	flags.StringVar(&opts.prometheusListen, "prometheus-listen-address", "", "serve Prometheus metrics on this address (default port 9746)")
	flags.StringVar(&opts.sentryDsn, "sentry-dsn", "", "report errors to this Sentry DSN")
	flags.StringVar(&opts.sentryEnvironment, "sentry-environment", "", "Sentry environment")
	flags.StringVar(&opts.sentryRelease, "sentry-release", "", "Sentry release")

	root.AddCommand(envCmd(opts), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shelltask %s (commit: %s)\n", version, commit)
		},
	}
}

func envCmd(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Write the environment file used by the systemd unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := config.EnsureExists(opts.configPath); err != nil {
				return err
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := config.WriteEnvFile(output, cfg); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", ".env", "where to write the environment file")
	return cmd
}
