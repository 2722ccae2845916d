package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/evalphobia/logrus_sentry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shelltaskenv/shelltask/config"
	"github.com/shelltaskenv/shelltask/cron"
	"github.com/shelltaskenv/shelltask/log/formatter"
	"github.com/shelltaskenv/shelltask/log/hook"
	"github.com/shelltaskenv/shelltask/prometheus_metrics"
	"github.com/shelltaskenv/shelltask/registry"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const loggerName = "shellTaskEnv"

func configureConsole(logger *logrus.Logger, opts *options, stdout, stderr io.Writer) {
	if opts.debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	switch {
	case opts.json:
		logger.SetFormatter(&logrus.JSONFormatter{})
	case opts.logFormat != "":
		logger.SetFormatter(&formatter.CustomFieldFormatter{LogFormat: opts.logFormat})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch {
	case !opts.console:
		logger.SetOutput(io.Discard)
	case opts.splitLogs:
		hook.RegisterSplitLogger(logger, stdout, stderr)
	default:
		logger.SetOutput(stderr)
	}
}

func configureSentry(logger *logrus.Logger, opts *options) error {
	if opts.sentryDsn == "" {
		return nil
	}

	sh, err := logrus_sentry.NewSentryHook(opts.sentryDsn, []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
	})
	if err != nil {
		return fmt.Errorf("could not init sentry logger: %w", err)
	}
	sh.Timeout = 5 * time.Second

	if opts.sentryEnvironment != "" {
		sh.SetEnvironment(opts.sentryEnvironment)
	}
	if opts.sentryRelease != "" {
		sh.SetRelease(opts.sentryRelease)
	}

	logger.AddHook(sh)
	return nil
}

func runDaemon(cmd *cobra.Command, logger *logrus.Logger, opts *options) error {
	if !opts.noReap && os.Getpid() == 1 {
		forkExec()
		return nil
	}

	configureConsole(logger, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err := configureSentry(logger, opts); err != nil {
		return err
	}

	rootLogger := logger.WithFields(logrus.Fields{})

	written, err := config.EnsureExists(opts.configPath)
	if err != nil {
		return err
	}
	if written {
		rootLogger.Warnf("configuration not found, defaults written to %s", opts.configPath)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	// The file stays open until exit so that the fatal line main logs on
	// error still reaches it.
	if _, err := hook.RegisterFileLogger(logger, cfg.LogRotation.LogFile, &formatter.BracketFormatter{Name: loggerName}); err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	rootLogger.Info("Server is running...")
	rootLogger.Infof("Getting settings: %s", cfg.Path())

	if opts.test {
		reg, err := cron.Build(cfg, time.Now(), rootLogger)
		if err != nil {
			return err
		}
		printSchedule(cmd.OutOrStdout(), reg)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMetrics := prometheus_metrics.New(promRegistry)

	if opts.prometheusListen != "" {
		srv, err := prometheus_metrics.NewServer(opts.prometheusListen, promRegistry)
		if err != nil {
			return err
		}

		go func() {
			rootLogger.Infof("serving prometheus metrics at http://%s/metrics", srv.Addr())
			if err := srv.ListenAndServe(); err != nil {
				rootLogger.Errorf("prometheus http server failed: %v", err)
			}
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	var reload chan struct{}
	if opts.inotify {
		reload = make(chan struct{}, 1)
		watcherLogger := rootLogger.WithField("component", "watcher")
		go func() {
			if err := config.Watch(ctx, cfg.Path(), reload, watcherLogger); err != nil {
				watcherLogger.Errorf("config watcher stopped: %v", err)
			}
		}()
	}

	defer rootLogger.Info("Server is stopping...")

	for {
		if dst, err := config.Dump(cfg); err != nil {
			return fmt.Errorf("dump configuration: %w", err)
		} else if dst != "" {
			rootLogger.Infof("configuration copied to %s", dst)
		}

		reg, err := cron.Build(cfg, time.Now(), rootLogger)
		if err != nil {
			return err
		}

		promMetrics.Reset()
		scheduler := cron.New(reg, cron.Config{
			PollInterval:      opts.poll,
			HeartbeatInterval: opts.heartbeat,
			Logger:            rootLogger,
			Metrics:           promMetrics,
		})

		state, err := scheduler.Run(ctx, reload)
		switch state {
		case cron.Crashed:
			return err
		case cron.Reloading:
			rootLogger.Info("reloading configuration")
			if cfg, err = config.Load(opts.configPath); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func printSchedule(w io.Writer, reg *registry.Registry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tTYPE\tNEXT RUN\tSCHEDULE")
	for _, entry := range reg.Entries() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			entry.Key,
			entry.Occurrence.Mode,
			entry.Occurrence.At.Format(time.RFC3339),
			entry.Spec,
		)
	}
	tw.Flush()
}
