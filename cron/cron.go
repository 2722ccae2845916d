// Package cron runs the scheduling loop: one goroutine polls the
// registry, dispatches at most one due task per tick and reschedules it.
package cron

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shelltaskenv/shelltask/action"
	"github.com/shelltaskenv/shelltask/config"
	"github.com/shelltaskenv/shelltask/prometheus_metrics"
	"github.com/shelltaskenv/shelltask/registry"
	"github.com/shelltaskenv/shelltask/schedule"
	"github.com/sirupsen/logrus"
)

type State int32

const (
	Initializing State = iota
	Running
	ShuttingDown
	Reloading
	Crashed
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting down"
	case Reloading:
		return "reloading"
	case Crashed:
		return "crashed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

const (
	DefaultPollInterval      = time.Second
	DefaultHeartbeatInterval = 10 * time.Second
)

type Config struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration

	// Now defaults to time.Now.
	Now     func() time.Time
	Logger  *logrus.Entry
	Metrics *prometheus_metrics.PrometheusMetrics
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return c
}

type Scheduler struct {
	registry *registry.Registry
	cfg      Config

	state         atomic.Int32
	iteration     uint64
	nextHeartbeat time.Time
}

func New(reg *registry.Registry, cfg Config) *Scheduler {
	return &Scheduler{
		registry: reg,
		cfg:      cfg.withDefaults(),
	}
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(state State) {
	s.state.Store(int32(state))
	s.cfg.Logger.Debugf("scheduler %s", state)
}

// Tick dispatches the first entry due at now, if any, and reschedules it
// from its own spec. It reports the key it dispatched.
func (s *Scheduler) Tick(now time.Time) (string, bool, error) {
	entry, ok := s.registry.FirstDue(now)
	if !ok {
		return "", false, nil
	}

	taskLogger := s.cfg.Logger.WithFields(logrus.Fields{
		"task":      entry.Key,
		"iteration": s.iteration,
	})
	s.iteration++

	taskLogger.Infof("starting %s task due at %s", entry.Action.Kind(), entry.Occurrence.At.Format(time.RFC3339))

	start := s.cfg.Now()
	err := entry.Action.Run(taskLogger)
	s.cfg.Metrics.ObserveExecution(entry.Key, entry.Action.Kind(), s.cfg.Now().Sub(start), err)
	if err != nil {
		return entry.Key, true, fmt.Errorf("task %s: %w", entry.Key, err)
	}

	next, err := schedule.Compute(entry.Spec, s.cfg.Now())
	if err != nil {
		return entry.Key, true, fmt.Errorf("task %s: %w", entry.Key, err)
	}

	entry.Occurrence = next
	if err := s.registry.Update(entry.Key, entry); err != nil {
		return entry.Key, true, err
	}
	s.cfg.Metrics.SetNextRun(entry.Key, next.At)

	taskLogger.WithFields(logrus.Fields{
		"type": next.Mode.String(),
	}).Infof("task rescheduled: next run at %s", next.At.Format(time.RFC3339))

	return entry.Key, true, nil
}

func (s *Scheduler) heartbeat(now time.Time) {
	if now.Before(s.nextHeartbeat) {
		return
	}
	s.cfg.Logger.Info("Server is active...")
	s.cfg.Metrics.Heartbeat()
	s.nextHeartbeat = now.Add(s.cfg.HeartbeatInterval)
}

// Run polls until ctx is done (ShuttingDown), reload receives
// (Reloading) or a dispatch fails (Crashed, with the error). A nil
// reload channel never fires.
func (s *Scheduler) Run(ctx context.Context, reload <-chan struct{}) (State, error) {
	s.cfg.Metrics.SetScheduled(s.registry.Size())
	for _, entry := range s.registry.Entries() {
		s.cfg.Metrics.SetNextRun(entry.Key, entry.Occurrence.At)
	}

	s.nextHeartbeat = s.cfg.Now().Add(s.cfg.HeartbeatInterval)
	s.setState(Running)

	for {
		select {
		case <-ctx.Done():
			return s.shutdown()
		case <-reload:
			s.setState(Reloading)
			return Reloading, nil
		default:
		}

		if _, _, err := s.Tick(s.cfg.Now()); err != nil {
			s.setState(Crashed)
			return Crashed, err
		}

		s.heartbeat(s.cfg.Now())

		select {
		case <-ctx.Done():
			return s.shutdown()
		case <-reload:
			s.setState(Reloading)
			return Reloading, nil
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

func (s *Scheduler) shutdown() (State, error) {
	s.setState(ShuttingDown)
	s.cfg.Logger.Info("shutting down")
	return ShuttingDown, nil
}

// Build creates a registry holding every configured task, in file order,
// followed by the log rotation task when archiving is enabled.
func Build(cfg *config.Config, now time.Time, logger *logrus.Entry) (*registry.Registry, error) {
	reg := registry.New()
	shellCtx := cfg.Context()

	for _, key := range cfg.Task.Keys() {
		task, _ := cfg.Task.Get(key)
		raw := task.DateTime.Raw()

		occurrence, err := schedule.Compute(raw, now)
		if err != nil {
			return nil, &config.ConfigurationError{Field: "TASK." + key + ".DATE_TIME", Reason: err.Error(), Err: err}
		}

		reg.Add(key, registry.Entry{
			Occurrence: occurrence,
			Spec:       raw,
			Action: &action.Shell{
				Context:  shellCtx,
				Commands: task.Execute.Shell,
			},
		})
	}

	if rotation := cfg.LogRotation; rotation.Arch.Enable {
		raw := rotation.Arch.DateTime.Raw()

		occurrence, err := schedule.Compute(raw, now)
		if err != nil {
			return nil, &config.ConfigurationError{Field: "LOGROTATION.ARCH.DATE_TIME", Reason: err.Error(), Err: err}
		}

		reg.Add(config.ReservedTaskKey, registry.Entry{
			Occurrence: occurrence,
			Spec:       raw,
			Action: &action.LogRotation{
				LogFile:       rotation.LogFile,
				ArchiveName:   rotation.Arch.Name,
				ArchiveType:   rotation.Arch.Type,
				ArchiveDir:    rotation.Arch.Dir,
				Truncate:      rotation.Arch.Truncate,
				Prune:         rotation.Delete.Enable,
				RetentionDays: rotation.Delete.Days,
			},
		})
	}

	for _, entry := range reg.Entries() {
		logger.WithFields(logrus.Fields{
			"task": entry.Key,
			"type": entry.Occurrence.Mode.String(),
		}).Infof("task scheduled: %s -> %s", entry.Spec, entry.Occurrence.At.Format(time.RFC3339))
	}
	logger.Infof("task queue size: %d", reg.Size())

	return reg, nil
}
