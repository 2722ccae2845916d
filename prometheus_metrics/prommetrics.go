package prometheus_metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace   = "shelltask"
	DefaultPort = "9746"
)

func genMetricName(name string) string {
	return fmt.Sprintf("%s_%s", namespace, name)
}

// PrometheusMetrics is safe to use through a nil pointer, in which case
// nothing is recorded.
type PrometheusMetrics struct {
	ExecCounter            *prometheus.CounterVec
	SuccessCounter         *prometheus.CounterVec
	FailCounter            *prometheus.CounterVec
	ExecutionTimeHistogram *prometheus.HistogramVec
	NextRunGauge           *prometheus.GaugeVec
	ScheduledTasksGauge    prometheus.Gauge
	HeartbeatCounter       prometheus.Counter
}

func New(reg prometheus.Registerer) *PrometheusMetrics {
	pm := PrometheusMetrics{}

	pm.ExecCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: genMetricName("executions"),
			Help: "count of task executions",
		},
		[]string{"task", "type"},
	)

	pm.SuccessCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: genMetricName("successful_executions"),
			Help: "count of successful task executions",
		},
		[]string{"task", "type"},
	)

	pm.FailCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: genMetricName("failed_executions"),
			Help: "count of failed task executions",
		},
		[]string{"task", "type"},
	)

	pm.ExecutionTimeHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    genMetricName("execution_time_seconds"),
			Help:    "execution times of the task runs in buckets",
			Buckets: []float64{0.1, 1.0, 10.0, 30.0, 60.0, 120.0, 300.0, 600.0, 1800.0, 3600.0},
		},
		[]string{"task", "type"},
	)

	pm.NextRunGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: genMetricName("next_run_timestamp_seconds"),
			Help: "unix time of the next scheduled run of each task",
		},
		[]string{"task"},
	)

	pm.ScheduledTasksGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: genMetricName("scheduled_tasks"),
			Help: "number of tasks in the schedule",
		},
	)

	pm.HeartbeatCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: genMetricName("heartbeats"),
			Help: "count of liveness heartbeats",
		},
	)

	reg.MustRegister(
		pm.ExecCounter,
		pm.SuccessCounter,
		pm.FailCounter,
		pm.ExecutionTimeHistogram,
		pm.NextRunGauge,
		pm.ScheduledTasksGauge,
		pm.HeartbeatCounter,
	)

	return &pm
}

func (p *PrometheusMetrics) Reset() {
	if p == nil {
		return
	}
	p.ExecCounter.Reset()
	p.SuccessCounter.Reset()
	p.FailCounter.Reset()
	p.ExecutionTimeHistogram.Reset()
	p.NextRunGauge.Reset()
	p.ScheduledTasksGauge.Set(0)
}

// ObserveExecution records one dispatch of task.
func (p *PrometheusMetrics) ObserveExecution(task, kind string, elapsed time.Duration, err error) {
	if p == nil {
		return
	}
	p.ExecCounter.WithLabelValues(task, kind).Inc()
	p.ExecutionTimeHistogram.WithLabelValues(task, kind).Observe(elapsed.Seconds())
	if err != nil {
		p.FailCounter.WithLabelValues(task, kind).Inc()
	} else {
		p.SuccessCounter.WithLabelValues(task, kind).Inc()
	}
}

func (p *PrometheusMetrics) SetNextRun(task string, at time.Time) {
	if p == nil {
		return
	}
	p.NextRunGauge.WithLabelValues(task).Set(float64(at.Unix()))
}

func (p *PrometheusMetrics) SetScheduled(n int) {
	if p == nil {
		return
	}
	p.ScheduledTasksGauge.Set(float64(n))
}

func (p *PrometheusMetrics) Heartbeat() {
	if p == nil {
		return
	}
	p.HeartbeatCounter.Inc()
}

// getAddr appends DefaultPort to listenAddr when it has none.
func getAddr(listenAddr string) (string, error) {
	if listenAddr == "" {
		return "", errors.New("empty listen address")
	}

	if _, _, err := net.SplitHostPort(listenAddr); err == nil {
		return listenAddr, nil
	}

	addr := net.JoinHostPort(listenAddr, DefaultPort)
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listenAddr, err)
	}
	return addr, nil
}

type Server struct {
	srv *http.Server
}

func NewServer(listenAddr string, gatherer prometheus.Gatherer) (*Server, error) {
	addr, err := getAddr(listenAddr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>
             <head><title>Shelltask</title></head>
             <body>
             <h1>Shelltask</h1>
             <p><a href='/metrics'>Metrics</a></p>
             </body>
             </html>`))
	})

	return &Server{srv: &http.Server{Addr: addr, Handler: mux}}, nil
}

func (s *Server) Addr() string {
	return s.srv.Addr
}

func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe returns nil once the server has been shut down.
func (s *Server) ListenAndServe() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
