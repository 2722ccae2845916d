package prometheus_metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAddr(t *testing.T) {
	addr, err := getAddr("127.0.0.1:123")
	if assert.Nil(t, err) {
		assert.Equal(t, "127.0.0.1:123", addr)
	}

	addr, err = getAddr("127.0.0.1")
	if assert.Nil(t, err) {
		assert.Equal(t, "127.0.0.1:9746", addr)
	}

	addr, err = getAddr("[127.0.0.1]")
	if assert.Nil(t, err) {
		assert.Equal(t, "[127.0.0.1]:9746", addr)
	}

	addr, err = getAddr("[::]:123")
	if assert.Nil(t, err) {
		assert.Equal(t, "[::]:123", addr)
	}

	addr, err = getAddr("::")
	if assert.Nil(t, err) {
		assert.Equal(t, "[::]:9746", addr)
	}

	addr, err = getAddr("0.0.0.0")
	if assert.Nil(t, err) {
		assert.Equal(t, "0.0.0.0:9746", addr)
	}

	_, err = getAddr("")
	assert.NotNil(t, err)

	_, err = getAddr("[::]")
	assert.NotNil(t, err)
}

func TestObserveExecution(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := New(reg)

	pm.ObserveExecution("backup", "shell", 2*time.Second, nil)
	pm.ObserveExecution("backup", "shell", time.Second, nil)
	pm.ObserveExecution("LOGROTATION", "logrotation", time.Second, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.ExecCounter.WithLabelValues("backup", "shell")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.SuccessCounter.WithLabelValues("backup", "shell")))
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.FailCounter.WithLabelValues("backup", "shell")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.FailCounter.WithLabelValues("LOGROTATION", "logrotation")))
	assert.Equal(t, 2, testutil.CollectAndCount(pm.ExecutionTimeHistogram))
}

func TestGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := New(reg)

	at := time.Date(2026, time.September, 10, 14, 30, 0, 0, time.UTC)
	pm.SetNextRun("backup", at)
	pm.SetScheduled(3)
	pm.Heartbeat()
	pm.Heartbeat()

	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(pm.NextRunGauge.WithLabelValues("backup")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pm.ScheduledTasksGauge))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.HeartbeatCounter))

	expected := `
# HELP shelltask_scheduled_tasks number of tasks in the schedule
# TYPE shelltask_scheduled_tasks gauge
shelltask_scheduled_tasks 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "shelltask_scheduled_tasks"))

	pm.Reset()
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.ScheduledTasksGauge))
	assert.Equal(t, 0, testutil.CollectAndCount(pm.NextRunGauge))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var pm *PrometheusMetrics

	assert.NotPanics(t, func() {
		pm.ObserveExecution("a", "shell", time.Second, nil)
		pm.SetNextRun("a", time.Now())
		pm.SetScheduled(1)
		pm.Heartbeat()
		pm.Reset()
	})
}

func TestServerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := New(reg)
	pm.Heartbeat()

	srv, err := NewServer("127.0.0.1", reg)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9746", srv.Addr())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shelltask_heartbeats 1")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "/metrics")

	_, err = NewServer("", reg)
	assert.Error(t, err)
}
