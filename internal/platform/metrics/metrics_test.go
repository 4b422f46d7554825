package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledRecorderIsNoop(t *testing.T) {
	m := New(false, prometheus.NewRegistry())
	_, ok := m.(noopRecorder)
	assert.True(t, ok)

	m.ObserveRequest("/x", http.MethodGet, 200, time.Millisecond)
	m.ObserveStoreOp("save", time.Millisecond, nil)
	m.ObserveStoreConflict("kpi.pending")
	m.IncResolution("approve", "approved")
	m.IncJob("snapshot", "completed")
}

func TestCollectorExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(true, reg)

	m.ObserveRequest("/api/v1/transmissions", http.MethodPost, 201, 5*time.Millisecond)
	m.ObserveStoreOp("save", time.Millisecond, errors.New("boom"))
	m.ObserveStoreConflict("kpi.history.abc")
	m.IncResolution("reject", "rejected")
	m.IncJob("snapshot", "failed")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.True(t, strings.Contains(body, `kpi_http_requests_total{method="POST",route="/api/v1/transmissions",status="2xx"} 1`))
	assert.True(t, strings.Contains(body, `kpi_store_version_conflicts_total{key="kpi.history"} 1`))
	assert.True(t, strings.Contains(body, `kpi_transmission_resolutions_total{action="reject",outcome="rejected"} 1`))
	assert.True(t, strings.Contains(body, `kpi_store_operation_duration_seconds_count{op="save",result="error"} 1`))
}

func TestStatusBucket(t *testing.T) {
	assert.Equal(t, "2xx", statusBucket(204))
	assert.Equal(t, "4xx", statusBucket(429))
	assert.Equal(t, "5xx", statusBucket(503))
}
