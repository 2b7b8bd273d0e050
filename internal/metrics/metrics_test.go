package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New("test")

	m.RecordAdmission("authenticate", "OK")
	m.RecordAdmission("authenticate", "OK")
	m.RecordCacheLookup("hit")
	m.RecordStoreLookup("not_found")
	m.RecordRateLimit("fail_open")
	m.RecordUsageTouch("ok")
	m.ObserveStage("authenticate", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.admissions.WithLabelValues("authenticate", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeLookups.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimit.WithLabelValues("fail_open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.usageTouches.WithLabelValues("ok")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAdmission("authenticate", "OK")
		m.RecordCacheLookup("miss")
		m.RecordStoreLookup("found")
		m.RecordRateLimit("allowed")
		m.RecordUsageTouch("dropped")
		m.ObserveStage("ratelimit", time.Second)
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New("")
	m.RecordRateLimit("rejected")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `paygate_ratelimit_decisions_total{decision="rejected"} 1`)
}
