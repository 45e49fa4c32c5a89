package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshotAggregates(t *testing.T) {
	m := NewMetricsService()

	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/checkins", http.StatusCreated, 10*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/checkins", http.StatusConflict, 30*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCheckin(OutcomeAccepted)
	m.RecordCheckin(OutcomeAccepted)
	m.RecordCheckin(OutcomeOutOfRange)
	m.RecordSessionIssued()
	m.RecordSessionsGenerated(4)
	m.RecordSessionsGenerated(0)
	m.RecordNotification("session_issued", errors.New("smtp down"))

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 20, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(2), snap.CacheMisses)
	assert.InDelta(t, 1.0/3.0, snap.CacheHitRatio, 0.0001)
	assert.Equal(t, map[string]uint64{OutcomeAccepted: 2, OutcomeOutOfRange: 1}, snap.CheckinOutcomes)
	assert.Equal(t, uint64(1), snap.SessionsIssued)
	assert.Equal(t, uint64(4), snap.SessionsGenerated)
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.RecordCheckin(OutcomeExpired)
		m.ObserveDistance(12)
		m.RecordSessionIssued()
	})
	assert.Empty(t, m.Snapshot().CheckinOutcomes)
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordCheckin(OutcomeDuplicate)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	m.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `outcome="duplicate"`)
}
