package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthReport(t *testing.T, h *HealthChecker) (int, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return rec.Code, status
}

func TestHealthChecker_Healthy(t *testing.T) {
	h := NewHealthChecker()
	h.SetConnected(true)
	h.RecordAnalysis(60000)

	code, status := healthReport(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 60000.0, status.LastPrice)
}

func TestHealthChecker_DisconnectedIsDegraded(t *testing.T) {
	h := NewHealthChecker()
	h.SetConnected(false)

	code, status := healthReport(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", status.Status)
}

func TestHealthChecker_ErrorsWinOverDegraded(t *testing.T) {
	h := NewHealthChecker()
	h.SetConnected(false)
	h.RecordError("1h: advisor timeout")

	// One status line on the wire: unhealthy, 500.
	code, status := healthReport(t, h)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Contains(t, status.Errors, "1h: advisor timeout")
}

func TestHealthChecker_AnalysisClearsErrors(t *testing.T) {
	h := NewHealthChecker()
	h.SetConnected(true)
	h.RecordError("transient blip")
	h.RecordAnalysis(59000)

	code, status := healthReport(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
	assert.Empty(t, status.Errors)
}
