package health_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jasa/internal/health"
)

// The API flips readiness off on SIGTERM so the load balancer drains it while
// in-flight subscription requests finish; liveness must keep passing meanwhile.
func TestDrainingFailsReadinessButNotLiveness(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	handler := health.Handler{Checker: stubChecker{redisErr: errors.New("redis: connection refused")}}

	health.SetReady(false)
	require.False(t, health.IsReady())

	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var body health.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, health.Report{Status: health.StatusDraining}, body)

	rr = httptest.NewRecorder()
	handler.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	health.SetReady(true)
	rr = httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code, "redis outage still fails readiness")
	body = health.Report{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Checks["db"])
	require.Equal(t, "redis: connection refused", body.Checks["redis"])
}
