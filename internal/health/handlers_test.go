package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jasa/internal/health"
)

type stubChecker struct {
	dbErr    error
	redisErr error
	delay    time.Duration
}

func (s stubChecker) PingDB(ctx context.Context, _ time.Duration) error {
	return s.wait(ctx, s.dbErr)
}

func (s stubChecker) PingRedis(ctx context.Context, _ time.Duration) error {
	return s.wait(ctx, s.redisErr)
}

func (s stubChecker) wait(ctx context.Context, err error) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func ready(t *testing.T, h health.Handler) (int, health.Report) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var report health.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	return rr.Code, report
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyReportsEachDependency(t *testing.T) {
	code, report := ready(t, health.Handler{Checker: stubChecker{}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, health.Report{Status: health.StatusOK, Checks: map[string]string{"db": "ok", "redis": "ok"}}, report)

	code, report = ready(t, health.Handler{Checker: stubChecker{dbErr: errors.New("db down")}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, health.StatusUnavailable, report.Status)
	require.Equal(t, "db down", report.Checks["db"])
	require.Equal(t, "ok", report.Checks["redis"])
}

func TestReadyProbesInParallel(t *testing.T) {
	start := time.Now()
	code, _ := ready(t, health.Handler{Checker: stubChecker{delay: 150 * time.Millisecond}})
	require.Equal(t, http.StatusOK, code)
	require.Less(t, time.Since(start), 290*time.Millisecond)
}

func TestReadyWithoutChecker(t *testing.T) {
	code, report := ready(t, health.Handler{})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, health.StatusUnavailable, report.Status)
}
