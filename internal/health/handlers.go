package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Report is the readiness body. Checks holds "ok" or the probe error per dependency.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

const (
	StatusOK          = "ok"
	StatusDraining    = "draining"
	StatusUnavailable = "unavailable"
)

// Handler exposes the liveness and readiness endpoints.
type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready probes Postgres and Redis in parallel. A draining process reports
// unavailable without probing.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !IsReady() {
		writeReport(w, http.StatusServiceUnavailable, Report{Status: StatusDraining})
		return
	}
	if h.Checker == nil {
		writeReport(w, http.StatusServiceUnavailable, Report{Status: StatusUnavailable})
		return
	}

	var dbErr, redisErr error
	var g errgroup.Group
	g.Go(func() error {
		dbErr = h.Checker.PingDB(r.Context(), orDefault(h.DBTimeout, 500*time.Millisecond))
		return nil
	})
	g.Go(func() error {
		redisErr = h.Checker.PingRedis(r.Context(), orDefault(h.RedisTimeout, 300*time.Millisecond))
		return nil
	})
	_ = g.Wait()

	report := Report{Status: StatusOK, Checks: map[string]string{"db": outcome(dbErr), "redis": outcome(redisErr)}}
	code := http.StatusOK
	if dbErr != nil || redisErr != nil {
		report.Status = StatusUnavailable
		code = http.StatusServiceUnavailable
	}
	writeReport(w, code, report)
}

func outcome(err error) string {
	if err != nil {
		return err.Error()
	}
	return StatusOK
}

func writeReport(w http.ResponseWriter, code int, body Report) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
