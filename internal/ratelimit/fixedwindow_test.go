package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryFixedWindowAllow(t *testing.T) {
	fw := NewMemoryFixedWindow("test")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, _, err := fw.Allow(ctx, "click:1.2.3.4", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, 3-(i+1), remaining)
	}
	allowed, remaining, reset, err := fw.Allow(ctx, "click:1.2.3.4", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
	require.True(t, reset.After(time.Now()))

	allowed, _, _, err = fw.Allow(ctx, "click:5.6.7.8", time.Minute, 3)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestRedisFixedWindowMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fw, err := NewRedisFixedWindow(client, "rl")
	require.NoError(t, err)

	h := Handler{
		Limiter: fw,
		Config:  Config{Key: ByClientIP("click"), Window: time.Minute, Max: 1},
	}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/advertising/impressions/x/click", nil)
	req.RemoteAddr = "10.0.0.1:4000"

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Contains(t, rr.Body.String(), "RATE_LIMITED")
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
}
