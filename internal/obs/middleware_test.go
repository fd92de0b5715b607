package obs_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jasa/internal/obs"
)

func instrumentedRouter(t *testing.T, logs *bytes.Buffer) (http.Handler, *obs.HTTPMetrics) {
	t.Helper()
	metrics := obs.NewHTTPMetrics("jasa", []float64{1, 10}, prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: zerolog.New(logs)}.Middleware)
	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/advertising/quote", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		v.Get("/admin/advertising/statistics", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusForbidden) })
		v.Get("/seller/advertising/payments/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	})
	return r, metrics
}

func TestHTTPMetricsLabelRouteArea(t *testing.T) {
	var logs bytes.Buffer
	h, metrics := instrumentedRouter(t, &logs)

	for _, path := range []string{
		"/api/v1/advertising/quote?months=6",
		"/api/v1/admin/advertising/statistics",
		"/api/v1/seller/advertising/payments/5f1c",
		"/api/v1/seller/advertising/payments/9a02",
		"/wp-login.php",
	} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, obs.AreaPublic, "/api/v1/advertising/quote", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, obs.AreaAdmin, "/api/v1/admin/advertising/statistics", "403")))
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, obs.AreaSeller, "/api/v1/seller/advertising/payments/{id}", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, obs.AreaUnmatched, obs.AreaUnmatched, "404")))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))
	require.Equal(t, 4, testutil.CollectAndCount(metrics.Duration))

	require.Contains(t, logs.String(), `"area":"admin"`)
	require.Contains(t, logs.String(), `"level":"warn"`)
}

func TestRouteArea(t *testing.T) {
	cases := map[string]string{
		"":                           obs.AreaUnmatched,
		"/health/ready":              obs.AreaOps,
		"/metrics":                   obs.AreaOps,
		"/api/v1/advertising/quotes": obs.AreaPublic,
		"/api/v1/categories/{categoryId}/services": obs.AreaPublic,
		"/api/v1/me":                         obs.AreaAccount,
		"/api/v1/notifications/{id}/read":    obs.AreaAccount,
		"/api/v1/seller/advertising/credits": obs.AreaSeller,
		"/api/v1/admin/audit-logs":           obs.AreaAdmin,
	}
	for route, want := range cases {
		require.Equal(t, want, obs.RouteArea(route), route)
	}
}

func TestParseBucketsCSV(t *testing.T) {
	require.Nil(t, obs.ParseBucketsCSV(""))
	require.Equal(t, []float64{5, 50, 500}, obs.ParseBucketsCSV("5, 50,x,-1,,500"))
}
