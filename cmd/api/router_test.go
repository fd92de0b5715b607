package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jasa/internal/advertising"
	"github.com/noah-isme/backend-jasa/internal/auth"
	"github.com/noah-isme/backend-jasa/internal/pricing"
)

type stubAdmins map[string]bool

func (s stubAdmins) IsAdmin(_ context.Context, userID string) (bool, error) { return s[userID], nil }

func testRouter(t *testing.T) (http.Handler, *auth.Verifier) {
	return testRouterWith(t, nil)
}

func testRouterWith(t *testing.T, edit func(*routerConfig)) (http.Handler, *auth.Verifier) {
	t.Helper()
	verifier, err := auth.NewVerifier(auth.VerifierConfig{Secret: "test-secret", Issuer: "jasa"})
	require.NoError(t, err)
	rc := routerConfig{
		Logger:         zerolog.Nop(),
		AllowedOrigins: []string{"*"},
		Ads:            &advertising.Service{Pricing: pricing.MustCalculator(pricing.DefaultPolicy())},
		Auth:           auth.Middleware{Verifier: verifier, Admins: stubAdmins{}},
	}
	if edit != nil {
		edit(&rc)
	}
	return newRouter(rc), verifier
}

func TestPublicQuoteRoutes(t *testing.T) {
	h, _ := testRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/advertising/quotes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []pricing.Quote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 4)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/advertising/quote?months=6", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var one struct {
		Data pricing.Quote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	require.EqualValues(t, 1_023_000, one.Data.TotalPrice)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSellerRoutesRequireToken(t *testing.T) {
	h, _ := testRouter(t)
	for _, path := range []string{
		"/api/v1/seller/advertising/subscriptions",
		"/api/v1/seller/advertising/credits",
		"/api/v1/admin/advertising/payments",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAdminRoutesRejectSellers(t *testing.T) {
	h, verifier := testRouter(t)
	token, err := verifier.Sign(uuid.NewString(), time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/advertising/statistics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWriteRoutesEnforceBodyLimit(t *testing.T) {
	h, verifier := testRouterWith(t, func(rc *routerConfig) { rc.BodyLimit = 64 })
	token, err := verifier.Sign(uuid.NewString(), time.Hour)
	require.NoError(t, err)
	oversized := `{"serviceId":"` + uuid.NewString() + `","months":6,"paymentMethod":"bank_transfer","memo":"` + strings.Repeat("x", 128) + `"}`

	for _, path := range []string{
		"/api/v1/seller/advertising/subscriptions",
		"/api/v1/seller/advertising/payments/" + uuid.NewString() + "/deposit",
		"/api/v1/admin/advertising/payments/" + uuid.NewString() + "/confirm",
	} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(oversized))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, path)

		var body struct {
			Error struct {
				Code    string         `json:"code"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), path)
		require.Equal(t, "PAYLOAD_TOO_LARGE", body.Error.Code)
		require.EqualValues(t, 64, body.Error.Details["maxBytes"])
	}

	// The limit runs ahead of authentication, so an anonymous oversized post never reaches the token check.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/seller/advertising/subscriptions", strings.NewReader(oversized)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	// A small body passes the limit and is then rejected for the missing token.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/seller/advertising/subscriptions", strings.NewReader(`{"months":1}`)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Reads are never limited.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/advertising/quote?months=6", strings.NewReader(oversized)))
	require.Equal(t, http.StatusOK, rec.Code)
}
