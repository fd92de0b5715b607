package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCallerContext(t *testing.T) {
	ctx := context.Background()
	_, ok := UserID(ctx)
	require.False(t, ok)
	require.False(t, IsAdmin(WithAdmin(ctx)), "admin without a user is ignored")

	seller := WithUserID(ctx, "0b9f6a4e-2c1d-4a8e-9f00-1a2b3c4d5e6f")
	id, ok := UserID(seller)
	require.True(t, ok)
	require.Equal(t, "0b9f6a4e-2c1d-4a8e-9f00-1a2b3c4d5e6f", id)
	require.False(t, IsAdmin(seller))

	admin := WithAdmin(seller)
	require.True(t, IsAdmin(admin))
	require.False(t, IsAdmin(WithUserID(admin, "other")), "switching user drops admin")
}

func TestParsePagination(t *testing.T) {
	cases := []struct {
		query        string
		page, size   int
		wantOffset   int
		wantTotalPgs int
	}{
		{query: "", page: 1, size: 20, wantOffset: 0, wantTotalPgs: 3},
		{query: "page=3&limit=10", page: 3, size: 10, wantOffset: 20, wantTotalPgs: 5},
		{query: "page=2&pageSize=12", page: 2, size: 12, wantOffset: 12, wantTotalPgs: 4},
		{query: "page=-1&limit=500", page: 1, size: MaxPerPage, wantOffset: 0, wantTotalPgs: 1},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/admin/advertising/payments?"+tc.query, nil)
		page, size := ParsePagination(r, 20)
		require.Equal(t, tc.page, page, tc.query)
		require.Equal(t, tc.size, size, tc.query)
		require.Equal(t, tc.wantOffset, Offset(page, size), tc.query)
		require.Equal(t, tc.wantTotalPgs, NewPagination(page, size, 41).TotalPages, tc.query)
	}
}

func TestClientIPUsesRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/advertising/impressions/x/click", nil)
	r.RemoteAddr = "203.0.113.7:41000"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	require.Equal(t, "203.0.113.7", ClientIP(r))

	r.RemoteAddr = "[2001:db8::1]:443"
	require.Equal(t, "2001:db8::1", ClientIP(r))
}

func TestFingerprintSeparatesParts(t *testing.T) {
	require.NotEqual(t, Fingerprint("10.0.0.1", "agent"), Fingerprint("10.0.0.1a", "gent"))
	require.Len(t, Fingerprint("x"), 64)
}

func TestDataEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Data(rec, http.StatusCreated, map[string]int{"months": 6})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"data":{"months":6}}`, rec.Body.String())
}
