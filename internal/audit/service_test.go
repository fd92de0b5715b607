package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jasa/internal/common"
	"github.com/noah-isme/backend-jasa/internal/obs"
)

type stubStore struct {
	last   Entry
	called bool
	filter ListFilter
	rows   []Entry
}

func (s *stubStore) Insert(_ context.Context, e Entry) error {
	s.called = true
	s.last = e
	return nil
}

func (s *stubStore) List(_ context.Context, f ListFilter) ([]Entry, error) {
	s.filter = f
	if len(s.rows) > f.Limit {
		return s.rows[:f.Limit], nil
	}
	return s.rows, nil
}

func TestServiceRecord(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true}
	userID := uuid.NewString()
	paymentID := uuid.NewString()

	req := httptest.NewRequest(http.MethodPost, "https://api.test/api/v1/admin/advertising/payments/"+paymentID+"/confirm?notify=1", nil)
	req.Header.Set("User-Agent", "tester")
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	ctx := common.WithUserID(req.Context(), userID)
	ctx = obs.WithRoute(ctx, "/api/v1/admin/advertising/payments/{id}/confirm")
	req = req.WithContext(ctx)

	err := svc.Record(req.Context(), Actor{Kind: ActorKindUser, UserID: &userID}, "", "", paymentID, req, http.StatusOK, nil)
	require.NoError(t, err)
	require.True(t, store.called)

	e := store.last
	require.Equal(t, string(ActorKindUser), e.ActorKind)
	require.NotNil(t, e.ActorUserID)
	require.Equal(t, userID, *e.ActorUserID)
	require.Equal(t, "POST /api/v1/admin/advertising/payments/{id}/confirm", e.Action)
	require.Equal(t, "admin.advertising.payments.confirm", e.ResourceType)
	require.Equal(t, paymentID, *e.ResourceID)
	require.Equal(t, "10.0.0.2", *e.IP)
	require.Equal(t, "req-123", *e.RequestID)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(e.Metadata, &meta))
	require.Equal(t, "notify=1", meta["query"])
}

func TestServiceRecordDropsInvalidActorID(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true}
	bogus := "not-a-uuid"
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	require.NoError(t, svc.Record(req.Context(), Actor{Kind: ActorKindUser, UserID: &bogus}, "credit.grant", "credit", "", req, 0, nil))
	require.Nil(t, store.last.ActorUserID)
	require.Equal(t, http.StatusOK, store.last.Status)
	require.Equal(t, "credit.grant", store.last.Action)
}

func TestServiceRecordDisabled(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: false}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, svc.Record(req.Context(), Actor{}, "", "", "", req, http.StatusOK, nil))
	require.False(t, store.called)
}
