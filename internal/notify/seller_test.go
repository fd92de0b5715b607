package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jasa/internal/common"
	"github.com/noah-isme/backend-jasa/internal/events"
)

type memStore struct {
	items []Listed
}

func (m *memStore) InsertNotification(_ context.Context, n Notification) error {
	n.ID = uuid.New()
	m.items = append(m.items, Listed{Notification: n})
	return nil
}

func (m *memStore) ListForUser(_ context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]Listed, error) {
	var out []Listed
	for _, it := range m.items {
		if it.UserID != userID || (unreadOnly && it.IsRead) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (m *memStore) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			m.items[i].IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

func event(t *testing.T, topic string, payload map[string]any) events.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: uuid.New(), Payload: raw, OccurredAt: time.Now()}
}

func TestSellerNotifierBankTransferDetails(t *testing.T) {
	store := &memStore{}
	n := SellerNotifier{Store: store, Enabled: true}
	user := uuid.New()

	err := n.Notify(context.Background(), event(t, events.TopicPaymentRequested, map[string]any{
		"userId":             user.String(),
		"amount":             600600,
		"bankName":           "KB Kookmin",
		"bankAccount":        "123-456",
		"bankHolder":         "Jasa Inc",
		"deadline":           "2026-10-21",
		"depositorReference": "KIM-1a2b3c4d",
	}))
	require.NoError(t, err)
	require.Len(t, store.items, 1)
	got := store.items[0]
	require.Equal(t, user, got.UserID)
	require.Equal(t, events.TopicPaymentRequested, got.Type)
	require.Contains(t, got.Message, "600600 KRW")
	require.Contains(t, got.Message, "123-456")
	require.Contains(t, got.Message, "KIM-1a2b3c4d")
}

func TestSellerNotifierSkips(t *testing.T) {
	store := &memStore{}
	ctx := context.Background()

	disabled := SellerNotifier{Store: store}
	require.NoError(t, disabled.Notify(ctx, event(t, events.TopicCreditGranted, map[string]any{"userId": uuid.NewString()})))

	toggled := SellerNotifier{Store: store, Enabled: true, TopicToggles: map[string]bool{events.TopicCreditGranted: false}}
	require.NoError(t, toggled.Notify(ctx, event(t, events.TopicCreditGranted, map[string]any{"userId": uuid.NewString()})))

	noRecipient := SellerNotifier{Store: store, Enabled: true}
	require.NoError(t, noRecipient.Notify(ctx, event(t, events.TopicCreditGranted, map[string]any{"amount": 1})))

	require.Empty(t, store.items)
}

func TestHandlerListAndMarkRead(t *testing.T) {
	store := &memStore{}
	user := uuid.New()
	n := SellerNotifier{Store: store, Enabled: true}
	require.NoError(t, n.Notify(context.Background(), event(t, events.TopicBillingFailed, map[string]any{"userId": user.String(), "shortfall": 5000})))

	h := Handler{Store: store}
	r := chi.NewRouter()
	r.Get("/notifications", h.List)
	r.Post("/notifications/{id}/read", h.MarkRead)

	withUser := func(req *http.Request) *http.Request {
		return req.WithContext(common.WithUserID(req.Context(), user.String()))
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodGet, "/notifications?unread=true", nil)))
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data []Listed `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Contains(t, body.Data[0].Message, "5000 KRW")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/notifications/"+body.Data[0].ID.String()+"/read", nil)))
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/notifications/"+uuid.NewString()+"/read", nil)))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
