package credit

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-jasa/internal/events"
)

type memStore struct {
	mu      sync.Mutex
	credits map[uuid.UUID]Credit
	txs     []Transaction
	sellers map[uuid.UUID]uuid.UUID // seller -> user
	seq     int
}

func newMemStore() *memStore {
	return &memStore{credits: map[uuid.UUID]Credit{}, sellers: map[uuid.UUID]uuid.UUID{}}
}

func (m *memStore) addSeller() (sellerID, userID uuid.UUID) {
	sellerID, userID = uuid.New(), uuid.New()
	m.sellers[sellerID] = userID
	return sellerID, userID
}

func (m *memStore) add(c Credit) Credit {
	c.ID = uuid.New()
	m.seq++
	c.CreatedAt = time.Date(2026, 1, 1, 0, 0, m.seq, 0, time.UTC)
	if c.InitialAmount == 0 {
		c.InitialAmount = c.Amount
	}
	m.credits[c.ID] = c
	return c
}

func (m *memStore) InTx(ctx context.Context, fn func(Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	credits := maps.Clone(m.credits)
	txs := slices.Clone(m.txs)
	if err := fn(m); err != nil {
		m.credits = credits
		m.txs = txs
		return err
	}
	return nil
}

func (m *memStore) usable(sellerID uuid.UUID, now time.Time) []Credit {
	var out []Credit
	for _, c := range m.credits {
		if c.SellerID == sellerID && c.Usable(now) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.ExpiresAt == nil && b.ExpiresAt == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		case a.ExpiresAt == nil:
			return false
		case b.ExpiresAt == nil:
			return true
		case !a.ExpiresAt.Equal(*b.ExpiresAt):
			return a.ExpiresAt.Before(*b.ExpiresAt)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
	return out
}

func (m *memStore) LockUsableCredits(_ context.Context, sellerID uuid.UUID, now time.Time) ([]Credit, error) {
	return m.usable(sellerID, now), nil
}

func (m *memStore) ListUsableCredits(_ context.Context, sellerID uuid.UUID, now time.Time) ([]Credit, error) {
	return m.usable(sellerID, now), nil
}

func (m *memStore) HasPromotion(_ context.Context, sellerID uuid.UUID, promotionType string) (bool, error) {
	for _, c := range m.credits {
		if c.SellerID == sellerID && c.PromotionType == promotionType {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) InsertCredit(_ context.Context, c Credit) (Credit, error) {
	return m.add(c), nil
}

func (m *memStore) UpdateCreditBalance(_ context.Context, id uuid.UUID, amount, used int64) error {
	c := m.credits[id]
	c.Amount, c.UsedAmount = amount, used
	m.credits[id] = c
	return nil
}

func (m *memStore) InsertTransaction(_ context.Context, t Transaction) error {
	t.ID = uuid.New()
	m.txs = append(m.txs, t)
	return nil
}

func (m *memStore) LockExpiredCredits(_ context.Context, now time.Time, limit int) ([]Credit, error) {
	var out []Credit
	for _, c := range m.credits {
		if c.Amount > 0 && c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
			out = append(out, c)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) SellerUserID(_ context.Context, sellerID uuid.UUID) (uuid.UUID, error) {
	u, ok := m.sellers[sellerID]
	if !ok {
		return uuid.Nil, ErrSellerNotFound
	}
	return u, nil
}

func (m *memStore) SellerIDForUser(_ context.Context, userID uuid.UUID) (uuid.UUID, error) {
	for s, u := range m.sellers {
		if u == userID {
			return s, nil
		}
	}
	return uuid.Nil, ErrSellerNotFound
}

func (m *memStore) ListTransactions(_ context.Context, sellerID uuid.UUID, limit int) ([]Transaction, error) {
	var out []Transaction
	for i := len(m.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.txs[i].SellerID == sellerID {
			out = append(out, m.txs[i])
		}
	}
	return out, nil
}

type recordedEvent struct {
	Topic   string
	Payload map[string]any
}

type fakeEmitter struct {
	events []recordedEvent
}

func (f *fakeEmitter) Emit(_ context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error) {
	p, _ := payload.(map[string]any)
	f.events = append(f.events, recordedEvent{Topic: topic, Payload: p})
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID}, nil
}
