package advertising

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-jasa/internal/credit"
	"github.com/noah-isme/backend-jasa/internal/events"
)

type memStore struct {
	mu          sync.Mutex
	sellers     map[uuid.UUID]Seller
	services    map[uuid.UUID]ServiceInfo
	categories  map[uuid.UUID]uuid.UUID // service -> category
	subs        map[uuid.UUID]Subscription
	payments    map[uuid.UUID]Payment
	invoices    []TaxInvoice
	impressions map[uuid.UUID]*memImpression
	company     *CompanyInfo
	credits     *memCredits
	failImps    bool
}

type memImpression struct {
	Impression
	clicked bool
}

func newMemStore() *memStore {
	return &memStore{
		sellers:     map[uuid.UUID]Seller{},
		services:    map[uuid.UUID]ServiceInfo{},
		categories:  map[uuid.UUID]uuid.UUID{},
		subs:        map[uuid.UUID]Subscription{},
		payments:    map[uuid.UUID]Payment{},
		impressions: map[uuid.UUID]*memImpression{},
		credits:     &memCredits{balances: map[uuid.UUID]int64{}},
	}
}

func (m *memStore) addSeller(name string) Seller {
	s := Seller{ID: uuid.New(), UserID: uuid.New(), DisplayName: name}
	m.sellers[s.ID] = s
	return s
}

func (m *memStore) addService(seller Seller, title string, category uuid.UUID) ServiceInfo {
	svc := ServiceInfo{ID: uuid.New(), SellerID: seller.ID, SellerUserID: seller.UserID, Title: title, Status: "active"}
	m.services[svc.ID] = svc
	m.categories[svc.ID] = category
	return svc
}

func (m *memStore) InTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs, payments, invoices := maps.Clone(m.subs), maps.Clone(m.payments), slices.Clone(m.invoices)
	balances := maps.Clone(m.credits.balances)
	if err := fn(memTx{m}); err != nil {
		m.subs, m.payments, m.invoices = subs, payments, invoices
		m.credits.balances = balances
		return err
	}
	return nil
}

type memTx struct{ *memStore }

func (t memTx) Credits() credit.Queries { return t.memStore.credits }

func (m *memStore) SellerForUser(_ context.Context, userID uuid.UUID) (Seller, error) {
	for _, s := range m.sellers {
		if s.UserID == userID {
			return s, nil
		}
	}
	return Seller{}, ErrSellerNotFound
}

func (m *memStore) SellerByID(_ context.Context, id uuid.UUID) (Seller, error) {
	s, ok := m.sellers[id]
	if !ok {
		return Seller{}, ErrSellerNotFound
	}
	return s, nil
}

func (m *memStore) GetService(_ context.Context, id uuid.UUID) (ServiceInfo, error) {
	s, ok := m.services[id]
	if !ok {
		return ServiceInfo{}, ErrServiceNotFound
	}
	return s, nil
}

func (m *memStore) LockService(ctx context.Context, id uuid.UUID) (ServiceInfo, error) {
	return m.GetService(ctx, id)
}

func (m *memStore) OpenSubscription(_ context.Context, serviceID uuid.UUID) (Subscription, error) {
	for _, s := range m.subs {
		if s.ServiceID == serviceID && s.Status.Open() {
			return s, nil
		}
	}
	return Subscription{}, ErrNotFound
}

func (m *memStore) InsertSubscription(_ context.Context, s Subscription) (Subscription, error) {
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	m.subs[s.ID] = s
	return s, nil
}

func (m *memStore) LockSubscription(_ context.Context, id uuid.UUID) (Subscription, error) {
	s, ok := m.subs[id]
	if !ok {
		return Subscription{}, ErrNotFound
	}
	return s, nil
}

func (m *memStore) UpdateSubscription(_ context.Context, s Subscription) error {
	cur, ok := m.subs[s.ID]
	if !ok {
		return ErrNotFound
	}
	s.TotalImpressions, s.TotalClicks = cur.TotalImpressions, cur.TotalClicks
	m.subs[s.ID] = s
	return nil
}

func (m *memStore) ListSubscriptionsBySeller(_ context.Context, sellerID uuid.UUID) ([]SubscriptionView, error) {
	var out []SubscriptionView
	for _, s := range m.subs {
		if s.SellerID == sellerID {
			out = append(out, SubscriptionView{Subscription: s, ServiceTitle: m.services[s.ServiceID].Title})
		}
	}
	return out, nil
}

func (m *memStore) DueSubscriptions(_ context.Context, day time.Time, limit int) ([]Subscription, error) {
	var out []Subscription
	for _, s := range m.subs {
		if s.Status == StatusActive && !s.NextBillingDate.After(day) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextBillingDate.Before(out[j].NextBillingDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) InsertPayment(_ context.Context, p Payment) (Payment, error) {
	p.ID = uuid.New()
	m.payments[p.ID] = p
	return p, nil
}

func (m *memStore) GetPayment(_ context.Context, id uuid.UUID) (Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (m *memStore) LockPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return m.GetPayment(ctx, id)
}

func (m *memStore) UpdatePayment(_ context.Context, p Payment) error {
	if _, ok := m.payments[p.ID]; !ok {
		return ErrNotFound
	}
	m.payments[p.ID] = p
	return nil
}

func (m *memStore) CancelPendingPayments(_ context.Context, subscriptionID uuid.UUID) error {
	for id, p := range m.payments {
		if p.SubscriptionID == subscriptionID && p.Status == PaymentPending {
			p.Status = PaymentCancelled
			m.payments[id] = p
		}
	}
	return nil
}

func (m *memStore) ListPayments(_ context.Context, status PaymentStatus, limit, offset int) ([]PaymentView, int, error) {
	var all []PaymentView
	for _, p := range m.payments {
		if status == "" || p.Status == status {
			all = append(all, PaymentView{Payment: p})
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	return all[offset:min(offset+limit, total)], total, nil
}

func (m *memStore) ExpiredBankTransfers(_ context.Context, now time.Time, limit int) ([]Payment, error) {
	var out []Payment
	for _, p := range m.payments {
		sub := m.subs[p.SubscriptionID]
		if p.PaymentMethod == MethodBankTransfer && p.Status == PaymentPending &&
			sub.BankTransferDeadline != nil && sub.BankTransferDeadline.Before(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) CompanyInfo(context.Context) (CompanyInfo, error) {
	if m.company == nil {
		return CompanyInfo{}, ErrCompanyInfo
	}
	return *m.company, nil
}

func (m *memStore) NextInvoiceSequence(_ context.Context, day time.Time) (int, error) {
	prefix := day.Format(invoiceDayLayout) + "-"
	last := 0
	for _, inv := range m.invoices {
		if rest, ok := strings.CutPrefix(inv.InvoiceNumber, prefix); ok {
			var n int
			for _, r := range rest {
				n = n*10 + int(r-'0')
			}
			last = max(last, n)
		}
	}
	return last + 1, nil
}

func (m *memStore) InsertTaxInvoice(_ context.Context, inv TaxInvoice) (TaxInvoice, error) {
	inv.ID = uuid.New()
	m.invoices = append(m.invoices, inv)
	return inv, nil
}

func (m *memStore) CategoryListings(_ context.Context, categoryID uuid.UUID) ([]Listing, error) {
	var out []Listing
	for id, svc := range m.services {
		if m.categories[id] != categoryID || svc.Status != "active" {
			continue
		}
		l := Listing{ServiceID: id, SellerID: svc.SellerID, Title: svc.Title}
		for _, s := range m.subs {
			if s.ServiceID == id && s.Status == StatusActive {
				subID := s.ID
				l.SubscriptionID = &subID
				l.Advertised = true
			}
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *memStore) InsertImpressions(_ context.Context, imps []Impression) ([]Impression, error) {
	if m.failImps {
		return nil, errFakeWrite
	}
	out := make([]Impression, len(imps))
	for i, imp := range imps {
		imp.ID = uuid.New()
		m.impressions[imp.ID] = &memImpression{Impression: imp}
		s := m.subs[imp.SubscriptionID]
		s.TotalImpressions++
		m.subs[imp.SubscriptionID] = s
		out[i] = imp
	}
	return out, nil
}

func (m *memStore) MarkClicked(_ context.Context, id uuid.UUID, _ time.Time) (uuid.UUID, bool, error) {
	imp, ok := m.impressions[id]
	if !ok {
		return uuid.Nil, false, ErrNotFound
	}
	if imp.clicked {
		return imp.SubscriptionID, false, nil
	}
	imp.clicked = true
	return imp.SubscriptionID, true, nil
}

func (m *memStore) IncrementClicks(_ context.Context, subscriptionID uuid.UUID) error {
	s := m.subs[subscriptionID]
	s.TotalClicks++
	m.subs[subscriptionID] = s
	return nil
}

// memCredits keeps one never-expiring balance per seller.
type memCredits struct {
	balances map[uuid.UUID]int64
	spent    []credit.Transaction
}

func (c *memCredits) creditID(sellerID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, sellerID[:])
}

func (c *memCredits) LockUsableCredits(ctx context.Context, sellerID uuid.UUID, now time.Time) ([]credit.Credit, error) {
	return c.ListUsableCredits(ctx, sellerID, now)
}

func (c *memCredits) ListUsableCredits(_ context.Context, sellerID uuid.UUID, _ time.Time) ([]credit.Credit, error) {
	if c.balances[sellerID] <= 0 {
		return nil, nil
	}
	return []credit.Credit{{ID: c.creditID(sellerID), SellerID: sellerID, Amount: c.balances[sellerID]}}, nil
}

func (c *memCredits) HasPromotion(context.Context, uuid.UUID, string) (bool, error) {
	return false, nil
}

func (c *memCredits) InsertCredit(_ context.Context, cr credit.Credit) (credit.Credit, error) {
	c.balances[cr.SellerID] += cr.Amount
	return cr, nil
}

func (c *memCredits) UpdateCreditBalance(_ context.Context, id uuid.UUID, amount, _ int64) error {
	for seller := range c.balances {
		if c.creditID(seller) == id {
			c.balances[seller] = amount
		}
	}
	return nil
}

func (c *memCredits) InsertTransaction(_ context.Context, tx credit.Transaction) error {
	c.spent = append(c.spent, tx)
	return nil
}

func (c *memCredits) LockExpiredCredits(context.Context, time.Time, int) ([]credit.Credit, error) {
	return nil, nil
}

func (c *memCredits) SellerUserID(context.Context, uuid.UUID) (uuid.UUID, error) {
	return uuid.Nil, nil
}

func (c *memCredits) SellerIDForUser(context.Context, uuid.UUID) (uuid.UUID, error) {
	return uuid.Nil, nil
}

func (c *memCredits) ListTransactions(context.Context, uuid.UUID, int) ([]credit.Transaction, error) {
	return c.spent, nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Topic   string
	Payload map[string]any
}

func (f *fakeEmitter) Emit(_ context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, _ := payload.(map[string]any)
	f.events = append(f.events, recordedEvent{Topic: topic, Payload: p})
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID}, nil
}

func (f *fakeEmitter) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Topic
	}
	return out
}

var errFakeWrite = fakeErr("write failed")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
