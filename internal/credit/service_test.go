package credit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jasa/internal/events"
)

var testNow = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

func newTestService() (*Service, *memStore, *fakeEmitter) {
	store := newMemStore()
	em := &fakeEmitter{}
	svc := &Service{
		Store:       store,
		Events:      em,
		PromoAmount: 600_000,
		PromoMonths: 6,
		Now:         func() time.Time { return testNow },
	}
	return svc, store, em
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestGrantLaunchPromotionOnce(t *testing.T) {
	svc, store, em := newTestService()
	sellerID, userID := store.addSeller()

	c, err := svc.GrantLaunchPromotion(context.Background(), sellerID)
	require.NoError(t, err)
	require.Equal(t, int64(600_000), c.Amount)
	require.Equal(t, PromotionLaunch, c.PromotionType)
	require.NotNil(t, c.ExpiresAt)
	require.Equal(t, testNow.AddDate(0, 6, 0), *c.ExpiresAt)

	require.Len(t, store.txs, 1)
	require.Equal(t, TxEarned, store.txs[0].Kind)
	require.Equal(t, int64(600_000), store.txs[0].BalanceAfter)

	require.Len(t, em.events, 1)
	require.Equal(t, events.TopicCreditGranted, em.events[0].Topic)
	require.Equal(t, userID.String(), em.events[0].Payload["userId"])

	_, err = svc.GrantLaunchPromotion(context.Background(), sellerID)
	require.ErrorIs(t, err, ErrAlreadyGranted)
	require.Len(t, store.credits, 1)
}

func TestGrantLaunchPromotionUnknownSeller(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.GrantLaunchPromotion(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrSellerNotFound)
}

func TestBalanceIgnoresExpiredAndEmpty(t *testing.T) {
	svc, store, _ := newTestService()
	sellerID, _ := store.addSeller()
	store.add(Credit{SellerID: sellerID, Amount: 100_000, ExpiresAt: ptrTime(testNow.Add(time.Hour))})
	store.add(Credit{SellerID: sellerID, Amount: 50_000})
	store.add(Credit{SellerID: sellerID, Amount: 70_000, ExpiresAt: ptrTime(testNow)})
	store.add(Credit{SellerID: sellerID, Amount: 0, InitialAmount: 10_000})

	sum, err := svc.Balance(context.Background(), sellerID)
	require.NoError(t, err)
	require.Equal(t, int64(150_000), sum.Balance)
	require.Len(t, sum.Credits, 2)
}

func TestSpendFIFOByExpiry(t *testing.T) {
	svc, store, _ := newTestService()
	sellerID, _ := store.addSeller()
	never := store.add(Credit{SellerID: sellerID, Amount: 300_000})
	late := store.add(Credit{SellerID: sellerID, Amount: 100_000, ExpiresAt: ptrTime(testNow.AddDate(0, 2, 0))})
	soon := store.add(Credit{SellerID: sellerID, Amount: 100_000, ExpiresAt: ptrTime(testNow.AddDate(0, 1, 0))})

	ref := Reference{Type: "advertising_subscription", ID: uuid.New(), Description: "advertising 3 months"}
	res, err := svc.Spend(context.Background(), sellerID, 250_000, ref)
	require.NoError(t, err)
	require.Equal(t, []Allocation{
		{CreditID: soon.ID, Amount: 100_000},
		{CreditID: late.ID, Amount: 100_000},
		{CreditID: never.ID, Amount: 50_000},
	}, res.Allocations)
	require.Equal(t, int64(250_000), res.BalanceAfter)

	require.Equal(t, int64(0), store.credits[soon.ID].Amount)
	require.Equal(t, int64(100_000), store.credits[soon.ID].UsedAmount)
	require.Equal(t, int64(250_000), store.credits[never.ID].Amount)

	require.Len(t, store.txs, 3)
	balances := []int64{store.txs[0].BalanceAfter, store.txs[1].BalanceAfter, store.txs[2].BalanceAfter}
	require.Equal(t, []int64{400_000, 300_000, 250_000}, balances)
	for _, tx := range store.txs {
		require.Equal(t, TxSpent, tx.Kind)
		require.Less(t, tx.Amount, int64(0))
		require.Equal(t, ref.ID, *tx.ReferenceID)
	}
}

func TestSpendInsufficientWritesNothing(t *testing.T) {
	svc, store, _ := newTestService()
	sellerID, _ := store.addSeller()
	c := store.add(Credit{SellerID: sellerID, Amount: 100_000})

	_, err := svc.Spend(context.Background(), sellerID, 182_000, Reference{Type: "advertising_subscription", ID: uuid.New()})
	require.ErrorIs(t, err, ErrInsufficient)

	var shortfall *ShortfallError
	require.True(t, errors.As(err, &shortfall))
	require.Equal(t, int64(82_000), shortfall.Shortfall())

	require.Equal(t, int64(100_000), store.credits[c.ID].Amount)
	require.Empty(t, store.txs)
}

func TestSpendRejectsNonPositive(t *testing.T) {
	svc, store, _ := newTestService()
	sellerID, _ := store.addSeller()
	_, err := svc.Spend(context.Background(), sellerID, 0, Reference{})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestExpireDue(t *testing.T) {
	svc, store, em := newTestService()
	sellerID, userID := store.addSeller()
	expired := store.add(Credit{SellerID: sellerID, Amount: 40_000, InitialAmount: 600_000, UsedAmount: 560_000, ExpiresAt: ptrTime(testNow.Add(-time.Minute))})
	store.add(Credit{SellerID: sellerID, Amount: 10_000})

	out, err := svc.ExpireDue(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, int64(40_000), out[0].Amount)
	require.Equal(t, userID, out[0].UserID)

	require.Equal(t, int64(0), store.credits[expired.ID].Amount)
	require.Equal(t, int64(600_000), store.credits[expired.ID].UsedAmount)
	require.Len(t, store.txs, 1)
	require.Equal(t, TxExpired, store.txs[0].Kind)
	require.Equal(t, int64(-40_000), store.txs[0].Amount)
	require.Equal(t, int64(10_000), store.txs[0].BalanceAfter)

	require.Len(t, em.events, 1)
	require.Equal(t, events.TopicCreditExpired, em.events[0].Topic)

	again, err := svc.ExpireDue(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, again)
}
