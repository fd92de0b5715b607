package advertising

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func reverseShuffle(n int, swap func(i, j int)) {
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		swap(i, j)
	}
}

func categoryFixture(t *testing.T, services int, advertised ...int) (*fixture, uuid.UUID) {
	t.Helper()
	f := newFixture(t)
	category := uuid.New()
	for i := 0; i < services; i++ {
		svc := f.store.addService(f.seller, fmt.Sprintf("svc-%02d", i), category)
		for _, a := range advertised {
			if a == i {
				_, err := f.store.InsertSubscription(context.Background(), Subscription{SellerID: f.seller.ID, ServiceID: svc.ID, Status: StatusActive})
				require.NoError(t, err)
			}
		}
	}
	f.svc.Shuffle = reverseShuffle
	return f, category
}

func TestCategoryPageShufflesPaginatesAndRecordsImpressions(t *testing.T) {
	f, category := categoryFixture(t, 5, 0, 3)

	page, err := f.svc.CategoryPage(context.Background(), PageRequest{CategoryID: category, Page: 1, PageSize: 2, ViewerKey: "v"})
	require.NoError(t, err)
	require.Equal(t, 5, page.Total)
	require.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	require.Equal(t, "svc-04", page.Items[0].Title)
	require.Equal(t, "svc-03", page.Items[1].Title)
	require.Equal(t, 1, page.Items[0].Position)
	require.Equal(t, 2, page.Items[1].Position)
	require.False(t, page.Items[0].Advertised)
	require.Nil(t, page.Items[0].ImpressionID)
	require.True(t, page.Items[1].Advertised)
	require.NotNil(t, page.Items[1].ImpressionID)

	imp := f.store.impressions[*page.Items[1].ImpressionID]
	require.Equal(t, 2, imp.Position)
	require.Equal(t, 1, imp.Page)
	require.Equal(t, category, imp.CategoryID)
	require.Equal(t, int64(1), f.store.subs[imp.SubscriptionID].TotalImpressions)

	last, err := f.svc.CategoryPage(context.Background(), PageRequest{CategoryID: category, Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	require.Equal(t, "svc-00", last.Items[0].Title)
	require.Equal(t, 5, last.Items[0].Position)
	require.NotNil(t, last.Items[0].ImpressionID)

	beyond, err := f.svc.CategoryPage(context.Background(), PageRequest{CategoryID: category, Page: 9, PageSize: 2})
	require.NoError(t, err)
	require.Empty(t, beyond.Items)
	require.NotNil(t, beyond.Items)
}

func TestCategoryPageValidatesBounds(t *testing.T) {
	f, category := categoryFixture(t, 1)
	for _, req := range []PageRequest{
		{CategoryID: category, Page: 0, PageSize: 10},
		{CategoryID: category, Page: 1, PageSize: 0},
		{CategoryID: category, Page: 1, PageSize: 101},
	} {
		_, err := f.svc.CategoryPage(context.Background(), req)
		require.ErrorIs(t, err, ErrInvalidPage)
	}
	_, err := f.svc.CategoryPage(context.Background(), PageRequest{CategoryID: category, Page: 1, PageSize: 100})
	require.NoError(t, err)
}

func TestCategoryPageSurvivesImpressionFailure(t *testing.T) {
	f, category := categoryFixture(t, 2, 0, 1)
	f.store.failImps = true
	page, err := f.svc.CategoryPage(context.Background(), PageRequest{CategoryID: category, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	for _, item := range page.Items {
		require.True(t, item.Advertised)
		require.Nil(t, item.ImpressionID)
	}
}

func TestRecordClickCountsFirstClickOnly(t *testing.T) {
	f, category := categoryFixture(t, 1, 0)
	page, err := f.svc.CategoryPage(context.Background(), PageRequest{CategoryID: category, Page: 1, PageSize: 10})
	require.NoError(t, err)
	impID := *page.Items[0].ImpressionID

	counted, err := f.svc.RecordClick(context.Background(), impID)
	require.NoError(t, err)
	require.True(t, counted)
	counted, err = f.svc.RecordClick(context.Background(), impID)
	require.NoError(t, err)
	require.False(t, counted)

	subID := *page.Items[0].SubscriptionID
	require.Equal(t, int64(1), f.store.subs[subID].TotalClicks)

	_, err = f.svc.RecordClick(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCryptoShuffleIsUniformEnough(t *testing.T) {
	const n, trials = 4, 4000
	var counts [n][n]int
	for i := 0; i < trials; i++ {
		items := []int{0, 1, 2, 3}
		cryptoShuffle(len(items), func(a, b int) { items[a], items[b] = items[b], items[a] })
		seen := map[int]bool{}
		for pos, v := range items {
			counts[v][pos]++
			seen[v] = true
		}
		require.Len(t, seen, n)
	}
	// Each cell expects trials/n = 1000; the bounds are far outside sampling noise.
	for v := 0; v < n; v++ {
		for pos := 0; pos < n; pos++ {
			require.Greater(t, counts[v][pos], 800, "value %d at position %d", v, pos)
			require.Less(t, counts[v][pos], 1200, "value %d at position %d", v, pos)
		}
	}
}
