package advertising

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	mathrand "math/rand/v2"

	"github.com/google/uuid"
)

// MaxPageSize bounds category page sizes.
const MaxPageSize = 100

// PageRequest selects one page of a category listing.
type PageRequest struct {
	CategoryID uuid.UUID
	Page       int
	PageSize   int
	// ViewerKey is an opaque hash identifying the viewer on impression rows.
	ViewerKey string
}

// CategoryPage returns the active services of a category in uniformly random order, advertised or not,
// and records an impression for each advertised service on the returned page.
func (s *Service) CategoryPage(ctx context.Context, req PageRequest) (CategoryPage, error) {
	if req.Page < 1 {
		return CategoryPage{}, fmt.Errorf("%w: page must be at least 1", ErrInvalidPage)
	}
	if req.PageSize < 1 || req.PageSize > MaxPageSize {
		return CategoryPage{}, fmt.Errorf("%w: page size must be between 1 and %d", ErrInvalidPage, MaxPageSize)
	}
	all, err := s.Store.CategoryListings(ctx, req.CategoryID)
	if err != nil {
		return CategoryPage{}, err
	}
	shuffle := s.Shuffle
	if shuffle == nil {
		shuffle = cryptoShuffle
	}
	shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })

	out := CategoryPage{
		Items:      []Listing{},
		Total:      len(all),
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: (len(all) + req.PageSize - 1) / req.PageSize,
	}
	start := (req.Page - 1) * req.PageSize
	if start >= len(all) {
		return out, nil
	}
	end := min(start+req.PageSize, len(all))
	out.Items = all[start:end]

	var imps []Impression
	var idx []int
	for i := range out.Items {
		out.Items[i].Position = start + i + 1
		l := out.Items[i]
		if !l.Advertised || l.SubscriptionID == nil {
			continue
		}
		imps = append(imps, Impression{
			SubscriptionID: *l.SubscriptionID,
			ServiceID:      l.ServiceID,
			CategoryID:     req.CategoryID,
			Position:       l.Position,
			Page:           req.Page,
			ViewerKey:      req.ViewerKey,
		})
		idx = append(idx, i)
	}
	if len(imps) == 0 {
		return out, nil
	}
	var recorded []Impression
	err = s.Store.InTx(ctx, func(tx Tx) error {
		var err error
		recorded, err = tx.InsertImpressions(ctx, imps)
		return err
	})
	if err != nil {
		// A failed impression write never hides the page.
		s.Logger.Warn().Err(err).Str("category_id", req.CategoryID.String()).Int("count", len(imps)).Msg("record impressions")
		return out, nil
	}
	for k, imp := range recorded {
		id := imp.ID
		out.Items[idx[k]].ImpressionID = &id
	}
	return out, nil
}

// RecordClick marks an impression clicked. Only the first click counts towards the subscription;
// counted reports whether this one did.
func (s *Service) RecordClick(ctx context.Context, impressionID uuid.UUID) (counted bool, err error) {
	now := s.now()
	err = s.Store.InTx(ctx, func(tx Tx) error {
		subID, first, err := tx.MarkClicked(ctx, impressionID, now)
		if err != nil {
			return err
		}
		if !first {
			return nil
		}
		counted = true
		return tx.IncrementClicks(ctx, subID)
	})
	if err != nil {
		return false, err
	}
	return counted, nil
}

// cryptoShuffle is a Fisher-Yates shuffle drawing indices from crypto/rand.
func cryptoShuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, randIndex(i+1))
	}
}

func randIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return mathrand.IntN(n)
	}
	return int(v.Int64())
}
