package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Overview summarises advertising activity for the admin dashboard.
type Overview struct {
	From                time.Time `json:"from"`
	To                  time.Time `json:"to"`
	ActiveSubscriptions int64     `json:"activeSubscriptions"`
	PendingPayments     int64     `json:"pendingPayments"`
	CompletedPayments   int64     `json:"completedPayments"`
	Revenue             int64     `json:"revenue"`
	Impressions         int64     `json:"impressions"`
	Clicks              int64     `json:"clicks"`
	CTRBps              int64     `json:"ctrBps"`
}

// DailyRevenue is one day of completed advertising payments.
type DailyRevenue struct {
	Day      time.Time `json:"day"`
	Payments int64     `json:"payments"`
	Revenue  int64     `json:"revenue"`
}

// Querier defines the database access required for analytics operations.
type Querier interface {
	Overview(ctx context.Context, from, to time.Time) (Overview, error)
	DailyRevenue(ctx context.Context, from, to time.Time) ([]DailyRevenue, error)
}

// Service provides cached access to advertising statistics.
type Service struct {
	Q            Querier
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// DefaultWindow returns the trailing window of days ending at the close of the
// current cache bucket, so requests within one TTL share a range and a cache key.
func (s *Service) DefaultWindow(days int) (time.Time, time.Time) {
	bucket := s.TTL
	if bucket <= 0 {
		bucket = time.Minute
	}
	to := s.now().UTC().Truncate(bucket).Add(bucket)
	return to.AddDate(0, 0, -days), to
}

func rangeKey(kind string, from, to time.Time) string {
	return cacheKey("an", "ads", kind, from.Unix(), to.Unix())
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// Overview returns totals for [from, to). Subscription and pending payment counts are current, not ranged.
func (s *Service) Overview(ctx context.Context, from, to time.Time) (Overview, error) {
	if s == nil || s.Q == nil {
		return Overview{}, fmt.Errorf("analytics service not configured")
	}
	key := rangeKey("overview", from, to)
	var out Overview
	if s.load(ctx, key, &out) {
		return out, nil
	}
	out, err := s.Q.Overview(ctx, from, to)
	if err != nil {
		return Overview{}, err
	}
	out.From, out.To = from, to
	out.CTRBps = ClickThroughBps(out.Clicks, out.Impressions)
	s.store(ctx, key, out)
	return out, nil
}

// DailyRevenue returns per-day completed payment totals between from and to.
func (s *Service) DailyRevenue(ctx context.Context, from, to time.Time) ([]DailyRevenue, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	key := rangeKey("daily", from, to)
	var rows []DailyRevenue
	if s.load(ctx, key, &rows) {
		return rows, nil
	}
	rows, err := s.Q.DailyRevenue(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

// ClickThroughBps is clicks per impression in basis points, truncated.
func ClickThroughBps(clicks, impressions int64) int64 {
	if impressions <= 0 {
		return 0
	}
	return clicks * 10_000 / impressions
}

func (s *Service) load(ctx context.Context, key string, dst any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
