package analytics

import (
	"context"
	"time"

	"github.com/noah-isme/backend-jasa/internal/db"
)

type pgQueries struct{ q db.DBTX }

// NewPGQueries returns a Querier backed by Postgres.
func NewPGQueries(q db.DBTX) Querier { return pgQueries{q: q} }

func (p pgQueries) Overview(ctx context.Context, from, to time.Time) (Overview, error) {
	const query = `
SELECT
  (SELECT COUNT(*) FROM advertising_subscriptions WHERE status = 'active'),
  (SELECT COUNT(*) FROM advertising_payments WHERE status = 'pending'),
  pay.completed, pay.revenue,
  imp.impressions, imp.clicks
FROM
  (SELECT COUNT(*) AS completed, COALESCE(SUM(amount), 0)::bigint AS revenue
     FROM advertising_payments
    WHERE status = 'completed' AND paid_at >= $1 AND paid_at < $2) pay,
  (SELECT COUNT(*) AS impressions, COUNT(*) FILTER (WHERE clicked) AS clicks
     FROM advertising_impressions
    WHERE created_at >= $1 AND created_at < $2) imp`
	var o Overview
	err := p.q.QueryRow(ctx, query, from, to).Scan(
		&o.ActiveSubscriptions, &o.PendingPayments,
		&o.CompletedPayments, &o.Revenue,
		&o.Impressions, &o.Clicks,
	)
	return o, err
}

func (p pgQueries) DailyRevenue(ctx context.Context, from, to time.Time) ([]DailyRevenue, error) {
	rows, err := p.q.Query(ctx, `
SELECT date_trunc('day', paid_at) AS day, COUNT(*), COALESCE(SUM(amount), 0)::bigint
  FROM advertising_payments
 WHERE status = 'completed' AND paid_at >= $1 AND paid_at < $2
 GROUP BY 1
 ORDER BY 1`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DailyRevenue
	for rows.Next() {
		var d DailyRevenue
		if err := rows.Scan(&d.Day, &d.Payments, &d.Revenue); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
