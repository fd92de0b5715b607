package advertising

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-jasa/internal/credit"
	"github.com/noah-isme/backend-jasa/internal/db"
)

type pgQueries struct {
	q db.DBTX
}

type pgTx struct {
	pgQueries
	credits credit.Queries
}

func (t pgTx) Credits() credit.Queries { return t.credits }

type pgStore struct {
	pgQueries
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by Postgres.
func NewPGStore(pool *pgxpool.Pool) Store {
	return pgStore{pgQueries: pgQueries{q: pool}, pool: pool}
}

func (s pgStore) InTx(ctx context.Context, fn func(Tx) error) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(pgTx{pgQueries: pgQueries{q: tx}, credits: credit.NewQueries(tx)})
	})
}

const sellerColumns = `id, user_id, display_name, COALESCE(business_number, ''), COALESCE(business_name, ''),
COALESCE(ceo_name, ''), COALESCE(business_address, ''), COALESCE(business_type, ''), COALESCE(business_item, ''),
COALESCE(tax_email, '')`

func scanSeller(row pgx.Row) (Seller, error) {
	var s Seller
	err := row.Scan(&s.ID, &s.UserID, &s.DisplayName, &s.BusinessNumber, &s.BusinessName, &s.CEOName,
		&s.BusinessAddress, &s.BusinessType, &s.BusinessItem, &s.TaxEmail)
	if db.IsNoRows(err) {
		return Seller{}, ErrSellerNotFound
	}
	return s, err
}

func (p pgQueries) SellerForUser(ctx context.Context, userID uuid.UUID) (Seller, error) {
	return scanSeller(p.q.QueryRow(ctx, `SELECT `+sellerColumns+` FROM sellers WHERE user_id = $1`, userID))
}

func (p pgQueries) SellerByID(ctx context.Context, sellerID uuid.UUID) (Seller, error) {
	return scanSeller(p.q.QueryRow(ctx, `SELECT `+sellerColumns+` FROM sellers WHERE id = $1`, sellerID))
}

const serviceQuery = `
SELECT s.id, s.seller_id, se.user_id, s.title, s.status
FROM services s JOIN sellers se ON se.id = s.seller_id
WHERE s.id = $1`

func scanService(row pgx.Row) (ServiceInfo, error) {
	var s ServiceInfo
	err := row.Scan(&s.ID, &s.SellerID, &s.SellerUserID, &s.Title, &s.Status)
	if db.IsNoRows(err) {
		return ServiceInfo{}, ErrServiceNotFound
	}
	return s, err
}

func (p pgQueries) GetService(ctx context.Context, serviceID uuid.UUID) (ServiceInfo, error) {
	return scanService(p.q.QueryRow(ctx, serviceQuery, serviceID))
}

func (p pgQueries) LockService(ctx context.Context, serviceID uuid.UUID) (ServiceInfo, error) {
	return scanService(p.q.QueryRow(ctx, serviceQuery+` FOR UPDATE OF s`, serviceID))
}

const subscriptionColumns = `id, seller_id, service_id, months, monthly_price, supply_amount, tax_amount, total_amount,
payment_method, status, next_billing_date, last_billed_at, bank_transfer_deadline, confirmed_at, confirmed_by,
cancelled_at, expires_at, total_impressions, total_clicks, created_at, updated_at`

func subscriptionDest(s *Subscription) []any {
	return []any{&s.ID, &s.SellerID, &s.ServiceID, &s.Months, &s.MonthlyPrice, &s.SupplyAmount, &s.TaxAmount,
		&s.TotalAmount, &s.PaymentMethod, &s.Status, &s.NextBillingDate, &s.LastBilledAt, &s.BankTransferDeadline,
		&s.ConfirmedAt, &s.ConfirmedBy, &s.CancelledAt, &s.ExpiresAt, &s.TotalImpressions, &s.TotalClicks,
		&s.CreatedAt, &s.UpdatedAt}
}

func scanSubscription(row pgx.Row) (Subscription, error) {
	var s Subscription
	err := row.Scan(subscriptionDest(&s)...)
	if db.IsNoRows(err) {
		return Subscription{}, ErrNotFound
	}
	return s, err
}

func (p pgQueries) OpenSubscription(ctx context.Context, serviceID uuid.UUID) (Subscription, error) {
	return scanSubscription(p.q.QueryRow(ctx, `
SELECT `+subscriptionColumns+` FROM advertising_subscriptions
WHERE service_id = $1 AND status IN ('active', 'pending_payment')
LIMIT 1`, serviceID))
}

func (p pgQueries) InsertSubscription(ctx context.Context, s Subscription) (Subscription, error) {
	out, err := scanSubscription(p.q.QueryRow(ctx, `
INSERT INTO advertising_subscriptions (seller_id, service_id, months, monthly_price, supply_amount, tax_amount,
  total_amount, payment_method, status, next_billing_date, last_billed_at, bank_transfer_deadline)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING `+subscriptionColumns,
		s.SellerID, s.ServiceID, s.Months, s.MonthlyPrice, s.SupplyAmount, s.TaxAmount, s.TotalAmount,
		s.PaymentMethod, s.Status, s.NextBillingDate, s.LastBilledAt, s.BankTransferDeadline))
	if db.IsUniqueViolation(err, "ux_advertising_subscriptions_open") {
		return Subscription{}, ErrAlreadyAdvertised
	}
	return out, err
}

func (p pgQueries) LockSubscription(ctx context.Context, id uuid.UUID) (Subscription, error) {
	return scanSubscription(p.q.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM advertising_subscriptions WHERE id = $1 FOR UPDATE`, id))
}

func (p pgQueries) UpdateSubscription(ctx context.Context, s Subscription) error {
	tag, err := p.q.Exec(ctx, `
UPDATE advertising_subscriptions SET
  status = $2, next_billing_date = $3, last_billed_at = $4, bank_transfer_deadline = $5,
  confirmed_at = $6, confirmed_by = $7, cancelled_at = $8, expires_at = $9, updated_at = now()
WHERE id = $1`,
		s.ID, s.Status, s.NextBillingDate, s.LastBilledAt, s.BankTransferDeadline,
		s.ConfirmedAt, s.ConfirmedBy, s.CancelledAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p pgQueries) ListSubscriptionsBySeller(ctx context.Context, sellerID uuid.UUID) ([]SubscriptionView, error) {
	rows, err := p.q.Query(ctx, `
SELECT `+prefixed("a", subscriptionColumns)+`, s.title
FROM advertising_subscriptions a JOIN services s ON s.id = a.service_id
WHERE a.seller_id = $1
ORDER BY a.created_at DESC`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()
	var out []SubscriptionView
	for rows.Next() {
		var v SubscriptionView
		if err := rows.Scan(append(subscriptionDest(&v.Subscription), &v.ServiceTitle)...); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p pgQueries) DueSubscriptions(ctx context.Context, day time.Time, limit int) ([]Subscription, error) {
	rows, err := p.q.Query(ctx, `
SELECT `+subscriptionColumns+` FROM advertising_subscriptions
WHERE status = 'active' AND next_billing_date <= $1
ORDER BY next_billing_date ASC, id
LIMIT $2`, day, limit)
	if err != nil {
		return nil, fmt.Errorf("due subscriptions: %w", err)
	}
	defer rows.Close()
	var out []Subscription
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(subscriptionDest(&s)...); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const paymentColumns = `id, subscription_id, seller_id, amount, supply_amount, tax_amount, payment_method, status,
depositor_name, bank_name, deposited_at, paid_at, confirmed_at, confirmed_by, admin_memo, tax_invoice_id, created_at`

func paymentDest(p *Payment) []any {
	return []any{&p.ID, &p.SubscriptionID, &p.SellerID, &p.Amount, &p.SupplyAmount, &p.TaxAmount, &p.PaymentMethod,
		&p.Status, &p.DepositorName, &p.BankName, &p.DepositedAt, &p.PaidAt, &p.ConfirmedAt, &p.ConfirmedBy,
		&p.AdminMemo, &p.TaxInvoiceID, &p.CreatedAt}
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(paymentDest(&p)...)
	if db.IsNoRows(err) {
		return Payment{}, ErrNotFound
	}
	return p, err
}

func (p pgQueries) InsertPayment(ctx context.Context, pay Payment) (Payment, error) {
	return scanPayment(p.q.QueryRow(ctx, `
INSERT INTO advertising_payments (subscription_id, seller_id, amount, supply_amount, tax_amount, payment_method,
  status, paid_at, confirmed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+paymentColumns,
		pay.SubscriptionID, pay.SellerID, pay.Amount, pay.SupplyAmount, pay.TaxAmount, pay.PaymentMethod,
		pay.Status, pay.PaidAt, pay.ConfirmedAt))
}

func (p pgQueries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(p.q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM advertising_payments WHERE id = $1`, id))
}

func (p pgQueries) LockPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(p.q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM advertising_payments WHERE id = $1 FOR UPDATE`, id))
}

func (p pgQueries) UpdatePayment(ctx context.Context, pay Payment) error {
	tag, err := p.q.Exec(ctx, `
UPDATE advertising_payments SET
  status = $2, depositor_name = $3, bank_name = $4, deposited_at = $5, paid_at = $6,
  confirmed_at = $7, confirmed_by = $8, admin_memo = $9, tax_invoice_id = $10, updated_at = now()
WHERE id = $1`,
		pay.ID, pay.Status, pay.DepositorName, pay.BankName, pay.DepositedAt, pay.PaidAt,
		pay.ConfirmedAt, pay.ConfirmedBy, pay.AdminMemo, pay.TaxInvoiceID)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p pgQueries) CancelPendingPayments(ctx context.Context, subscriptionID uuid.UUID) error {
	_, err := p.q.Exec(ctx, `
UPDATE advertising_payments SET status = 'cancelled', updated_at = now()
WHERE subscription_id = $1 AND status = 'pending'`, subscriptionID)
	return err
}

func (p pgQueries) ListPayments(ctx context.Context, status PaymentStatus, limit, offset int) ([]PaymentView, int, error) {
	rows, err := p.q.Query(ctx, `
SELECT `+prefixed("p", paymentColumns)+`, se.display_name, s.title, COUNT(*) OVER()
FROM advertising_payments p
JOIN sellers se ON se.id = p.seller_id
JOIN advertising_subscriptions a ON a.id = p.subscription_id
JOIN services s ON s.id = a.service_id
WHERE ($1 = '' OR p.status = $1)
ORDER BY p.created_at DESC
LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	var (
		out   []PaymentView
		total int
	)
	for rows.Next() {
		var v PaymentView
		if err := rows.Scan(append(paymentDest(&v.Payment), &v.SellerName, &v.ServiceTitle, &total)...); err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

func (p pgQueries) ExpiredBankTransfers(ctx context.Context, now time.Time, limit int) ([]Payment, error) {
	rows, err := p.q.Query(ctx, `
SELECT `+prefixed("p", paymentColumns)+`
FROM advertising_payments p
JOIN advertising_subscriptions a ON a.id = p.subscription_id
WHERE p.payment_method = 'bank_transfer' AND p.status = 'pending' AND a.bank_transfer_deadline < $1
ORDER BY a.bank_transfer_deadline ASC
LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("expired bank transfers: %w", err)
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var pay Payment
		if err := rows.Scan(paymentDest(&pay)...); err != nil {
			return nil, err
		}
		out = append(out, pay)
	}
	return out, rows.Err()
}

func (p pgQueries) CompanyInfo(ctx context.Context) (CompanyInfo, error) {
	var c CompanyInfo
	err := p.q.QueryRow(ctx, `
SELECT business_number, company_name, ceo_name, address, business_type, business_item, COALESCE(email, '')
FROM company_info WHERE is_active
ORDER BY updated_at DESC LIMIT 1`).Scan(&c.BusinessNumber, &c.CompanyName, &c.CEOName, &c.Address,
		&c.BusinessType, &c.BusinessItem, &c.Email)
	if db.IsNoRows(err) {
		return CompanyInfo{}, ErrCompanyInfo
	}
	return c, err
}

// invoiceLockKey is the advisory lock key guarding tax invoice numbering.
const invoiceLockKey = 7_304_221

func (p pgQueries) NextInvoiceSequence(ctx context.Context, day time.Time) (int, error) {
	if _, err := p.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(invoiceLockKey)); err != nil {
		return 0, fmt.Errorf("lock invoice sequence: %w", err)
	}
	var last int
	err := p.q.QueryRow(ctx, `
SELECT COALESCE(MAX(split_part(invoice_number, '-', 2)::int), 0)
FROM tax_invoices WHERE invoice_number LIKE $1`, day.Format(invoiceDayLayout)+"-%").Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("read invoice sequence: %w", err)
	}
	return last + 1, nil
}

func (p pgQueries) InsertTaxInvoice(ctx context.Context, inv TaxInvoice) (TaxInvoice, error) {
	err := p.q.QueryRow(ctx, `
INSERT INTO tax_invoices (invoice_number, payment_id, subscription_id, seller_id, issue_date, status,
  supplier_business_number, supplier_company_name, supplier_ceo_name, supplier_address, supplier_business_type,
  supplier_business_item, buyer_business_number, buyer_company_name, buyer_ceo_name, buyer_address,
  buyer_business_type, buyer_business_item, buyer_email, supply_amount, tax_amount, total_amount, item_name)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
RETURNING id`,
		inv.InvoiceNumber, inv.PaymentID, inv.SubscriptionID, inv.SellerID, inv.IssueDate, inv.Status,
		inv.SupplierBusinessNumber, inv.SupplierCompanyName, inv.SupplierCEOName, inv.SupplierAddress,
		inv.SupplierBusinessType, inv.SupplierBusinessItem, inv.BuyerBusinessNumber, inv.BuyerCompanyName,
		inv.BuyerCEOName, inv.BuyerAddress, inv.BuyerBusinessType, inv.BuyerBusinessItem, inv.BuyerEmail,
		inv.SupplyAmount, inv.TaxAmount, inv.TotalAmount, inv.ItemName).Scan(&inv.ID)
	if err != nil {
		return TaxInvoice{}, fmt.Errorf("insert tax invoice: %w", err)
	}
	return inv, nil
}

func (p pgQueries) CategoryListings(ctx context.Context, categoryID uuid.UUID) ([]Listing, error) {
	rows, err := p.q.Query(ctx, `
SELECT s.id, s.seller_id, se.display_name, s.title, COALESCE(s.thumbnail_url, ''), s.price, a.id
FROM services s
JOIN sellers se ON se.id = s.seller_id
LEFT JOIN advertising_subscriptions a
  ON a.service_id = s.id AND a.status = 'active' AND (a.expires_at IS NULL OR a.expires_at > now())
WHERE s.category_id = $1 AND s.status = 'active'
ORDER BY s.id`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("category listings: %w", err)
	}
	defer rows.Close()
	var out []Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.ServiceID, &l.SellerID, &l.SellerName, &l.Title, &l.ThumbnailURL, &l.Price, &l.SubscriptionID); err != nil {
			return nil, err
		}
		l.Advertised = l.SubscriptionID != nil
		out = append(out, l)
	}
	return out, rows.Err()
}

func (p pgQueries) InsertImpressions(ctx context.Context, imps []Impression) ([]Impression, error) {
	if len(imps) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	for _, imp := range imps {
		batch.Queue(`
INSERT INTO advertising_impressions (subscription_id, service_id, category_id, position, page_number, viewer_key)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			imp.SubscriptionID, imp.ServiceID, imp.CategoryID, imp.Position, imp.Page, imp.ViewerKey)
		batch.Queue(`UPDATE advertising_subscriptions SET total_impressions = total_impressions + 1 WHERE id = $1`, imp.SubscriptionID)
	}
	br := p.q.SendBatch(ctx, batch)
	defer br.Close()
	out := make([]Impression, len(imps))
	for i, imp := range imps {
		if err := br.QueryRow().Scan(&imp.ID); err != nil {
			return nil, fmt.Errorf("insert impression: %w", err)
		}
		if _, err := br.Exec(); err != nil {
			return nil, fmt.Errorf("count impression: %w", err)
		}
		out[i] = imp
	}
	return out, nil
}

func (p pgQueries) MarkClicked(ctx context.Context, impressionID uuid.UUID, at time.Time) (uuid.UUID, bool, error) {
	var subID uuid.UUID
	var wasClicked bool
	err := p.q.QueryRow(ctx, `
SELECT subscription_id, clicked FROM advertising_impressions WHERE id = $1 FOR UPDATE`, impressionID).Scan(&subID, &wasClicked)
	if db.IsNoRows(err) {
		return uuid.Nil, false, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	if wasClicked {
		return subID, false, nil
	}
	if _, err := p.q.Exec(ctx, `UPDATE advertising_impressions SET clicked = true, clicked_at = $2 WHERE id = $1`, impressionID, at); err != nil {
		return uuid.Nil, false, err
	}
	return subID, true, nil
}

func (p pgQueries) IncrementClicks(ctx context.Context, subscriptionID uuid.UUID) error {
	_, err := p.q.Exec(ctx, `UPDATE advertising_subscriptions SET total_clicks = total_clicks + 1 WHERE id = $1`, subscriptionID)
	return err
}

// prefixed qualifies each column of a comma separated list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
