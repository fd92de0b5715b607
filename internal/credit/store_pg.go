package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-jasa/internal/db"
)

type pgQueries struct {
	q db.DBTX
}

// NewQueries binds the credit queries to a pool or an open transaction.
func NewQueries(q db.DBTX) Queries {
	return pgQueries{q: q}
}

type pgStore struct {
	pgQueries
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by Postgres.
func NewPGStore(pool *pgxpool.Pool) Store {
	return pgStore{pgQueries: pgQueries{q: pool}, pool: pool}
}

func (s pgStore) InTx(ctx context.Context, fn func(Queries) error) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(pgQueries{q: tx})
	})
}

const creditColumns = `id, seller_id, amount, initial_amount, used_amount, promotion_type, expires_at, created_at`

func scanCredits(rows pgx.Rows) ([]Credit, error) {
	defer rows.Close()
	var out []Credit
	for rows.Next() {
		var c Credit
		if err := rows.Scan(&c.ID, &c.SellerID, &c.Amount, &c.InitialAmount, &c.UsedAmount, &c.PromotionType, &c.ExpiresAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p pgQueries) LockUsableCredits(ctx context.Context, sellerID uuid.UUID, now time.Time) ([]Credit, error) {
	rows, err := p.q.Query(ctx, `
SELECT `+creditColumns+` FROM advertising_credits
WHERE seller_id = $1 AND amount > 0 AND (expires_at IS NULL OR expires_at > $2)
ORDER BY expires_at ASC NULLS LAST, created_at ASC
FOR UPDATE`, sellerID, now)
	if err != nil {
		return nil, fmt.Errorf("lock credits: %w", err)
	}
	return scanCredits(rows)
}

func (p pgQueries) ListUsableCredits(ctx context.Context, sellerID uuid.UUID, now time.Time) ([]Credit, error) {
	rows, err := p.q.Query(ctx, `
SELECT `+creditColumns+` FROM advertising_credits
WHERE seller_id = $1 AND amount > 0 AND (expires_at IS NULL OR expires_at > $2)
ORDER BY expires_at ASC NULLS LAST, created_at ASC`, sellerID, now)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	return scanCredits(rows)
}

func (p pgQueries) HasPromotion(ctx context.Context, sellerID uuid.UUID, promotionType string) (bool, error) {
	var exists bool
	err := p.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM advertising_credits WHERE seller_id = $1 AND promotion_type = $2)`,
		sellerID, promotionType).Scan(&exists)
	return exists, err
}

func (p pgQueries) InsertCredit(ctx context.Context, c Credit) (Credit, error) {
	err := p.q.QueryRow(ctx, `
INSERT INTO advertising_credits (seller_id, amount, initial_amount, used_amount, promotion_type, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`, c.SellerID, c.Amount, c.InitialAmount, c.UsedAmount, c.PromotionType, c.ExpiresAt).Scan(&c.ID, &c.CreatedAt)
	if db.IsUniqueViolation(err, "ux_advertising_credits_promotion") {
		return Credit{}, ErrAlreadyGranted
	}
	return c, err
}

func (p pgQueries) UpdateCreditBalance(ctx context.Context, id uuid.UUID, amount, used int64) error {
	_, err := p.q.Exec(ctx, `UPDATE advertising_credits SET amount = $2, used_amount = $3, updated_at = now() WHERE id = $1`, id, amount, used)
	return err
}

func (p pgQueries) InsertTransaction(ctx context.Context, t Transaction) error {
	var refType *string
	if t.ReferenceType != "" {
		refType = &t.ReferenceType
	}
	_, err := p.q.Exec(ctx, `
INSERT INTO credit_transactions (credit_id, seller_id, transaction_type, amount, balance_after, description, reference_type, reference_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.CreditID, t.SellerID, string(t.Kind), t.Amount, t.BalanceAfter, t.Description, refType, t.ReferenceID)
	return err
}

func (p pgQueries) LockExpiredCredits(ctx context.Context, now time.Time, limit int) ([]Credit, error) {
	rows, err := p.q.Query(ctx, `
SELECT `+creditColumns+` FROM advertising_credits
WHERE amount > 0 AND expires_at IS NOT NULL AND expires_at <= $1
ORDER BY expires_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("lock expired credits: %w", err)
	}
	return scanCredits(rows)
}

func (p pgQueries) SellerUserID(ctx context.Context, sellerID uuid.UUID) (uuid.UUID, error) {
	var userID uuid.UUID
	err := p.q.QueryRow(ctx, `SELECT user_id FROM sellers WHERE id = $1`, sellerID).Scan(&userID)
	if db.IsNoRows(err) {
		return uuid.Nil, ErrSellerNotFound
	}
	return userID, err
}

func (p pgQueries) SellerIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var sellerID uuid.UUID
	err := p.q.QueryRow(ctx, `SELECT id FROM sellers WHERE user_id = $1`, userID).Scan(&sellerID)
	if db.IsNoRows(err) {
		return uuid.Nil, ErrSellerNotFound
	}
	return sellerID, err
}

func (p pgQueries) ListTransactions(ctx context.Context, sellerID uuid.UUID, limit int) ([]Transaction, error) {
	rows, err := p.q.Query(ctx, `
SELECT id, credit_id, seller_id, transaction_type, amount, balance_after, description, COALESCE(reference_type, ''), reference_id, created_at
FROM credit_transactions WHERE seller_id = $1
ORDER BY created_at DESC LIMIT $2`, sellerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		var kind string
		if err := rows.Scan(&t.ID, &t.CreditID, &t.SellerID, &kind, &t.Amount, &t.BalanceAfter, &t.Description, &t.ReferenceType, &t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Kind = TxKind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}
