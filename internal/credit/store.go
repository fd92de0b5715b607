package credit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Queries are the credit reads and writes. Implementations run them on a pool or inside a transaction.
type Queries interface {
	// LockUsableCredits returns usable credits ordered by expiry (no expiry last), locked for update.
	LockUsableCredits(ctx context.Context, sellerID uuid.UUID, now time.Time) ([]Credit, error)
	ListUsableCredits(ctx context.Context, sellerID uuid.UUID, now time.Time) ([]Credit, error)
	HasPromotion(ctx context.Context, sellerID uuid.UUID, promotionType string) (bool, error)
	InsertCredit(ctx context.Context, c Credit) (Credit, error)
	UpdateCreditBalance(ctx context.Context, id uuid.UUID, amount, used int64) error
	InsertTransaction(ctx context.Context, tx Transaction) error
	// LockExpiredCredits returns credits with a positive amount whose expiry is at or before now.
	LockExpiredCredits(ctx context.Context, now time.Time, limit int) ([]Credit, error)
	SellerUserID(ctx context.Context, sellerID uuid.UUID) (uuid.UUID, error)
	SellerIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	ListTransactions(ctx context.Context, sellerID uuid.UUID, limit int) ([]Transaction, error)
}

// Store adds transactions to Queries.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(Queries) error) error
}
