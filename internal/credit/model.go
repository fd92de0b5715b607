package credit

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// PromotionLaunch marks the one-off credit every seller may receive at launch.
const PromotionLaunch = "launch_promo"

// TxKind classifies ledger rows.
type TxKind string

const (
	TxEarned  TxKind = "earned"
	TxSpent   TxKind = "spent"
	TxExpired TxKind = "expired"
)

var (
	ErrAlreadyGranted = errors.New("credit: promotion already granted")
	ErrInsufficient   = errors.New("credit: insufficient balance")
	ErrInvalidAmount  = errors.New("credit: amount must be positive")
	ErrSellerNotFound = errors.New("credit: seller not found")
)

// Credit is one grant of advertising credit. Amount is what is left of InitialAmount.
type Credit struct {
	ID            uuid.UUID  `json:"id"`
	SellerID      uuid.UUID  `json:"sellerId"`
	Amount        int64      `json:"amount"`
	InitialAmount int64      `json:"initialAmount"`
	UsedAmount    int64      `json:"usedAmount"`
	PromotionType string     `json:"promotionType"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Usable reports whether the credit can still be spent at now.
func (c Credit) Usable(now time.Time) bool {
	return c.Amount > 0 && (c.ExpiresAt == nil || c.ExpiresAt.After(now))
}

// Transaction is a ledger row. Amount is signed: positive for earned, negative otherwise.
type Transaction struct {
	ID            uuid.UUID  `json:"id"`
	CreditID      uuid.UUID  `json:"creditId"`
	SellerID      uuid.UUID  `json:"sellerId"`
	Kind          TxKind     `json:"kind"`
	Amount        int64      `json:"amount"`
	BalanceAfter  int64      `json:"balanceAfter"`
	Description   string     `json:"description"`
	ReferenceType string     `json:"referenceType,omitempty"`
	ReferenceID   *uuid.UUID `json:"referenceId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Reference ties a spend to the row that caused it.
type Reference struct {
	Type        string
	ID          uuid.UUID
	Description string
}

// Allocation is the part of a spend taken from one credit.
type Allocation struct {
	CreditID uuid.UUID `json:"creditId"`
	Amount   int64     `json:"amount"`
}

// SpendResult describes a completed spend.
type SpendResult struct {
	Spent        int64        `json:"spent"`
	Allocations  []Allocation `json:"allocations"`
	BalanceAfter int64        `json:"balanceAfter"`
}

// Summary is a seller's usable balance with the credits backing it.
type Summary struct {
	SellerID uuid.UUID `json:"sellerId"`
	Balance  int64     `json:"balance"`
	Credits  []Credit  `json:"credits"`
}

// ShortfallError carries how much was missing when a spend failed.
type ShortfallError struct {
	Required  int64
	Available int64
}

func (e *ShortfallError) Error() string {
	return ErrInsufficient.Error()
}

// Unwrap lets errors.Is match ErrInsufficient.
func (e *ShortfallError) Unwrap() error { return ErrInsufficient }

// Shortfall is the missing amount.
func (e *ShortfallError) Shortfall() int64 { return e.Required - e.Available }
