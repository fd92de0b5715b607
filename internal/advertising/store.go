package advertising

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-jasa/internal/credit"
)

// Queries are the advertising reads and writes. Lock* variants take row locks and are meant for transactions.
type Queries interface {
	SellerForUser(ctx context.Context, userID uuid.UUID) (Seller, error)
	SellerByID(ctx context.Context, sellerID uuid.UUID) (Seller, error)
	GetService(ctx context.Context, serviceID uuid.UUID) (ServiceInfo, error)
	LockService(ctx context.Context, serviceID uuid.UUID) (ServiceInfo, error)
	// OpenSubscription returns the active or pending subscription of a service, or ErrNotFound.
	OpenSubscription(ctx context.Context, serviceID uuid.UUID) (Subscription, error)

	InsertSubscription(ctx context.Context, s Subscription) (Subscription, error)
	LockSubscription(ctx context.Context, id uuid.UUID) (Subscription, error)
	UpdateSubscription(ctx context.Context, s Subscription) error
	ListSubscriptionsBySeller(ctx context.Context, sellerID uuid.UUID) ([]SubscriptionView, error)
	// DueSubscriptions lists active subscriptions whose next billing date is on or before day.
	DueSubscriptions(ctx context.Context, day time.Time, limit int) ([]Subscription, error)

	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (Payment, error)
	LockPayment(ctx context.Context, id uuid.UUID) (Payment, error)
	UpdatePayment(ctx context.Context, p Payment) error
	CancelPendingPayments(ctx context.Context, subscriptionID uuid.UUID) error
	ListPayments(ctx context.Context, status PaymentStatus, limit, offset int) ([]PaymentView, int, error)
	// ExpiredBankTransfers lists pending bank-transfer payments whose subscription deadline is before now.
	ExpiredBankTransfers(ctx context.Context, now time.Time, limit int) ([]Payment, error)

	CompanyInfo(ctx context.Context) (CompanyInfo, error)
	// NextInvoiceSequence serialises invoice numbering for the transaction and returns the next number for day.
	NextInvoiceSequence(ctx context.Context, day time.Time) (int, error)
	InsertTaxInvoice(ctx context.Context, inv TaxInvoice) (TaxInvoice, error)

	CategoryListings(ctx context.Context, categoryID uuid.UUID) ([]Listing, error)
	InsertImpressions(ctx context.Context, imps []Impression) ([]Impression, error)
	// MarkClicked flags the impression clicked. first is false when it had already been clicked.
	MarkClicked(ctx context.Context, impressionID uuid.UUID, at time.Time) (subscriptionID uuid.UUID, first bool, err error)
	IncrementClicks(ctx context.Context, subscriptionID uuid.UUID) error
}

// Tx is a transaction scope spanning advertising and credit tables.
type Tx interface {
	Queries
	Credits() credit.Queries
}

// Store runs Queries on a pool and opens transactions.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(Tx) error) error
}
