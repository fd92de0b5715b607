package advertising

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is how a subscription is paid for.
type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCredit       PaymentMethod = "credit"
)

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	return m == MethodBankTransfer || m == MethodCredit
}

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	StatusPendingPayment SubscriptionStatus = "pending_payment"
	StatusActive         SubscriptionStatus = "active"
	StatusCancelled      SubscriptionStatus = "cancelled"
	StatusExpired        SubscriptionStatus = "expired"
)

// Open reports whether the subscription still blocks a new one for the same service.
func (s SubscriptionStatus) Open() bool {
	return s == StatusActive || s == StatusPendingPayment
}

// PaymentStatus is the state of one payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Subscription is an advertising contract for one service.
type Subscription struct {
	ID                   uuid.UUID          `json:"id"`
	SellerID             uuid.UUID          `json:"sellerId"`
	ServiceID            uuid.UUID          `json:"serviceId"`
	Months               int                `json:"months"`
	MonthlyPrice         int64              `json:"monthlyPrice"`
	SupplyAmount         int64              `json:"supplyAmount"`
	TaxAmount            int64              `json:"taxAmount"`
	TotalAmount          int64              `json:"totalAmount"`
	PaymentMethod        PaymentMethod      `json:"paymentMethod"`
	Status               SubscriptionStatus `json:"status"`
	NextBillingDate      time.Time          `json:"nextBillingDate"`
	LastBilledAt         *time.Time         `json:"lastBilledAt,omitempty"`
	BankTransferDeadline *time.Time         `json:"bankTransferDeadline,omitempty"`
	ConfirmedAt          *time.Time         `json:"confirmedAt,omitempty"`
	ConfirmedBy          *uuid.UUID         `json:"confirmedBy,omitempty"`
	CancelledAt          *time.Time         `json:"cancelledAt,omitempty"`
	ExpiresAt            *time.Time         `json:"expiresAt,omitempty"`
	TotalImpressions     int64              `json:"totalImpressions"`
	TotalClicks          int64              `json:"totalClicks"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
}

// SubscriptionView is a subscription with the advertised service's title.
type SubscriptionView struct {
	Subscription
	ServiceTitle string `json:"serviceTitle"`
}

// Payment is one charge against a subscription.
type Payment struct {
	ID             uuid.UUID     `json:"id"`
	SubscriptionID uuid.UUID     `json:"subscriptionId"`
	SellerID       uuid.UUID     `json:"sellerId"`
	Amount         int64         `json:"amount"`
	SupplyAmount   int64         `json:"supplyAmount"`
	TaxAmount      int64         `json:"taxAmount"`
	PaymentMethod  PaymentMethod `json:"paymentMethod"`
	Status         PaymentStatus `json:"status"`
	DepositorName  *string       `json:"depositorName,omitempty"`
	BankName       *string       `json:"bankName,omitempty"`
	DepositedAt    *time.Time    `json:"depositedAt,omitempty"`
	PaidAt         *time.Time    `json:"paidAt,omitempty"`
	ConfirmedAt    *time.Time    `json:"confirmedAt,omitempty"`
	ConfirmedBy    *uuid.UUID    `json:"confirmedBy,omitempty"`
	AdminMemo      *string       `json:"adminMemo,omitempty"`
	TaxInvoiceID   *uuid.UUID    `json:"taxInvoiceId,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// PaymentView adds the seller and service names shown in the admin list.
type PaymentView struct {
	Payment
	SellerName   string `json:"sellerName"`
	ServiceTitle string `json:"serviceTitle"`
}

// Seller is the seller account with the business details needed for tax invoices.
type Seller struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"userId"`
	DisplayName     string    `json:"displayName"`
	BusinessNumber  string    `json:"businessNumber,omitempty"`
	BusinessName    string    `json:"businessName,omitempty"`
	CEOName         string    `json:"ceoName,omitempty"`
	BusinessAddress string    `json:"businessAddress,omitempty"`
	BusinessType    string    `json:"businessType,omitempty"`
	BusinessItem    string    `json:"businessItem,omitempty"`
	TaxEmail        string    `json:"taxEmail,omitempty"`
}

// ServiceInfo is the advertised service with its owner.
type ServiceInfo struct {
	ID           uuid.UUID
	SellerID     uuid.UUID
	SellerUserID uuid.UUID
	Title        string
	Status       string
}

// CompanyInfo is the supplier printed on tax invoices.
type CompanyInfo struct {
	BusinessNumber string
	CompanyName    string
	CEOName        string
	Address        string
	BusinessType   string
	BusinessItem   string
	Email          string
}

// TaxInvoice is an issued VAT invoice for a completed payment.
type TaxInvoice struct {
	ID                     uuid.UUID `json:"id"`
	InvoiceNumber          string    `json:"invoiceNumber"`
	PaymentID              uuid.UUID `json:"paymentId"`
	SubscriptionID         uuid.UUID `json:"subscriptionId"`
	SellerID               uuid.UUID `json:"sellerId"`
	IssueDate              time.Time `json:"issueDate"`
	SupplierBusinessNumber string    `json:"supplierBusinessNumber"`
	SupplierCompanyName    string    `json:"supplierCompanyName"`
	SupplierCEOName        string    `json:"supplierCeoName"`
	SupplierAddress        string    `json:"supplierAddress"`
	SupplierBusinessType   string    `json:"supplierBusinessType"`
	SupplierBusinessItem   string    `json:"supplierBusinessItem"`
	BuyerBusinessNumber    string    `json:"buyerBusinessNumber"`
	BuyerCompanyName       string    `json:"buyerCompanyName"`
	BuyerCEOName           string    `json:"buyerCeoName"`
	BuyerAddress           string    `json:"buyerAddress"`
	BuyerBusinessType      string    `json:"buyerBusinessType"`
	BuyerBusinessItem      string    `json:"buyerBusinessItem"`
	BuyerEmail             string    `json:"buyerEmail"`
	SupplyAmount           int64     `json:"supplyAmount"`
	TaxAmount              int64     `json:"taxAmount"`
	TotalAmount            int64     `json:"totalAmount"`
	ItemName               string    `json:"itemName"`
	Status                 string    `json:"status"`
}

// Listing is a service shown on a category page.
type Listing struct {
	ServiceID      uuid.UUID  `json:"serviceId"`
	SellerID       uuid.UUID  `json:"sellerId"`
	SellerName     string     `json:"sellerName"`
	Title          string     `json:"title"`
	ThumbnailURL   string     `json:"thumbnailUrl,omitempty"`
	Price          int64      `json:"price"`
	Advertised     bool       `json:"advertised"`
	SubscriptionID *uuid.UUID `json:"-"`
	ImpressionID   *uuid.UUID `json:"impressionId,omitempty"`
	Position       int        `json:"position"`
}

// Impression records an advertised listing being shown.
type Impression struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	ServiceID      uuid.UUID
	CategoryID     uuid.UUID
	Position       int
	Page           int
	ViewerKey      string
}

// CategoryPage is one page of a shuffled category listing.
type CategoryPage struct {
	Items      []Listing `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}
