package advertising

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jasa/internal/common"
	"github.com/noah-isme/backend-jasa/internal/credit"
	"github.com/noah-isme/backend-jasa/internal/events"
	"github.com/noah-isme/backend-jasa/internal/obs"
	"github.com/noah-isme/backend-jasa/internal/pricing"
)

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// BankAccount is where sellers transfer advertising fees.
type BankAccount struct {
	Name   string `json:"bankName"`
	Number string `json:"accountNumber"`
	Holder string `json:"accountHolder"`
}

// Service implements advertising subscriptions, payments and placement.
type Service struct {
	Store            Store
	Pricing          *pricing.Calculator
	Events           Emitter
	Bank             BankAccount
	TransferDeadline time.Duration
	Now              func() time.Time
	// Shuffle permutes category listings. Defaults to a crypto/rand Fisher-Yates shuffle.
	Shuffle func(n int, swap func(i, j int))
	Logger  zerolog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) deadline() time.Duration {
	if s.TransferDeadline > 0 {
		return s.TransferDeadline
	}
	return 72 * time.Hour
}

// Quotes returns the price list of every offered term.
func (s *Service) Quotes() []pricing.Quote {
	return s.Pricing.Table()
}

// Quote prices one offered contract length.
func (s *Service) Quote(months int) (pricing.Quote, error) {
	q, err := s.Pricing.QuoteOffered(months)
	if obs.AdQuoteTotal != nil {
		result := "ok"
		if err != nil {
			result = "rejected"
		}
		obs.AdQuoteTotal.WithLabelValues(result).Inc()
	}
	return q, err
}

// StartInput is a seller's request to advertise a service.
type StartInput struct {
	UserID    uuid.UUID
	ServiceID uuid.UUID
	Months    int
	Method    PaymentMethod
	// ExpectedTotal is the amount the seller was shown. Zero skips the check.
	ExpectedTotal int64
}

// StartResult is the outcome of StartSubscription.
type StartResult struct {
	Subscription       Subscription        `json:"subscription"`
	Payment            Payment             `json:"payment"`
	Quote              pricing.Quote       `json:"quote"`
	Bank               *BankAccount        `json:"bank,omitempty"`
	DepositorReference string              `json:"depositorReference,omitempty"`
	Credit             *credit.SpendResult `json:"credit,omitempty"`
}

// chargeAmount is what the seller pays up front. Credit payments carry no VAT.
func chargeAmount(q pricing.Quote, method PaymentMethod) int64 {
	if method == MethodCredit {
		return q.TotalSupplyPrice
	}
	return q.TotalPrice
}

// StartSubscription opens a subscription for one of the caller's services.
// Bank transfers leave it pending until an admin confirms the deposit; credit payments activate it immediately.
func (s *Service) StartSubscription(ctx context.Context, in StartInput) (StartResult, error) {
	res, err := s.startSubscription(ctx, in)
	if obs.AdSubscriptionStartedTotal != nil {
		obs.AdSubscriptionStartedTotal.WithLabelValues(string(in.Method), resultLabel(err)).Inc()
	}
	return res, err
}

func (s *Service) startSubscription(ctx context.Context, in StartInput) (StartResult, error) {
	if !in.Method.Valid() {
		return StartResult{}, ErrInvalidMethod
	}
	quote, err := s.Pricing.QuoteOffered(in.Months)
	if err != nil {
		return StartResult{}, err
	}
	charge := chargeAmount(quote, in.Method)
	if in.ExpectedTotal > 0 && in.ExpectedTotal != charge {
		return StartResult{}, fmt.Errorf("%w: expected %d, quoted %d", ErrAmountMismatch, in.ExpectedTotal, charge)
	}

	now := s.now()
	res := StartResult{Quote: quote}
	var (
		seller  Seller
		service ServiceInfo
	)
	err = s.Store.InTx(ctx, func(tx Tx) error {
		var err error
		seller, err = tx.SellerForUser(ctx, in.UserID)
		if err != nil {
			return err
		}
		service, err = tx.LockService(ctx, in.ServiceID)
		if err != nil {
			return err
		}
		if service.SellerID != seller.ID {
			return ErrForbidden
		}
		open, err := tx.OpenSubscription(ctx, in.ServiceID)
		switch {
		case err == nil && open.Status == StatusPendingPayment:
			return ErrPaymentPending
		case err == nil:
			return ErrAlreadyAdvertised
		case !errors.Is(err, ErrNotFound):
			return err
		}

		sub := Subscription{
			SellerID:        seller.ID,
			ServiceID:       in.ServiceID,
			Months:          in.Months,
			MonthlyPrice:    quote.MonthlySupplyPrice,
			SupplyAmount:    quote.TotalSupplyPrice,
			TaxAmount:       charge - quote.TotalSupplyPrice,
			TotalAmount:     charge,
			PaymentMethod:   in.Method,
			NextBillingDate: AddMonths(dayOf(now), in.Months),
		}
		pay := Payment{
			SellerID:      seller.ID,
			Amount:        charge,
			SupplyAmount:  quote.TotalSupplyPrice,
			TaxAmount:     charge - quote.TotalSupplyPrice,
			PaymentMethod: in.Method,
		}
		switch in.Method {
		case MethodBankTransfer:
			deadline := now.Add(s.deadline())
			sub.Status = StatusPendingPayment
			sub.BankTransferDeadline = &deadline
			pay.Status = PaymentPending
		case MethodCredit:
			sub.Status = StatusActive
			sub.LastBilledAt = &now
			pay.Status = PaymentCompleted
			pay.PaidAt = &now
			pay.ConfirmedAt = &now
		}

		sub, err = tx.InsertSubscription(ctx, sub)
		if err != nil {
			return err
		}
		if in.Method == MethodCredit {
			spent, err := credit.SpendWith(ctx, tx.Credits(), seller.ID, charge, credit.Reference{
				Type:        "advertising_subscription",
				ID:          sub.ID,
				Description: fmt.Sprintf("advertising %s for %d months", service.Title, in.Months),
			}, now)
			if err != nil {
				return err
			}
			res.Credit = &spent
		}
		pay.SubscriptionID = sub.ID
		pay, err = tx.InsertPayment(ctx, pay)
		if err != nil {
			return err
		}
		res.Subscription = sub
		res.Payment = pay
		return nil
	})
	if err != nil {
		return StartResult{}, err
	}

	if in.Method == MethodBankTransfer {
		bank := s.Bank
		res.Bank = &bank
		res.DepositorReference = DepositorReference(seller.DisplayName, res.Payment.ID)
		s.emit(ctx, events.TopicPaymentRequested, res.Payment.ID, map[string]any{
			"userId":             seller.UserID.String(),
			"subscriptionId":     res.Subscription.ID.String(),
			"paymentId":          res.Payment.ID.String(),
			"serviceTitle":       service.Title,
			"months":             in.Months,
			"amount":             res.Payment.Amount,
			"bankName":           s.Bank.Name,
			"bankAccount":        s.Bank.Number,
			"bankHolder":         s.Bank.Holder,
			"deadline":           res.Subscription.BankTransferDeadline.Format(time.RFC3339),
			"depositorReference": res.DepositorReference,
		})
		return res, nil
	}
	s.emit(ctx, events.TopicSubscriptionStarted, res.Subscription.ID, map[string]any{
		"userId":         seller.UserID.String(),
		"subscriptionId": res.Subscription.ID.String(),
		"serviceTitle":   service.Title,
		"months":         in.Months,
		"amount":         res.Payment.Amount,
	})
	return res, nil
}

// DepositorReference is the name sellers put on their transfer so admins can match it to the payment.
func DepositorReference(name string, paymentID uuid.UUID) string {
	if name == "" {
		name = "NAME"
	}
	return name + "-" + paymentID.String()[:8]
}

// CancelSubscription cancels one of the caller's open subscriptions along with its pending payments.
func (s *Service) CancelSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (Subscription, error) {
	now := s.now()
	var (
		sub    Subscription
		seller Seller
	)
	err := s.Store.InTx(ctx, func(tx Tx) error {
		var err error
		seller, err = tx.SellerForUser(ctx, userID)
		if err != nil {
			return err
		}
		sub, err = tx.LockSubscription(ctx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.SellerID != seller.ID {
			return ErrForbidden
		}
		if !sub.Status.Open() {
			return fmt.Errorf("%w: subscription is %s", ErrInvalidStatus, sub.Status)
		}
		sub.Status = StatusCancelled
		sub.CancelledAt = &now
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
		return tx.CancelPendingPayments(ctx, sub.ID)
	})
	if err != nil {
		return Subscription{}, err
	}
	s.emit(ctx, events.TopicSubscriptionCancelled, sub.ID, map[string]any{
		"userId":         seller.UserID.String(),
		"subscriptionId": sub.ID.String(),
		"serviceTitle":   s.serviceTitle(ctx, sub.ServiceID),
	})
	return sub, nil
}

// DepositInput is what a seller reports after transferring money.
type DepositInput struct {
	DepositorName string
	BankName      string
	DepositedAt   time.Time
}

// SubmitDeposit records deposit details on the caller's pending bank-transfer payment.
func (s *Service) SubmitDeposit(ctx context.Context, userID, paymentID uuid.UUID, in DepositInput) (Payment, error) {
	var pay Payment
	err := s.Store.InTx(ctx, func(tx Tx) error {
		seller, err := tx.SellerForUser(ctx, userID)
		if err != nil {
			return err
		}
		pay, err = tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if pay.SellerID != seller.ID {
			return ErrForbidden
		}
		if pay.PaymentMethod != MethodBankTransfer || pay.Status != PaymentPending {
			return fmt.Errorf("%w: payment is %s %s", ErrInvalidStatus, pay.PaymentMethod, pay.Status)
		}
		name, bank, at := in.DepositorName, in.BankName, in.DepositedAt
		pay.DepositorName = &name
		pay.BankName = &bank
		pay.DepositedAt = &at
		return tx.UpdatePayment(ctx, pay)
	})
	return pay, err
}

// ListSubscriptions returns the caller's subscriptions, newest first.
func (s *Service) ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]SubscriptionView, error) {
	seller, err := s.Store.SellerForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	subs, err := s.Store.ListSubscriptionsBySeller(ctx, seller.ID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []SubscriptionView{}
	}
	return subs, nil
}

// PaymentDetail is a payment as shown to its seller.
type PaymentDetail struct {
	Payment
	Bank               *BankAccount `json:"bank,omitempty"`
	DepositorReference string       `json:"depositorReference,omitempty"`
}

// GetPayment returns one of the caller's payments. Pending transfers include the bank details.
func (s *Service) GetPayment(ctx context.Context, userID, paymentID uuid.UUID) (PaymentDetail, error) {
	seller, err := s.Store.SellerForUser(ctx, userID)
	if err != nil {
		return PaymentDetail{}, err
	}
	pay, err := s.Store.GetPayment(ctx, paymentID)
	if err != nil {
		return PaymentDetail{}, err
	}
	if pay.SellerID != seller.ID {
		return PaymentDetail{}, ErrForbidden
	}
	out := PaymentDetail{Payment: pay}
	if pay.PaymentMethod == MethodBankTransfer && pay.Status == PaymentPending {
		bank := s.Bank
		out.Bank = &bank
		out.DepositorReference = DepositorReference(seller.DisplayName, pay.ID)
	}
	return out, nil
}

// ConfirmResult is the outcome of ConfirmBankTransfer.
type ConfirmResult struct {
	Payment      Payment      `json:"payment"`
	Subscription Subscription `json:"subscription"`
	TaxInvoice   *TaxInvoice  `json:"taxInvoice,omitempty"`
}

// ConfirmBankTransfer marks a pending transfer as received, activates its subscription and issues the
// tax invoice when the seller has a business number. Everything happens in one transaction.
func (s *Service) ConfirmBankTransfer(ctx context.Context, adminUserID, paymentID uuid.UUID, memo string) (ConfirmResult, error) {
	now := s.now()
	var (
		res     ConfirmResult
		seller  Seller
		service ServiceInfo
	)
	err := s.Store.InTx(ctx, func(tx Tx) error {
		pay, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if pay.PaymentMethod != MethodBankTransfer || pay.Status != PaymentPending {
			return fmt.Errorf("%w: payment is %s %s", ErrInvalidStatus, pay.PaymentMethod, pay.Status)
		}
		sub, err := tx.LockSubscription(ctx, pay.SubscriptionID)
		if err != nil {
			return err
		}
		if sub.Status != StatusPendingPayment {
			return fmt.Errorf("%w: subscription is %s", ErrInvalidStatus, sub.Status)
		}
		seller, err = tx.SellerByID(ctx, pay.SellerID)
		if err != nil {
			return err
		}
		service, err = tx.GetService(ctx, sub.ServiceID)
		if err != nil {
			return err
		}

		pay.Status = PaymentCompleted
		pay.PaidAt = &now
		pay.ConfirmedAt = &now
		pay.ConfirmedBy = &adminUserID
		pay.AdminMemo = common.NilIfEmpty(memo)

		inv, issued, err := issueTaxInvoice(ctx, tx, pay, seller, service.Title, now)
		if err != nil {
			return fmt.Errorf("issue tax invoice: %w", err)
		}
		if issued {
			pay.TaxInvoiceID = &inv.ID
			res.TaxInvoice = &inv
		}
		if err := tx.UpdatePayment(ctx, pay); err != nil {
			return err
		}

		sub.Status = StatusActive
		sub.LastBilledAt = &now
		sub.NextBillingDate = AddMonths(dayOf(now), sub.Months)
		sub.ConfirmedAt = &now
		sub.ConfirmedBy = &adminUserID
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
		res.Payment = pay
		res.Subscription = sub
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	if obs.AdPaymentConfirmedTotal != nil {
		obs.AdPaymentConfirmedTotal.Inc()
	}
	payload := map[string]any{
		"userId":         seller.UserID.String(),
		"subscriptionId": res.Subscription.ID.String(),
		"paymentId":      res.Payment.ID.String(),
		"serviceTitle":   service.Title,
		"amount":         res.Payment.Amount,
	}
	if res.TaxInvoice != nil {
		payload["invoiceNumber"] = res.TaxInvoice.InvoiceNumber
	}
	s.emit(ctx, events.TopicPaymentConfirmed, res.Payment.ID, payload)
	return res, nil
}

// PaymentList is a page of payments for the admin console.
type PaymentList struct {
	Data       []PaymentView     `json:"data"`
	Pagination common.Pagination `json:"pagination"`
}

// ListPayments lists payments, optionally filtered by status.
func (s *Service) ListPayments(ctx context.Context, status string, page, perPage int) (PaymentList, error) {
	st := PaymentStatus(status)
	switch st {
	case "", PaymentPending, PaymentCompleted, PaymentCancelled:
	default:
		return PaymentList{}, fmt.Errorf("%w: unknown payment status %q", ErrInvalidStatus, status)
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > common.MaxPerPage {
		perPage = 20
	}
	rows, total, err := s.Store.ListPayments(ctx, st, perPage, common.Offset(page, perPage))
	if err != nil {
		return PaymentList{}, err
	}
	if rows == nil {
		rows = []PaymentView{}
	}
	return PaymentList{Data: rows, Pagination: common.NewPagination(page, perPage, total)}, nil
}

func (s *Service) serviceTitle(ctx context.Context, serviceID uuid.UUID) string {
	svc, err := s.Store.GetService(ctx, serviceID)
	if err != nil {
		return ""
	}
	return svc.Title
}

func (s *Service) emit(ctx context.Context, topic string, aggregate uuid.UUID, payload map[string]any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, aggregate, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Str("aggregate_id", aggregate.String()).Msg("emit advertising event")
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// dayOf truncates t to midnight in its own location.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddMonths adds n calendar months to day, clamping to the last day of the target month
// so 31 January plus one month is 28 or 29 February.
func AddMonths(day time.Time, n int) time.Time {
	y, m, d := day.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, day.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, day.Location())
}
