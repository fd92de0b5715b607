package advertising

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-jasa/internal/credit"
	"github.com/noah-isme/backend-jasa/internal/events"
)

// ChargeResult is what happened to one subscription during monthly billing.
type ChargeResult string

const (
	ChargeCharged ChargeResult = "charged"
	ChargeFailed  ChargeResult = "insufficient"
	ChargeSkipped ChargeResult = "skipped"
)

// ChargeOutcome reports a monthly charge.
type ChargeOutcome struct {
	Result    ChargeResult
	Payment   *Payment
	Shortfall int64
}

// DueForBilling lists active subscriptions whose next billing date has arrived.
func (s *Service) DueForBilling(ctx context.Context, now time.Time, limit int) ([]Subscription, error) {
	return s.Store.DueSubscriptions(ctx, dayOf(now), limit)
}

// ChargeMonthly bills one month of a due subscription from the seller's credits. A short balance
// moves the subscription to pending_payment instead of failing.
func (s *Service) ChargeMonthly(ctx context.Context, subscriptionID uuid.UUID, now time.Time) (ChargeOutcome, error) {
	var (
		out    ChargeOutcome
		sub    Subscription
		seller Seller
	)
	err := s.Store.InTx(ctx, func(tx Tx) error {
		var err error
		sub, err = tx.LockSubscription(ctx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.Status != StatusActive || sub.NextBillingDate.After(dayOf(now)) {
			out.Result = ChargeSkipped
			return nil
		}
		seller, err = tx.SellerByID(ctx, sub.SellerID)
		if err != nil {
			return err
		}
		_, err = credit.SpendWith(ctx, tx.Credits(), sub.SellerID, sub.MonthlyPrice, credit.Reference{
			Type:        "advertising_subscription",
			ID:          sub.ID,
			Description: "monthly advertising fee",
		}, now)
		var shortfall *credit.ShortfallError
		if errors.As(err, &shortfall) {
			sub.Status = StatusPendingPayment
			out.Result = ChargeFailed
			out.Shortfall = shortfall.Shortfall()
			return tx.UpdateSubscription(ctx, sub)
		}
		if err != nil {
			return err
		}
		pay, err := tx.InsertPayment(ctx, Payment{
			SubscriptionID: sub.ID,
			SellerID:       sub.SellerID,
			Amount:         sub.MonthlyPrice,
			SupplyAmount:   sub.MonthlyPrice,
			PaymentMethod:  MethodCredit,
			Status:         PaymentCompleted,
			PaidAt:         &now,
			ConfirmedAt:    &now,
		})
		if err != nil {
			return err
		}
		sub.LastBilledAt = &now
		sub.NextBillingDate = AddMonths(sub.NextBillingDate, 1)
		out.Result = ChargeCharged
		out.Payment = &pay
		return tx.UpdateSubscription(ctx, sub)
	})
	if err != nil {
		return ChargeOutcome{}, err
	}

	switch out.Result {
	case ChargeCharged:
		s.emit(ctx, events.TopicBillingCharged, sub.ID, map[string]any{
			"userId":          seller.UserID.String(),
			"subscriptionId":  sub.ID.String(),
			"paymentId":       out.Payment.ID.String(),
			"serviceTitle":    s.serviceTitle(ctx, sub.ServiceID),
			"amount":          sub.MonthlyPrice,
			"nextBillingDate": sub.NextBillingDate.Format(time.DateOnly),
		})
	case ChargeFailed:
		s.emit(ctx, events.TopicBillingFailed, sub.ID, map[string]any{
			"userId":         seller.UserID.String(),
			"subscriptionId": sub.ID.String(),
			"serviceTitle":   s.serviceTitle(ctx, sub.ServiceID),
			"amount":         sub.MonthlyPrice,
			"shortfall":      out.Shortfall,
		})
	}
	return out, nil
}

// ExpiredBankTransfers lists pending transfers whose deadline has passed.
func (s *Service) ExpiredBankTransfers(ctx context.Context, now time.Time, limit int) ([]Payment, error) {
	return s.Store.ExpiredBankTransfers(ctx, now, limit)
}

// ExpireBankTransfer cancels an overdue transfer and expires its subscription.
// It reports false when the payment was no longer pending.
func (s *Service) ExpireBankTransfer(ctx context.Context, paymentID uuid.UUID, now time.Time) (bool, error) {
	var (
		pay    Payment
		sub    Subscription
		seller Seller
	)
	err := s.Store.InTx(ctx, func(tx Tx) error {
		var err error
		pay, err = tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if pay.Status != PaymentPending {
			return errSkip
		}
		pay.Status = PaymentCancelled
		if err := tx.UpdatePayment(ctx, pay); err != nil {
			return err
		}
		sub, err = tx.LockSubscription(ctx, pay.SubscriptionID)
		if err != nil {
			return err
		}
		if sub.Status == StatusPendingPayment {
			sub.Status = StatusExpired
			sub.ExpiresAt = &now
			if err := tx.UpdateSubscription(ctx, sub); err != nil {
				return err
			}
		}
		seller, err = tx.SellerByID(ctx, pay.SellerID)
		return err
	})
	if errors.Is(err, errSkip) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.emit(ctx, events.TopicPaymentExpired, pay.ID, map[string]any{
		"userId":         seller.UserID.String(),
		"subscriptionId": sub.ID.String(),
		"paymentId":      pay.ID.String(),
		"serviceTitle":   s.serviceTitle(ctx, sub.ServiceID),
		"amount":         pay.Amount,
	})
	return true, nil
}

var errSkip = errors.New("advertising: skip")
