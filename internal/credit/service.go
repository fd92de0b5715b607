package credit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jasa/internal/events"
	"github.com/noah-isme/backend-jasa/internal/obs"
)

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Service manages advertising credits.
type Service struct {
	Store       Store
	Events      Emitter
	PromoAmount int64
	PromoMonths int
	Now         func() time.Time
	Logger      zerolog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// GrantLaunchPromotion gives the seller the launch credit. Each seller receives it at most once.
func (s *Service) GrantLaunchPromotion(ctx context.Context, sellerID uuid.UUID) (Credit, error) {
	if s.PromoAmount <= 0 || s.PromoMonths <= 0 {
		return Credit{}, ErrInvalidAmount
	}
	now := s.now()
	expires := now.AddDate(0, s.PromoMonths, 0)
	var granted Credit
	var userID uuid.UUID
	err := s.Store.InTx(ctx, func(q Queries) error {
		var err error
		userID, err = q.SellerUserID(ctx, sellerID)
		if err != nil {
			return err
		}
		exists, err := q.HasPromotion(ctx, sellerID, PromotionLaunch)
		if err != nil {
			return fmt.Errorf("check promotion: %w", err)
		}
		if exists {
			return ErrAlreadyGranted
		}
		balance, err := usableBalance(ctx, q, sellerID, now)
		if err != nil {
			return err
		}
		granted, err = q.InsertCredit(ctx, Credit{
			SellerID:      sellerID,
			Amount:        s.PromoAmount,
			InitialAmount: s.PromoAmount,
			PromotionType: PromotionLaunch,
			ExpiresAt:     &expires,
		})
		if err != nil {
			return err
		}
		return q.InsertTransaction(ctx, Transaction{
			CreditID:      granted.ID,
			SellerID:      sellerID,
			Kind:          TxEarned,
			Amount:        s.PromoAmount,
			BalanceAfter:  balance + s.PromoAmount,
			Description:   fmt.Sprintf("launch promotion: %d months of free advertising", s.PromoMonths),
			ReferenceType: "promotion",
		})
	})
	if err != nil {
		return Credit{}, err
	}
	s.emit(ctx, events.TopicCreditGranted, granted.ID, map[string]any{
		"userId":    userID.String(),
		"sellerId":  sellerID.String(),
		"creditId":  granted.ID.String(),
		"amount":    granted.Amount,
		"expiresAt": expires.Format(time.RFC3339),
	})
	return granted, nil
}

// Balance returns the usable balance for a seller.
func (s *Service) Balance(ctx context.Context, sellerID uuid.UUID) (Summary, error) {
	credits, err := s.Store.ListUsableCredits(ctx, sellerID, s.now())
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{SellerID: sellerID, Credits: credits}
	if sum.Credits == nil {
		sum.Credits = []Credit{}
	}
	for _, c := range credits {
		sum.Balance += c.Amount
	}
	return sum, nil
}

// BalanceForUser resolves the caller's seller account and returns its balance with recent ledger rows.
func (s *Service) BalanceForUser(ctx context.Context, userID uuid.UUID) (Summary, []Transaction, error) {
	sellerID, err := s.Store.SellerIDForUser(ctx, userID)
	if err != nil {
		return Summary{}, nil, err
	}
	sum, err := s.Balance(ctx, sellerID)
	if err != nil {
		return Summary{}, nil, err
	}
	txs, err := s.Store.ListTransactions(ctx, sellerID, 50)
	if err != nil {
		return Summary{}, nil, err
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return sum, txs, nil
}

// Spend takes amount from the seller's credits in its own transaction.
func (s *Service) Spend(ctx context.Context, sellerID uuid.UUID, amount int64, ref Reference) (SpendResult, error) {
	var res SpendResult
	err := s.Store.InTx(ctx, func(q Queries) error {
		var err error
		res, err = SpendWith(ctx, q, sellerID, amount, ref, s.now())
		return err
	})
	return res, err
}

// SpendWith takes amount from the seller's usable credits, soonest expiry first, using q so callers
// can include the spend in their own transaction. Nothing is written unless the whole amount is covered.
func SpendWith(ctx context.Context, q Queries, sellerID uuid.UUID, amount int64, ref Reference, now time.Time) (SpendResult, error) {
	if amount <= 0 {
		return SpendResult{}, ErrInvalidAmount
	}
	credits, err := q.LockUsableCredits(ctx, sellerID, now)
	if err != nil {
		return SpendResult{}, err
	}
	var available int64
	for _, c := range credits {
		if c.Usable(now) {
			available += c.Amount
		}
	}
	if available < amount {
		return SpendResult{}, &ShortfallError{Required: amount, Available: available}
	}

	res := SpendResult{Spent: amount}
	remaining := amount
	balance := available
	for _, c := range credits {
		if remaining == 0 {
			break
		}
		if !c.Usable(now) {
			continue
		}
		use := min(c.Amount, remaining)
		if err := q.UpdateCreditBalance(ctx, c.ID, c.Amount-use, c.UsedAmount+use); err != nil {
			return SpendResult{}, fmt.Errorf("update credit: %w", err)
		}
		balance -= use
		refID := ref.ID
		if err := q.InsertTransaction(ctx, Transaction{
			CreditID:      c.ID,
			SellerID:      sellerID,
			Kind:          TxSpent,
			Amount:        -use,
			BalanceAfter:  balance,
			Description:   ref.Description,
			ReferenceType: ref.Type,
			ReferenceID:   &refID,
		}); err != nil {
			return SpendResult{}, fmt.Errorf("record spend: %w", err)
		}
		res.Allocations = append(res.Allocations, Allocation{CreditID: c.ID, Amount: use})
		remaining -= use
	}
	res.BalanceAfter = balance
	if obs.AdCreditSpentTotal != nil {
		obs.AdCreditSpentTotal.Add(float64(amount))
	}
	return res, nil
}

// Expired describes one credit zeroed by ExpireDue.
type Expired struct {
	Credit   Credit
	Amount   int64
	UserID   uuid.UUID
	SellerID uuid.UUID
}

// ExpireDue zeroes credits whose expiry has passed, moving the remainder to used, and records an expired ledger row for each.
func (s *Service) ExpireDue(ctx context.Context, batch int) ([]Expired, error) {
	if batch <= 0 {
		batch = 500
	}
	now := s.now()
	var out []Expired
	err := s.Store.InTx(ctx, func(q Queries) error {
		credits, err := q.LockExpiredCredits(ctx, now, batch)
		if err != nil {
			return err
		}
		for _, c := range credits {
			if err := q.UpdateCreditBalance(ctx, c.ID, 0, c.UsedAmount+c.Amount); err != nil {
				return fmt.Errorf("expire credit %s: %w", c.ID, err)
			}
			balance, err := usableBalance(ctx, q, c.SellerID, now)
			if err != nil {
				return err
			}
			if err := q.InsertTransaction(ctx, Transaction{
				CreditID:      c.ID,
				SellerID:      c.SellerID,
				Kind:          TxExpired,
				Amount:        -c.Amount,
				BalanceAfter:  balance,
				Description:   "credit expired",
				ReferenceType: "expiry",
			}); err != nil {
				return err
			}
			userID, err := q.SellerUserID(ctx, c.SellerID)
			if err != nil && !errors.Is(err, ErrSellerNotFound) {
				return err
			}
			out = append(out, Expired{Credit: c, Amount: c.Amount, UserID: userID, SellerID: c.SellerID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, e := range out {
		s.emit(ctx, events.TopicCreditExpired, e.Credit.ID, map[string]any{
			"userId":   e.UserID.String(),
			"sellerId": e.SellerID.String(),
			"creditId": e.Credit.ID.String(),
			"amount":   e.Amount,
		})
	}
	return out, nil
}

func usableBalance(ctx context.Context, q Queries, sellerID uuid.UUID, now time.Time) (int64, error) {
	credits, err := q.ListUsableCredits(ctx, sellerID, now)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, c := range credits {
		total += c.Amount
	}
	return total, nil
}

func (s *Service) emit(ctx context.Context, topic string, aggregate uuid.UUID, payload map[string]any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, aggregate, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Msg("emit credit event")
	}
}
