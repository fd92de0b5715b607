package credit

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-jasa/internal/common"
)

// API is the part of Service the handlers need.
type API interface {
	GrantLaunchPromotion(ctx context.Context, sellerID uuid.UUID) (Credit, error)
	BalanceForUser(ctx context.Context, userID uuid.UUID) (Summary, []Transaction, error)
}

// Handler exposes credit endpoints.
type Handler struct {
	Svc API
}

type grantRequest struct {
	SellerID string `json:"sellerId" validate:"required,uuid"`
}

// Mine returns the caller's balance, usable credits and latest ledger rows.
func (h Handler) Mine(w http.ResponseWriter, r *http.Request) {
	raw, _ := common.UserID(r.Context())
	userID, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	sum, txs, err := h.Svc.BalanceForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"balance":      sum.Balance,
		"credits":      sum.Credits,
		"transactions": txs,
	}})
}

// GrantLaunchPromotion gives a seller the launch credit (admin).
func (h Handler) GrantLaunchPromotion(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.Svc.GrantLaunchPromotion(r.Context(), uuid.MustParse(req.SellerID))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, c)
}

func writeError(w http.ResponseWriter, err error) {
	var shortfall *ShortfallError
	switch {
	case errors.As(err, &shortfall):
		common.JSONError(w, http.StatusPaymentRequired, "INSUFFICIENT_CREDIT", "insufficient credit balance", map[string]int64{
			"required":  shortfall.Required,
			"available": shortfall.Available,
			"shortfall": shortfall.Shortfall(),
		})
	case errors.Is(err, ErrSellerNotFound):
		common.JSONError(w, http.StatusNotFound, "SELLER_NOT_FOUND", "seller account not found", nil)
	case errors.Is(err, ErrAlreadyGranted):
		common.JSONError(w, http.StatusConflict, "ALREADY_GRANTED", "launch promotion already granted", nil)
	case errors.Is(err, ErrInvalidAmount):
		common.JSONError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "credit operation failed", nil)
	}
}
