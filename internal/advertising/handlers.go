package advertising

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-jasa/internal/common"
	"github.com/noah-isme/backend-jasa/internal/credit"
	"github.com/noah-isme/backend-jasa/internal/pricing"
)

// Handler exposes the public and seller advertising endpoints.
type Handler struct {
	Svc *Service
}

type startRequest struct {
	ServiceID     string `json:"serviceId" validate:"required,uuid"`
	Months        int    `json:"months" validate:"required,min=1"`
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=bank_transfer credit"`
	ExpectedTotal int64  `json:"expectedTotal" validate:"min=0"`
}

type depositRequest struct {
	DepositorName string    `json:"depositorName" validate:"required,max=50"`
	BankName      string    `json:"bankName" validate:"required,max=50"`
	DepositedAt   time.Time `json:"depositedAt" validate:"required"`
}

// Quotes returns the price list for every offered term.
func (h Handler) Quotes(w http.ResponseWriter, r *http.Request) {
	common.Data(w, http.StatusOK, h.Svc.Quotes())
}

// Quote prices a single term given by ?months=.
func (h Handler) Quote(w http.ResponseWriter, r *http.Request) {
	months, err := strconv.Atoi(r.URL.Query().Get("months"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "months must be an integer", nil)
		return
	}
	q, err := h.Svc.Quote(months)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

// CategoryServices lists a category's services in random order with advertised ones flagged.
func (h Handler) CategoryServices(w http.ResponseWriter, r *http.Request) {
	categoryID, err := uuid.Parse(chi.URLParam(r, "categoryId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid category id", nil)
		return
	}
	page, err := intParam(r, "page", 1)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_PAGE", err.Error(), nil)
		return
	}
	pageSize, err := intParam(r, "pageSize", 12)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_PAGE", err.Error(), nil)
		return
	}
	out, err := h.Svc.CategoryPage(r.Context(), PageRequest{
		CategoryID: categoryID,
		Page:       page,
		PageSize:   pageSize,
		ViewerKey:  common.Fingerprint(common.ClientIP(r), r.UserAgent()),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, out)
}

// Click records a click on an impression.
func (h Handler) Click(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "impressionId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid impression id", nil)
		return
	}
	counted, err := h.Svc.RecordClick(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]bool{"counted": counted})
}

// ListSubscriptions returns the caller's subscriptions.
func (h Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	subs, err := h.Svc.ListSubscriptions(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, subs)
}

// Start opens a subscription.
func (h Handler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req startRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	res, err := h.Svc.StartSubscription(r.Context(), StartInput{
		UserID:        userID,
		ServiceID:     uuid.MustParse(req.ServiceID),
		Months:        req.Months,
		Method:        PaymentMethod(req.PaymentMethod),
		ExpectedTotal: req.ExpectedTotal,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, res)
}

// Cancel cancels one of the caller's subscriptions.
func (h Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid subscription id", nil)
		return
	}
	sub, err := h.Svc.CancelSubscription(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, sub)
}

// GetPayment returns one of the caller's payments.
func (h Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid payment id", nil)
		return
	}
	pay, err := h.Svc.GetPayment(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, pay)
}

// SubmitDeposit records the seller's transfer details.
func (h Handler) SubmitDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid payment id", nil)
		return
	}
	var req depositRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	pay, err := h.Svc.SubmitDeposit(r.Context(), userID, id, DepositInput(req))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, pay)
}

func callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, _ := common.UserID(r.Context())
	id, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return uuid.Nil, false
	}
	return id, true
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

func writeError(w http.ResponseWriter, err error) {
	var shortfall *credit.ShortfallError
	switch {
	case errors.As(err, &shortfall):
		common.JSONError(w, http.StatusPaymentRequired, "INSUFFICIENT_CREDIT", "insufficient credit balance", map[string]int64{
			"required":  shortfall.Required,
			"available": shortfall.Available,
			"shortfall": shortfall.Shortfall(),
		})
	case errors.Is(err, pricing.ErrInvalidArgument):
		common.JSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
	case errors.Is(err, pricing.ErrUnsupportedTerm):
		common.JSONError(w, http.StatusBadRequest, "UNSUPPORTED_TERM", err.Error(), nil)
	case errors.Is(err, ErrInvalidMethod):
		common.JSONError(w, http.StatusBadRequest, "INVALID_PAYMENT_METHOD", "payment method must be bank_transfer or credit", nil)
	case errors.Is(err, ErrInvalidPage):
		common.JSONError(w, http.StatusBadRequest, "INVALID_PAGE", err.Error(), nil)
	case errors.Is(err, ErrAmountMismatch):
		common.JSONError(w, http.StatusConflict, "AMOUNT_MISMATCH", err.Error(), nil)
	case errors.Is(err, ErrAlreadyAdvertised):
		common.JSONError(w, http.StatusConflict, "ALREADY_ADVERTISED", "service is already advertised", nil)
	case errors.Is(err, ErrPaymentPending):
		common.JSONError(w, http.StatusConflict, "PAYMENT_PENDING", "a payment is already pending for this service", nil)
	case errors.Is(err, ErrInvalidStatus):
		common.JSONError(w, http.StatusConflict, "INVALID_STATUS", err.Error(), nil)
	case errors.Is(err, ErrForbidden):
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "not allowed", nil)
	case errors.Is(err, ErrSellerNotFound):
		common.JSONError(w, http.StatusForbidden, "SELLER_REQUIRED", "a seller account is required", nil)
	case errors.Is(err, ErrServiceNotFound):
		common.JSONError(w, http.StatusNotFound, "SERVICE_NOT_FOUND", "service not found", nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "not found", nil)
	case errors.Is(err, ErrCompanyInfo):
		common.JSONError(w, http.StatusInternalServerError, "COMPANY_INFO_MISSING", "company info is not configured", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "advertising operation failed", nil)
	}
}
