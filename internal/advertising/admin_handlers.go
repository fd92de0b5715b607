package advertising

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-jasa/internal/common"
)

// AdminHandler exposes payment administration.
type AdminHandler struct {
	Svc *Service
}

type confirmRequest struct {
	Memo string `json:"memo" validate:"max=500"`
}

// ListPayments lists payments filtered by ?status=.
func (h AdminHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	out, err := h.Svc.ListPayments(r.Context(), r.URL.Query().Get("status"), page, perPage)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, out)
}

// Confirm marks a bank transfer as received.
func (h AdminHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid payment id", nil)
		return
	}
	var req confirmRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &req); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	res, err := h.Svc.ConfirmBankTransfer(r.Context(), adminID, id, req.Memo)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}
