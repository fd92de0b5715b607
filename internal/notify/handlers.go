package notify

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-jasa/internal/common"
)

// Handler exposes the caller's notifications.
type Handler struct {
	Store Store
}

// List returns the latest notifications; ?unread=true filters read ones out.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := h.Store.ListForUser(r.Context(), userID, r.URL.Query().Get("unread") == "true", limit)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load notifications", nil)
		return
	}
	if rows == nil {
		rows = []Listed{}
	}
	common.Data(w, http.StatusOK, rows)
}

// MarkRead flags one notification as read.
func (h Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid notification id", nil)
		return
	}
	if err := h.Store.MarkRead(r.Context(), userID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "notification not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to update notification", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
