package audit

import (
	"net/http"
	"strings"

	"github.com/noah-isme/backend-jasa/internal/common"
)

// Handler serves the admin audit trail.
type Handler struct {
	Store Store
}

type listPage struct {
	Page    int  `json:"page"`
	PerPage int  `json:"perPage"`
	HasMore bool `json:"hasMore"`
}

// List returns audit entries newest first, filtered by ?action= and ?resourceType=.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	q := r.URL.Query()

	// One extra row tells whether another page exists without a COUNT.
	rows, err := h.Store.List(r.Context(), ListFilter{
		Action:       strings.TrimSpace(q.Get("action")),
		ResourceType: strings.TrimSpace(q.Get("resourceType")),
		Limit:        perPage + 1,
		Offset:       common.Offset(page, perPage),
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	more := len(rows) > perPage
	if more {
		rows = rows[:perPage]
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       rows,
		"pagination": listPage{Page: page, PerPage: perPage, HasMore: more},
	})
}
