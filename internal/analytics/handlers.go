package analytics

import (
	"net/http"
	"time"

	"github.com/noah-isme/backend-jasa/internal/common"
)

// Handler exposes analytics read endpoints.
type Handler struct {
	Svc *Service
}

// Statistics returns the advertising overview for the requested range.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.Overview(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.Data(w, http.StatusOK, out)
}

// Daily returns completed advertising revenue per day.
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	rows, err := h.Svc.DailyRevenue(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	if rows == nil {
		rows = []DailyRevenue{}
	}
	common.Data(w, http.StatusOK, rows)
}

func (h *Handler) parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	query := r.URL.Query()
	fromStr := query.Get("from")
	toStr := query.Get("to")
	var (
		from time.Time
		to   time.Time
		err  error
	)
	if fromStr != "" && toStr != "" {
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from date", nil)
			return from, to, false
		}
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to date", nil)
			return from, to, false
		}
	} else {
		days := h.Svc.DefaultRange
		if days <= 0 {
			days = 30
		}
		if raw := query.Get("days"); raw != "" {
			if parsed := common.AtoiDefault(raw, days); parsed > 0 {
				days = parsed
			}
		}
		from, to = h.Svc.DefaultWindow(days)
	}
	if !from.Before(to) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "from must be before to", nil)
		return from, to, false
	}
	return from, to, true
}
