package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-jasa/internal/common"
	"github.com/noah-isme/backend-jasa/internal/obs"
)

// HTTPRecorder writes an audit entry for each admin mutation once its handler returns.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// HTTPConfig names the action recorded for one route.
type HTTPConfig struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
	// MetadataFunc receives the final status; nil falls back to the raw query.
	MetadataFunc func(*http.Request, int) map[string]any
}

func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if r.Service == nil || !r.Service.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rec := obs.NewStatusRecorder(w)
			next.ServeHTTP(rec, req)

			var resourceID string
			if cfg.ResourceIDParam != "" {
				resourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}
			var metadata []byte
			if cfg.MetadataFunc != nil {
				if payload := cfg.MetadataFunc(req, rec.Status()); payload != nil {
					metadata, _ = json.Marshal(payload)
				}
			}

			err := r.Service.Record(req.Context(), actorOf(req), cfg.Action, cfg.ResourceType, resourceID, req, rec.Status(), metadata)
			if err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

// actorOf maps the authenticated caller to an audit actor; callers that passed
// RequireAdmin are recorded as admins.
func actorOf(req *http.Request) Actor {
	userID, ok := common.UserID(req.Context())
	if !ok {
		return Actor{Kind: ActorKindAnonymous}
	}
	if common.IsAdmin(req.Context()) {
		return Actor{Kind: ActorKindAdmin, UserID: &userID}
	}
	return Actor{Kind: ActorKindUser, UserID: &userID}
}
