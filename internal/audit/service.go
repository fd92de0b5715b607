package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-jasa/internal/common"
	"github.com/noah-isme/backend-jasa/internal/obs"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	// ActorKindUser represents an authenticated end-user.
	ActorKindUser ActorKind = "user"
	// ActorKindAdmin represents a user acting through the admin surface.
	ActorKindAdmin ActorKind = "admin"
	// ActorKindSystem represents internal automated actions.
	ActorKindSystem ActorKind = "system"
	// ActorKindAnonymous represents unauthenticated actors.
	ActorKindAnonymous ActorKind = "anonymous"
)

// Actor describes the entity performing the action.
type Actor struct {
	Kind   ActorKind
	UserID *string
}

// Service persists audit logs for admin actions.
type Service struct {
	Store   Store
	Enabled bool
}

// Record persists an audit log entry when auditing is enabled.
func (s Service) Record(ctx context.Context, actor Actor, action, resourceType, resourceID string, req *http.Request, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RouteOf(req)
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}

	finalStatus := status
	if finalStatus == 0 {
		finalStatus = http.StatusOK
	}

	return s.Store.Insert(ctx, Entry{
		ActorKind:    string(normalizeActorKind(actor.Kind)),
		ActorUserID:  validUUID(sanitizeString(actor.UserID)),
		Action:       buildAction(action, req.Method, route),
		ResourceType: buildResource(resourceType, route),
		ResourceID:   pointerOf(resourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Route:        pointerOf(route),
		Status:       finalStatus,
		IP:           pointerOf(common.ClientIP(req)),
		UserAgent:    pointerOf(req.Header.Get("User-Agent")),
		RequestID:    pointerOf(req.Header.Get("X-Request-ID")),
		Metadata:     toJSONB(metadata, req.URL.RawQuery),
	})
}

func buildAction(action, method, route string) string {
	trimmed := strings.TrimSpace(action)
	if trimmed != "" {
		return trimmed
	}
	target := route
	if target == "" {
		target = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + target
}

func buildResource(resourceType, route string) string {
	trimmed := strings.TrimSpace(resourceType)
	if trimmed != "" {
		return trimmed
	}
	route = strings.TrimSpace(route)
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(strings.Trim(route, "/"), "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		segments = segments[2:]
	}
	kept := segments[:0]
	for _, seg := range segments {
		if strings.HasPrefix(seg, "{") {
			continue
		}
		kept = append(kept, seg)
	}
	return strings.Join(kept, ".")
}

func normalizeActorKind(kind ActorKind) ActorKind {
	switch kind {
	case ActorKindUser, ActorKindAdmin, ActorKindSystem:
		return kind
	default:
		return ActorKindAnonymous
	}
}

func sanitizeString(value *string) *string {
	if value == nil {
		return nil
	}
	return pointerOf(*value)
}

func pointerOf(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func validUUID(value *string) *string {
	if value == nil {
		return nil
	}
	if _, err := uuid.Parse(*value); err != nil {
		return nil
	}
	return value
}

func toJSONB(metadata []byte, query string) []byte {
	if len(metadata) > 0 {
		return metadata
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	data, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil
	}
	return data
}
