package obs

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Route areas used as a low-cardinality metric and log label.
const (
	AreaPublic    = "public"
	AreaAccount   = "account"
	AreaSeller    = "seller"
	AreaAdmin     = "admin"
	AreaOps       = "ops"
	AreaUnmatched = "unmatched"
)

type routeKey struct{}

// WithRoute pins the route template for requests handled outside the chi router.
func WithRoute(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routeKey{}, pattern)
}

// RouteOf returns the route template matched for r, or "" when nothing matched.
// chi only knows the full template once routing finished, so call it after next.ServeHTTP.
func RouteOf(r *http.Request) string {
	ctx := r.Context()
	if v, ok := ctx.Value(routeKey{}).(string); ok && v != "" {
		return v
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// RouteArea maps an /api/v1 route template onto the audience it serves.
func RouteArea(route string) string {
	switch {
	case route == "":
		return AreaUnmatched
	case strings.HasPrefix(route, "/api/v1/admin/"):
		return AreaAdmin
	case strings.HasPrefix(route, "/api/v1/seller/"):
		return AreaSeller
	case route == "/api/v1/me", strings.HasPrefix(route, "/api/v1/notifications"):
		return AreaAccount
	case strings.HasPrefix(route, "/api/v1/"):
		return AreaPublic
	default:
		return AreaOps
	}
}
