package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-jasa/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// AdminChecker reports whether a user may use the admin surface.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// PGAdmins looks users up in the admins table.
type PGAdmins struct {
	Pool *pgxpool.Pool
}

// IsAdmin implements AdminChecker.
func (p PGAdmins) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var ok bool
	err := p.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM admins WHERE user_id = $1::uuid)`, userID).Scan(&ok)
	return ok, err
}

// Middleware wires authentication context into HTTP handlers.
type Middleware struct {
	Verifier *Verifier
	Admins   AdminChecker
}

// RequireAuth enforces that a valid token is present before executing the next handler.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			if errors.Is(err, errNoToken) {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
				return
			}
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				status := appErr.HTTPStatus
				if status == 0 {
					status = http.StatusUnauthorized
				}
				common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireAuth.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Admins == nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "role validator not configured", nil)
			return
		}
		userID, ok := common.UserID(r.Context())
		if !ok {
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "forbidden", nil)
			return
		}
		admin, err := m.Admins.IsAdmin(r.Context(), userID)
		if err != nil || !admin {
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithAdmin(r.Context())))
	})
}

// Me reports who the caller is.
func (m Middleware) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	admin := common.IsAdmin(r.Context())
	if !admin && m.Admins != nil {
		admin, _ = m.Admins.IsAdmin(r.Context(), userID)
	}
	common.JSON(w, http.StatusOK, map[string]any{"userId": userID, "isAdmin": admin})
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	if m.Verifier == nil {
		return r.Context(), errors.New("auth: verifier not configured")
	}
	token := extractToken(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	userID, err := m.Verifier.ParseAccessToken(token)
	if err != nil {
		return r.Context(), err
	}
	return common.WithUserID(r.Context(), userID), nil
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
