package common

import "context"

type callerKey struct{}

// caller is the authenticated principal attached by the auth middleware.
type caller struct {
	userID string
	admin  bool
}

// WithUserID marks the request as made by userID. Admin status is dropped.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller{userID: id})
}

// WithAdmin records that the current caller passed the admin check.
func WithAdmin(ctx context.Context) context.Context {
	c, ok := ctx.Value(callerKey{}).(caller)
	if !ok || c.userID == "" {
		return ctx
	}
	c.admin = true
	return context.WithValue(ctx, callerKey{}, c)
}

// UserID returns the authenticated seller or admin user id.
func UserID(ctx context.Context) (string, bool) {
	c, ok := ctx.Value(callerKey{}).(caller)
	if !ok || c.userID == "" {
		return "", false
	}
	return c.userID, true
}

// IsAdmin reports whether an admin gate has already approved this caller.
func IsAdmin(ctx context.Context) bool {
	c, ok := ctx.Value(callerKey{}).(caller)
	return ok && c.admin
}
