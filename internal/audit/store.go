package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one row of the audit trail.
type Entry struct {
	ID           int64           `json:"id"`
	ActorKind    string          `json:"actorKind"`
	ActorUserID  *string         `json:"actorUserId,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   *string         `json:"resourceId,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Route        *string         `json:"route,omitempty"`
	Status       int             `json:"status"`
	IP           *string         `json:"ip,omitempty"`
	UserAgent    *string         `json:"userAgent,omitempty"`
	RequestID    *string         `json:"requestId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// ListFilter narrows the admin audit listing. Empty fields match everything.
type ListFilter struct {
	Action       string
	ResourceType string
	Limit        int
	Offset       int
}

// Store defines the database operations required for auditing.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, f ListFilter) ([]Entry, error)
}

// PGStore persists entries in audit_logs.
type PGStore struct {
	Pool *pgxpool.Pool
}

// Insert implements Store.
func (s PGStore) Insert(ctx context.Context, e Entry) error {
	_, err := s.Pool.Exec(ctx, `
INSERT INTO audit_logs (actor_kind, actor_user_id, action, resource_type, resource_id, method, path, route, status, ip, user_agent, request_id, metadata)
VALUES ($1, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ActorKind, e.ActorUserID, e.Action, e.ResourceType, e.ResourceID, e.Method, e.Path, e.Route,
		e.Status, e.IP, e.UserAgent, e.RequestID, e.Metadata)
	return err
}

// List implements Store, newest first.
func (s PGStore) List(ctx context.Context, f ListFilter) ([]Entry, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT id, actor_kind, actor_user_id::text, action, resource_type, resource_id, method, path, route, status, ip, user_agent, request_id, metadata, created_at
FROM audit_logs
WHERE ($3 = '' OR action = $3) AND ($4 = '' OR resource_type = $4)
ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, f.Limit, f.Offset, f.Action, f.ResourceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0, f.Limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorKind, &e.ActorUserID, &e.Action, &e.ResourceType, &e.ResourceID, &e.Method,
			&e.Path, &e.Route, &e.Status, &e.IP, &e.UserAgent, &e.RequestID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
