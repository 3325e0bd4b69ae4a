package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// AuditEntry is one recorded admin action.
type AuditEntry struct {
	ID         pgtype.UUID
	ActorID    pgtype.UUID
	Action     string
	Resource   string
	ResourceID pgtype.Text
	Method     string
	Path       string
	Status     int32
	IP         pgtype.Text
	RequestID  pgtype.Text
	Metadata   []byte
	CreatedAt  pgtype.Timestamptz
}

// InsertAuditEntryParams carries one audit row.
type InsertAuditEntryParams struct {
	ActorID    pgtype.UUID
	Action     string
	Resource   string
	ResourceID *string
	Method     string
	Path       string
	Status     int32
	IP         *string
	RequestID  *string
	Metadata   []byte
}

const auditColumns = `id, actor_id, action, resource, resource_id, method, path, status, ip, request_id, metadata, created_at`

// InsertAuditEntry appends one immutable audit row.
func (s *Store) InsertAuditEntry(ctx context.Context, arg InsertAuditEntryParams) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_entries (actor_id, action, resource, resource_id, method, path, status, ip, request_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		arg.ActorID, arg.Action, arg.Resource, textOrNull(arg.ResourceID),
		arg.Method, arg.Path, arg.Status, textOrNull(arg.IP), textOrNull(arg.RequestID), arg.Metadata)
	return err
}

// ListAuditEntries returns the newest entries first.
func (s *Store) ListAuditEntries(ctx context.Context, limit, offset int32) ([]AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+auditColumns+`
		FROM audit_entries
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Resource, &e.ResourceID, &e.Method,
			&e.Path, &e.Status, &e.IP, &e.RequestID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func textOrNull(value *string) pgtype.Text {
	if value == nil || *value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *value, Valid: true}
}
