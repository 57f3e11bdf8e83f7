package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/RecordGrid/internal/core"
)

// Audit actions.
const (
	AuditUpdate = "update"
	AuditDelete = "delete"
)

// DefaultAuditLimit caps audit history queries.
const DefaultAuditLimit = 50

// AuditEntry is one row of audit_log.
type AuditEntry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Object    string         `json:"object"`
	RecordID  string         `json:"recordId"`
	ViewID    string         `json:"viewId,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	IPAddress string         `json:"ipAddress,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type auditEntry struct {
	Action   string
	Object   string
	RecordID string
	Fields   map[string]any
}

// writeAudit records a mutation. Request metadata (view id, client IP and
// User-Agent) is taken from ctx.
func writeAudit(ctx context.Context, db DBTX, e auditEntry) error {
	_, err := db.Exec(ctx, `
		INSERT INTO audit_log (id, action, object, record_id, view_id, fields, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New().String(),
		e.Action,
		e.Object,
		e.RecordID,
		nullText(core.GetViewIDFromContext(ctx)),
		e.Fields,
		nullText(core.GetIPAddressFromContext(ctx)),
		nullText(core.GetUserAgentFromContext(ctx)),
	)
	if err != nil {
		return fmt.Errorf("audit %s %s: %w", e.Action, e.RecordID, err)
	}
	return nil
}

// RecordHistory returns the most recent audit entries for one record,
// newest first.
func (s *Store) RecordHistory(ctx context.Context, object, recordID string, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > DefaultAuditLimit {
		limit = DefaultAuditLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, action, object, record_id, view_id, fields, ip_address, user_agent, created_at
		FROM audit_log
		WHERE object = $1 AND record_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, object, recordID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}

	entries, err := pgx.CollectRows(rows, scanAuditRow)
	if err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	return entries, nil
}

func scanAuditRow(row pgx.CollectableRow) (AuditEntry, error) {
	var (
		e                     AuditEntry
		viewID, ip, userAgent pgtype.Text
	)
	err := row.Scan(&e.ID, &e.Action, &e.Object, &e.RecordID, &viewID, &e.Fields, &ip, &userAgent, &e.CreatedAt)
	if err != nil {
		return AuditEntry{}, err
	}
	e.ViewID = viewID.String
	e.IPAddress = ip.String
	e.UserAgent = userAgent.String
	return e, nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
