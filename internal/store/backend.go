package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/RecordGrid/internal/core"
)

// ErrRecordNotFound is returned when a mutation targets a missing record.
var ErrRecordNotFound = errors.New("record not found")

// viewBackend serves one view definition. It implements core.TxMutator.
type viewBackend struct {
	pool *pgxpool.Pool
	def  core.ViewDefinition
	q    *queries
}

var _ core.TxMutator = (*viewBackend)(nil)

// FetchCount returns the number of records in scope.
func (b *viewBackend) FetchCount(ctx context.Context, scope core.Scope) (int, error) {
	sql, args := b.q.count(scope)

	var n int64
	if err := b.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", b.def.Object, err)
	}
	return int(n), nil
}

// FetchPage returns the page after the cursor. The cursor's record must
// still exist, otherwise the error wraps core.ErrCursorNotFound.
func (b *viewBackend) FetchPage(ctx context.Context, scope core.Scope, after *core.Cursor, limit int) ([]core.Record, error) {
	if after != nil {
		sql, args := b.q.exists(after.LastID)
		var found bool
		if err := b.pool.QueryRow(ctx, sql, args...).Scan(&found); err != nil {
			return nil, fmt.Errorf("check cursor %s: %w", after.LastID, err)
		}
		if !found {
			return nil, fmt.Errorf("%s %s: %w", b.def.Object, after.LastID, core.ErrCursorNotFound)
		}
	}
	return b.queryPage(ctx, b.pool, scope, after, limit)
}

// RefreshDataset re-reads the first limit records in scope.
func (b *viewBackend) RefreshDataset(ctx context.Context, scope core.Scope, limit int) ([]core.Record, error) {
	return b.queryPage(ctx, b.pool, scope, nil, limit)
}

func (b *viewBackend) queryPage(ctx context.Context, db DBTX, scope core.Scope, after *core.Cursor, limit int) ([]core.Record, error) {
	sql, args := b.q.page(scope, after, limit)

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", b.def.Object, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", b.def.Object, err)
	}

	out := make([]core.Record, len(maps))
	for i, m := range maps {
		out[i] = core.Record(m)
	}
	return out, nil
}

// FetchPicklistOptions returns the values configured for fieldKey in
// picklist_values, in display order.
func (b *viewBackend) FetchPicklistOptions(ctx context.Context, fieldKey string) ([]core.PicklistOption, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT value, label
		FROM picklist_values
		WHERE field_key = $1
		ORDER BY sort_order, value`, fieldKey)
	if err != nil {
		return nil, fmt.Errorf("query picklist %s: %w", fieldKey, err)
	}
	defer rows.Close()

	options := []core.PicklistOption{}
	for rows.Next() {
		var (
			value string
			label pgtype.Text
		)
		if err := rows.Scan(&value, &label); err != nil {
			return nil, fmt.Errorf("scan picklist %s: %w", fieldKey, err)
		}
		opt := core.PicklistOption{Label: value, Value: value}
		if label.Valid && label.String != "" {
			opt.Label = label.String
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read picklist %s: %w", fieldKey, err)
	}
	return options, nil
}

// UpdateRecord writes fields to one record.
func (b *viewBackend) UpdateRecord(ctx context.Context, id string, fields map[string]any) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		return b.updateOne(ctx, tx, id, fields)
	})
}

// UpdateRecords writes every update in one transaction.
func (b *viewBackend) UpdateRecords(ctx context.Context, updates []core.RecordUpdate) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		for _, u := range updates {
			if err := b.updateOne(ctx, tx, u.ID, u.Fields); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteRecord deletes one record.
func (b *viewBackend) DeleteRecord(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		return b.deleteOne(ctx, tx, id)
	})
}

// DeleteRecords deletes every id in one transaction.
func (b *viewBackend) DeleteRecords(ctx context.Context, ids []string) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		for _, id := range ids {
			if err := b.deleteOne(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *viewBackend) updateOne(ctx context.Context, db DBTX, id string, fields map[string]any) error {
	sql, args, err := b.q.update(id, fields)
	if err != nil {
		return err
	}

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", b.def.Object, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", b.def.Object, id, ErrRecordNotFound)
	}

	return writeAudit(ctx, db, auditEntry{
		Action:   AuditUpdate,
		Object:   b.def.Object,
		RecordID: id,
		Fields:   fields,
	})
}

func (b *viewBackend) deleteOne(ctx context.Context, db DBTX, id string) error {
	sql, args := b.q.delete(id)

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", b.def.Object, id, err)
	}
	if tag.RowsAffected() == 0 {
		return b.missingOrGuarded(ctx, db, id)
	}

	return writeAudit(ctx, db, auditEntry{
		Action:   AuditDelete,
		Object:   b.def.Object,
		RecordID: id,
	})
}

// missingOrGuarded explains a delete that matched no row: either the record
// is gone or its dependents kept it.
func (b *viewBackend) missingOrGuarded(ctx context.Context, db DBTX, id string) error {
	sql, args := b.q.exists(id)
	var found bool
	if err := db.QueryRow(ctx, sql, args...).Scan(&found); err != nil {
		return fmt.Errorf("check %s %s: %w", b.def.Object, id, err)
	}
	if found {
		return fmt.Errorf("%s %s: %w", b.def.Object, id, core.ErrHasDependents)
	}
	return fmt.Errorf("%s %s: %w", b.def.Object, id, ErrRecordNotFound)
}
