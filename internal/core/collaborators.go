package core

import "context"

// DataSource is read access to the records behind a view.
type DataSource interface {
	// FetchCount returns the total number of records in scope.
	FetchCount(ctx context.Context, scope Scope) (int, error)

	// FetchPage returns up to limit records ordered by the view's sort field
	// then Id, starting after the cursor (from the beginning when after is nil).
	// Returns an error wrapping ErrCursorNotFound when the cursor's record no
	// longer exists.
	FetchPage(ctx context.Context, scope Scope, after *Cursor, limit int) ([]Record, error)

	// FetchPicklistOptions enumerates the valid values of a categorical field.
	FetchPicklistOptions(ctx context.Context, fieldKey string) ([]PicklistOption, error)

	// RefreshDataset re-reads the first limit records in scope after a mutation.
	RefreshDataset(ctx context.Context, scope Scope, limit int) ([]Record, error)
}

// Mutator writes individual records.
type Mutator interface {
	UpdateRecord(ctx context.Context, id string, fields map[string]any) error
	DeleteRecord(ctx context.Context, id string) error
}

// RecordUpdate is one entry of a transactional update batch.
type RecordUpdate struct {
	ID     string
	Fields map[string]any
}

// TxMutator applies a whole batch in one transaction. Required by the
// all-or-nothing batch policy.
type TxMutator interface {
	Mutator
	UpdateRecords(ctx context.Context, updates []RecordUpdate) error
	DeleteRecords(ctx context.Context, ids []string) error
}

// Backend is the full collaborator surface a view needs from its store.
type Backend interface {
	DataSource
	Mutator
}

// BackendFactory builds the backend for a view definition.
type BackendFactory interface {
	Backend(def ViewDefinition) (Backend, error)
}

// Notifier presents user-visible notifications. Fire-and-forget.
type Notifier interface {
	Notify(kind NoticeKind, message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(kind NoticeKind, message string)

// Notify calls f(kind, message).
func (f NotifierFunc) Notify(kind NoticeKind, message string) { f(kind, message) }
