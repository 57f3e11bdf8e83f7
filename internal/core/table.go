package core

// table.go implements the filterable, editable grid state of one view session.
//
// State is guarded by a single mutex that is never held across collaborator
// calls, so other UI events (filtering, selection, staging) keep working
// while a page load or a batch is outstanding. Derived state (visible rows,
// filter options, pruned selection) is always recomputed from allRows in
// full by recomputeLocked; nothing is maintained incrementally.
//
// After every state change the current Snapshot is pushed to subscribers.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// NoLimit asks a data source for every record in scope.
const NoLimit = -1

// DefaultMaxConcurrent bounds the fan-out of a batch.
const DefaultMaxConcurrent = 8

// TableOptions configures a Table.
type TableOptions struct {
	Policy        BatchPolicy  // default PolicyBestEffort
	MaxConcurrent int          // default DefaultMaxConcurrent
	Notifier      Notifier     // default: discard
	Logger        *slog.Logger // default: slog.Default()
}

// Snapshot is an immutable copy of a table's presentable state.
type Snapshot struct {
	View          string                    `json:"view"`
	Scope         Scope                     `json:"scope"`
	Rows          []Record                  `json:"rows"`
	TotalRecords  int                       `json:"totalRecords"`
	RecordsLoaded int                       `json:"recordsLoaded"`
	HasMore       bool                      `json:"hasMore"`
	Loading       bool                      `json:"loading"`
	Batching      bool                      `json:"batching"`
	Cursor        Cursor                    `json:"cursor"`
	Filter        Filter                    `json:"filter"`
	FilterOptions []FilterOption            `json:"filterOptions"`
	Columns       []Column                  `json:"columns"`
	Selection     []string                  `json:"selection"`
	PendingEdits  map[string]map[string]any `json:"pendingEdits"`
	Modal         Modal                     `json:"modal"`
}

// Table holds the full dataset of a view, its filtered projection, staged
// edits, selection and detail sub-view.
type Table struct {
	def    ViewDefinition
	scope  Scope
	src    DataSource
	mut    Mutator
	tx     TxMutator // nil unless the backend supports transactions
	loader *Loader

	policy   BatchPolicy
	limit    int
	notifier Notifier
	logger   *slog.Logger

	batching atomic.Bool

	mu           sync.Mutex
	all          []Record
	index        map[string]int
	visible      []Record
	filter       Filter
	filterOpts   []FilterOption
	pending      map[string]map[string]any
	pendingOrder []string
	selection    []string
	modal        Modal
	picklist     []PicklistOption
	columns      []Column
	editable     map[string]bool
	generation   uint64

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// NewTable creates an empty table for def over backend.
// PolicyAllOrNothing requires backend to implement TxMutator.
func NewTable(def ViewDefinition, scope Scope, backend Backend, opts TableOptions) (*Table, error) {
	if opts.Policy == "" {
		opts.Policy = PolicyBestEffort
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(NoticeKind, string) {})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	tx, _ := backend.(TxMutator)
	if opts.Policy == PolicyAllOrNothing && tx == nil {
		return nil, fmt.Errorf("%w: %s policy needs a transactional backend", ErrInvalidState, opts.Policy)
	}

	pageSize := NoLimit
	if def.Paginated {
		pageSize = def.EffectivePageSize()
	}

	t := &Table{
		def:      def,
		scope:    scope,
		src:      backend,
		mut:      backend,
		tx:       tx,
		loader:   NewLoader(backend, scope, pageSize, def.SortField),
		policy:   opts.Policy,
		limit:    opts.MaxConcurrent,
		notifier: opts.Notifier,
		logger:   opts.Logger.With("view", def.Key, "scope", scope.ParentID),
		filter:   AllFilter(),
		pending:  make(map[string]map[string]any),
		columns:  cloneColumns(def.Columns),
		editable: editableFields(def.Columns),
		subs:     make(map[int]func(Snapshot)),
	}
	t.recomputeLocked()
	return t, nil
}

// Definition returns the view definition the table was built from.
func (t *Table) Definition() ViewDefinition {
	return t.def
}

// Open loads picklist options and the first page.
//
// A picklist failure is notified and logged but does not fail the open; the
// table stays usable without options. A load failure is notified, returned
// and leaves any prior dataset in place.
func (t *Table) Open(ctx context.Context) error {
	if t.def.PicklistKey != "" {
		options, err := t.src.FetchPicklistOptions(ctx, t.def.PicklistKey)
		if err != nil {
			t.fail(&LoadError{Op: "picklist", Err: err})
		} else {
			t.mu.Lock()
			t.picklist = options
			t.columns = buildColumns(t.def.Columns, t.def.PicklistField, options)
			t.recomputeLocked()
			t.mu.Unlock()
		}
	}

	t.mu.Lock()
	prior, priorTotal := t.all, t.loader.Total()
	t.mu.Unlock()

	total, page, err := t.loader.Initialize(ctx)
	if err != nil {
		if len(prior) > 0 {
			t.loader.Rebase(priorTotal, prior)
		}
		return t.fail(err)
	}

	t.mu.Lock()
	t.all = t.decorate(page)
	t.generation++
	t.recomputeLocked()
	t.mu.Unlock()

	t.logger.Debug("view opened", "total", total, "loaded", len(page))
	t.publish()
	return nil
}

// LoadMore appends the next page. It returns the number of rows appended.
// It is a no-op on views without pagination and once every record is loaded.
// A vanished cursor record is treated as the end of the data.
func (t *Table) LoadMore(ctx context.Context) (int, error) {
	if !t.def.Paginated {
		return 0, nil
	}
	t.mu.Lock()
	gen := t.generation
	t.mu.Unlock()

	// gen > 0 once a load has succeeded; an empty dataset has no cursor.
	if gen > 0 && !t.loader.HasMore() {
		return 0, nil
	}

	page, err := t.loader.LoadNext(ctx, t.loader.Cursor())
	if err != nil {
		if errors.Is(err, ErrCursorNotFound) {
			t.logger.Warn("cursor record removed, treating as end of data", "error", err)
			t.publish()
			return 0, nil
		}
		return 0, t.fail(err)
	}

	t.mu.Lock()
	if gen != t.generation {
		// A refresh or batch replaced the dataset while the page was in flight.
		t.loader.Rebase(t.loader.Total(), t.all)
		t.mu.Unlock()
		t.logger.Debug("discarding page fetched before refresh", "rows", len(page))
		return 0, nil
	}
	t.all = append(t.all, t.decorate(page)...)
	t.recomputeLocked()
	t.mu.Unlock()

	t.publish()
	return len(page), nil
}

// SetFilter makes field == value the active filter, or clears it when value
// is FilterAll. An empty field uses the view's filter field.
func (t *Table) SetFilter(field, value string) {
	f := AllFilter()
	if value != "" && value != FilterAll {
		if field == "" {
			field = t.def.FilterField
		}
		f = Filter{Field: field, Value: value}
	}

	t.mu.Lock()
	t.filter = f
	t.recomputeLocked()
	t.mu.Unlock()

	t.publish()
}

// StageEdit records a pending field change. Remote state and the visible
// rows are not touched until CommitEdits.
func (t *Table) StageEdit(id, field string, value any) error {
	t.mu.Lock()
	if _, ok := t.index[id]; !ok {
		t.mu.Unlock()
		return t.fail(fmt.Errorf("%w: %s", ErrUnknownRecord, id))
	}
	if field == FieldID || !t.editable[field] {
		t.mu.Unlock()
		return t.fail(fmt.Errorf("%w: %s", ErrNotEditable, field))
	}

	fields, ok := t.pending[id]
	if !ok {
		fields = make(map[string]any)
		t.pending[id] = fields
		t.pendingOrder = append(t.pendingOrder, id)
	}
	fields[field] = value
	t.mu.Unlock()

	t.publish()
	return nil
}

// CommitEdits sends every staged edit as one batch. Pending edits are
// cleared and the dataset is re-fetched whatever the outcome; a single
// notification reports the aggregate result.
func (t *Table) CommitEdits(ctx context.Context) (BatchResult, error) {
	if !t.batching.CompareAndSwap(false, true) {
		return BatchResult{Op: "update"}, t.fail(ErrBatchInFlight)
	}
	defer t.batching.Store(false)

	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		return BatchResult{Op: "update"}, t.fail(ErrNothingToCommit)
	}
	updates := make([]RecordUpdate, 0, len(t.pendingOrder))
	ids := make([]string, 0, len(t.pendingOrder))
	byID := make(map[string]map[string]any, len(t.pending))
	for _, id := range t.pendingOrder {
		fields := t.pending[id]
		updates = append(updates, RecordUpdate{ID: id, Fields: fields})
		ids = append(ids, id)
		byID[id] = fields
	}
	t.pending = make(map[string]map[string]any)
	t.pendingOrder = nil
	t.mu.Unlock()
	t.publish()

	// Dispatched requests run to completion even if the caller goes away.
	bctx := context.WithoutCancel(ctx)

	var result BatchResult
	if t.policy == PolicyAllOrNothing {
		result = runTxBatch(bctx, "update", ids, func(ctx context.Context) error {
			return t.tx.UpdateRecords(ctx, updates)
		})
	} else {
		result = runBatch(bctx, "update", ids, t.limit, func(ctx context.Context, id string) error {
			if err := t.mut.UpdateRecord(ctx, id, byID[id]); err != nil {
				return &UpdateError{ID: id, Err: err}
			}
			return nil
		})
	}

	t.mu.Lock()
	for _, id := range result.Succeeded {
		if i, ok := t.index[id]; ok {
			merged := t.all[i].Merge(byID[id])
			if t.def.Decorate != nil {
				merged = t.def.Decorate(merged)
			}
			t.all[i] = merged
		}
	}
	batchErr := result.Err()
	if batchErr == nil {
		t.selection = nil
	}
	t.loader.Rebase(t.loader.Total(), t.all)
	t.generation++
	t.recomputeLocked()
	t.mu.Unlock()

	if batchErr != nil {
		t.fail(batchErr)
	} else {
		t.notify(NoticeSuccess, "Records updated successfully.")
	}
	t.logger.Info("edits committed",
		"policy", t.policy,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
	)

	refreshErr := t.refresh(bctx)
	return result, errors.Join(batchErr, refreshErr)
}

// RequestRowAction dispatches a row action. View and edit open the detail
// sub-view; delete closes it and deletes the row.
func (t *Table) RequestRowAction(ctx context.Context, action RowAction, id string) error {
	if _, err := ParseRowAction(string(action)); err != nil {
		return t.fail(err)
	}

	t.mu.Lock()
	if _, ok := t.index[id]; !ok {
		t.mu.Unlock()
		return t.fail(fmt.Errorf("%w: %s", ErrUnknownRecord, id))
	}
	t.modal = openModal(action, id)
	t.mu.Unlock()
	t.publish()

	if action != ActionDelete {
		return nil
	}
	_, err := t.deleteRecords(ctx, []string{id})
	return err
}

// CloseModal returns the detail sub-view to Closed. Leaving Editing
// re-fetches the dataset to pick up changes made in the detail form.
func (t *Table) CloseModal(ctx context.Context) error {
	t.mu.Lock()
	prev := t.modal
	t.modal = Modal{}
	t.mu.Unlock()
	t.publish()

	if prev.State == ModalEditing {
		return t.refresh(ctx)
	}
	return nil
}

// ToggleSelection replaces the selection. Ids that are not visible are
// dropped. It returns the effective selection.
func (t *Table) ToggleSelection(ids []string) []string {
	t.mu.Lock()
	t.selection = append([]string(nil), ids...)
	t.recomputeLocked()
	sel := append([]string(nil), t.selection...)
	t.mu.Unlock()

	t.publish()
	return sel
}

// RequestBulkDelete deletes ids, or the current selection when ids is empty.
// No delete is issued if any target still has dependent records.
func (t *Table) RequestBulkDelete(ctx context.Context, ids []string) (BatchResult, error) {
	if len(ids) == 0 {
		t.mu.Lock()
		ids = append([]string(nil), t.selection...)
		t.mu.Unlock()
	}
	if len(ids) == 0 {
		return BatchResult{Op: "delete"}, t.fail(ErrEmptySelection)
	}
	return t.deleteRecords(ctx, ids)
}

// Reload re-fetches the dataset. On failure the current rows are kept.
func (t *Table) Reload(ctx context.Context) error {
	return t.refresh(ctx)
}

func (t *Table) deleteRecords(ctx context.Context, ids []string) (BatchResult, error) {
	t.mu.Lock()
	blocked := 0
	for _, id := range ids {
		i, ok := t.index[id]
		if !ok {
			t.mu.Unlock()
			return BatchResult{Op: "delete"}, t.fail(fmt.Errorf("%w: %s", ErrUnknownRecord, id))
		}
		if t.all[i].Int(FieldDependents) > 0 {
			blocked++
		}
	}
	t.mu.Unlock()

	if blocked > 0 {
		return BatchResult{Op: "delete"}, t.fail(fmt.Errorf("%w: %d of %d selected records", ErrHasDependents, blocked, len(ids)))
	}

	if !t.batching.CompareAndSwap(false, true) {
		return BatchResult{Op: "delete"}, t.fail(ErrBatchInFlight)
	}
	defer t.batching.Store(false)
	t.publish()

	bctx := context.WithoutCancel(ctx)

	var result BatchResult
	if t.policy == PolicyAllOrNothing {
		result = runTxBatch(bctx, "delete", ids, func(ctx context.Context) error {
			return t.tx.DeleteRecords(ctx, ids)
		})
	} else {
		result = runBatch(bctx, "delete", ids, t.limit, func(ctx context.Context, id string) error {
			if err := t.mut.DeleteRecord(ctx, id); err != nil {
				return &DeleteError{ID: id, Err: err}
			}
			return nil
		})
	}

	deleted := make(map[string]bool, len(result.Succeeded))
	for _, id := range result.Succeeded {
		deleted[id] = true
	}

	t.mu.Lock()
	kept := make([]Record, 0, len(t.all))
	for _, rec := range t.all {
		if !deleted[rec.ID()] {
			kept = append(kept, rec)
		}
	}
	t.all = kept
	t.loader.Rebase(t.loader.Total()-len(deleted), t.all)
	t.generation++
	t.selection = nil
	if deleted[t.modal.RecordID] {
		t.modal = Modal{}
	}
	t.recomputeLocked()
	t.mu.Unlock()

	batchErr := result.Err()
	switch {
	case batchErr != nil && len(ids) == 1:
		t.fail(result.Failed[0].Err)
		batchErr = result.Failed[0].Err
	case batchErr != nil:
		t.fail(batchErr)
	case len(ids) == 1:
		t.notify(NoticeSuccess, "Record deleted successfully.")
	default:
		t.notify(NoticeSuccess, fmt.Sprintf("%d records deleted successfully.", len(ids)))
	}
	t.logger.Info("records deleted",
		"policy", t.policy,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
	)

	refreshErr := t.refresh(bctx)
	return result, errors.Join(batchErr, refreshErr)
}

// refresh re-reads the total and the loaded rows. On failure the current
// dataset is retained and the failure notified.
func (t *Table) refresh(ctx context.Context) error {
	limit := NoLimit
	if t.def.Paginated {
		limit = max(t.loader.Loaded(), t.loader.PageSize())
	}

	var (
		total int
		rows  []Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := t.src.FetchCount(gctx, t.scope)
		if err != nil {
			return &LoadError{Op: "count", Err: err}
		}
		total = n
		return nil
	})
	g.Go(func() error {
		recs, err := t.src.RefreshDataset(gctx, t.scope, limit)
		if err != nil {
			return &LoadError{Op: "refresh", Err: err}
		}
		rows = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		return t.fail(err)
	}

	t.mu.Lock()
	t.all = t.decorate(rows)
	t.loader.Rebase(total, t.all)
	t.generation++
	t.recomputeLocked()
	t.mu.Unlock()

	t.publish()
	return nil
}

// recomputeLocked rebuilds every derived field from t.all. Callers hold t.mu.
func (t *Table) recomputeLocked() {
	t.index = make(map[string]int, len(t.all))
	for i, rec := range t.all {
		t.index[rec.ID()] = i
	}

	t.visible = applyFilter(t.all, t.filter)
	t.filterOpts = buildFilterOptions(t.picklist, t.filter)

	visibleIDs := make(map[string]bool, len(t.visible))
	for _, rec := range t.visible {
		visibleIDs[rec.ID()] = true
	}
	sel := make([]string, 0, len(t.selection))
	seen := make(map[string]bool, len(t.selection))
	for _, id := range t.selection {
		if visibleIDs[id] && !seen[id] {
			sel = append(sel, id)
			seen[id] = true
		}
	}
	t.selection = sel

	order := t.pendingOrder[:0:0]
	for _, id := range t.pendingOrder {
		if _, ok := t.index[id]; ok {
			order = append(order, id)
			continue
		}
		delete(t.pending, id)
	}
	t.pendingOrder = order
}

func (t *Table) decorate(rows []Record) []Record {
	out := make([]Record, len(rows))
	for i, rec := range rows {
		if t.def.Decorate != nil {
			out[i] = t.def.Decorate(rec)
		} else {
			out[i] = rec.Clone()
		}
	}
	return out
}

// fail reports err to the user and the log, and returns it.
func (t *Table) fail(err error) error {
	if errors.Is(err, ErrInvalidState) {
		t.logger.Warn("view operation rejected", "error", err)
	} else {
		t.logger.Error("view operation failed", "error", err, "code", MapError(err).Code)
	}
	t.notify(NoticeError, FormatUserError(err))
	return err
}

func (t *Table) notify(kind NoticeKind, message string) {
	t.notifier.Notify(kind, message)
}

// Snapshot returns a copy of the table's presentable state.
func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := make([]Record, len(t.visible))
	for i, rec := range t.visible {
		rows[i] = rec.Clone()
	}
	pending := make(map[string]map[string]any, len(t.pending))
	for id, fields := range t.pending {
		cp := make(map[string]any, len(fields))
		for k, v := range fields {
			cp[k] = v
		}
		pending[id] = cp
	}

	return Snapshot{
		View:          t.def.Key,
		Scope:         t.scope,
		Rows:          rows,
		TotalRecords:  t.loader.Total(),
		RecordsLoaded: t.loader.Loaded(),
		HasMore:       t.def.Paginated && t.loader.HasMore(),
		Loading:       t.loader.Loading(),
		Batching:      t.batching.Load(),
		Cursor:        t.loader.Cursor(),
		Filter:        t.filter,
		FilterOptions: append([]FilterOption(nil), t.filterOpts...),
		Columns:       cloneColumns(t.columns),
		Selection:     append([]string(nil), t.selection...),
		PendingEdits:  pending,
		Modal:         t.modal,
	}
}

// Rows returns a copy of the full unfiltered dataset.
func (t *Table) Rows() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.all))
	for i, rec := range t.all {
		out[i] = rec.Clone()
	}
	return out
}

// Subscribe registers fn to receive a Snapshot after every state change.
// The returned function removes the subscription.
func (t *Table) Subscribe(fn func(Snapshot)) func() {
	t.subMu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.subMu.Unlock()

	return func() {
		t.subMu.Lock()
		delete(t.subs, id)
		t.subMu.Unlock()
	}
}

func (t *Table) publish() {
	t.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.subMu.Unlock()

	if len(subs) == 0 {
		return
	}
	snap := t.Snapshot()
	for _, fn := range subs {
		fn(snap)
	}
}
