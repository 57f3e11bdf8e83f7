package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeBackend is an in-memory Backend ordered by sortField then Id.
type fakeBackend struct {
	mu         sync.Mutex
	records    []Record
	sortField  string
	scopeField string
	picklist   []PicklistOption

	countErr    error
	pageErr     error
	refreshErr  error
	picklistErr error
	updateFail  map[string]error
	deleteFail  map[string]error

	// pageGate, when set, blocks FetchPage calls with a cursor until closed.
	pageGate chan struct{}
	// countGate and updateGate block FetchCount and UpdateRecord the same way.
	countGate  chan struct{}
	updateGate chan struct{}

	counts    int
	pages     int
	refreshes int
	updates   []RecordUpdate
	deletes   []string
}

func newFakeBackend(records []Record) *fakeBackend {
	f := &fakeBackend{sortField: FieldID}
	for _, r := range records {
		f.records = append(f.records, r.Clone())
	}
	f.sortLocked()
	return f
}

func (f *fakeBackend) sortLocked() {
	sort.SliceStable(f.records, func(i, j int) bool {
		a, b := f.records[i], f.records[j]
		if ka, kb := a.String(f.sortField), b.String(f.sortField); ka != kb {
			return ka < kb
		}
		return a.ID() < b.ID()
	})
}

func (f *fakeBackend) inScopeLocked(scope Scope) []Record {
	out := make([]Record, 0, len(f.records))
	for _, r := range f.records {
		if f.scopeField != "" && scope.ParentID != "" && r.String(f.scopeField) != scope.ParentID {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (f *fakeBackend) FetchCount(ctx context.Context, scope Scope) (int, error) {
	f.mu.Lock()
	gate := f.countGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts++
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.inScopeLocked(scope)), nil
}

func (f *fakeBackend) FetchPage(ctx context.Context, scope Scope, after *Cursor, limit int) ([]Record, error) {
	f.mu.Lock()
	gate := f.pageGate
	f.mu.Unlock()
	if gate != nil && after != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages++
	if f.pageErr != nil {
		return nil, f.pageErr
	}

	rows := f.inScopeLocked(scope)
	start := 0
	if after != nil {
		start = -1
		for i, r := range rows {
			if r.ID() == after.LastID {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, fmt.Errorf("page after %s: %w", after.LastID, ErrCursorNotFound)
		}
	}
	return cloneRange(rows, start, limit), nil
}

func (f *fakeBackend) FetchPicklistOptions(ctx context.Context, fieldKey string) ([]PicklistOption, error) {
	if f.picklistErr != nil {
		return nil, f.picklistErr
	}
	return append([]PicklistOption(nil), f.picklist...), nil
}

func (f *fakeBackend) RefreshDataset(ctx context.Context, scope Scope, limit int) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return cloneRange(f.inScopeLocked(scope), 0, limit), nil
}

func (f *fakeBackend) UpdateRecord(ctx context.Context, id string, fields map[string]any) error {
	f.mu.Lock()
	gate := f.updateGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, RecordUpdate{ID: id, Fields: fields})
	if err := f.updateFail[id]; err != nil {
		return err
	}
	for i, r := range f.records {
		if r.ID() == id {
			f.records[i] = r.Merge(fields)
		}
	}
	f.sortLocked()
	return nil
}

func (f *fakeBackend) DeleteRecord(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	if err := f.deleteFail[id]; err != nil {
		return err
	}
	f.removeLocked(id)
	return nil
}

func (f *fakeBackend) removeLocked(id string) {
	kept := f.records[:0]
	for _, r := range f.records {
		if r.ID() != id {
			kept = append(kept, r)
		}
	}
	f.records = kept
}

func (f *fakeBackend) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(id)
}

func (f *fakeBackend) stats() (refreshes, updates, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes, len(f.updates), len(f.deletes)
}

func cloneRange(rows []Record, start, limit int) []Record {
	if start >= len(rows) {
		return []Record{}
	}
	end := len(rows)
	if limit >= 0 && start+limit < end {
		end = start + limit
	}
	out := make([]Record, 0, end-start)
	for _, r := range rows[start:end] {
		out = append(out, r.Clone())
	}
	return out
}

// fakeTxBackend adds transactional batches to fakeBackend.
type fakeTxBackend struct {
	*fakeBackend
	txErr   error
	txCalls int
}

func (f *fakeTxBackend) UpdateRecords(ctx context.Context, updates []RecordUpdate) error {
	f.txCalls++
	if f.txErr != nil {
		return f.txErr
	}
	for _, u := range updates {
		if err := f.fakeBackend.UpdateRecord(ctx, u.ID, u.Fields); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeTxBackend) DeleteRecords(ctx context.Context, ids []string) error {
	f.txCalls++
	if f.txErr != nil {
		return f.txErr
	}
	for _, id := range ids {
		if err := f.fakeBackend.DeleteRecord(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// noticeRecorder collects notifications.
type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(kind NoticeKind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Kind: kind, Message: message})
}

func (r *noticeRecorder) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func (r *noticeRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = nil
}

// numberedRecords returns n records with ids r001..rNNN.
func numberedRecords(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{FieldID: fmt.Sprintf("r%03d", i+1)}
	}
	return out
}

var errBoom = errors.New("boom")

// waitFor polls cond until it holds or a deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
