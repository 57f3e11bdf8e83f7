package web

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/RecordGrid/internal/config"
	"github.com/JonMunkholm/RecordGrid/internal/core"
	"github.com/JonMunkholm/RecordGrid/internal/store"
)

const testView = "web_contacts"

var errStoreDown = errors.New("connection refused")

// memBackend is an in-memory core.Backend ordered by Id.
type memBackend struct {
	mu         sync.Mutex
	records    []core.Record
	updateFail map[string]error
}

func newMemBackend(records ...core.Record) *memBackend {
	b := &memBackend{updateFail: map[string]error{}}
	for _, r := range records {
		b.records = append(b.records, r.Clone())
	}
	sort.Slice(b.records, func(i, j int) bool { return b.records[i].ID() < b.records[j].ID() })
	return b
}

func (b *memBackend) FetchCount(ctx context.Context, scope core.Scope) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records), nil
}

func (b *memBackend) FetchPage(ctx context.Context, scope core.Scope, after *core.Cursor, limit int) ([]core.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := 0
	if after != nil {
		start = -1
		for i, r := range b.records {
			if r.ID() == after.LastID {
				start = i + 1
			}
		}
		if start < 0 {
			return nil, core.ErrCursorNotFound
		}
	}
	return b.rangeLocked(start, limit), nil
}

func (b *memBackend) FetchPicklistOptions(ctx context.Context, key string) ([]core.PicklistOption, error) {
	return []core.PicklistOption{{Label: "Web", Value: "Web"}, {Label: "Phone", Value: "Phone"}}, nil
}

func (b *memBackend) RefreshDataset(ctx context.Context, scope core.Scope, limit int) ([]core.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rangeLocked(0, limit), nil
}

func (b *memBackend) rangeLocked(start, limit int) []core.Record {
	end := len(b.records)
	if limit >= 0 && start+limit < end {
		end = start + limit
	}
	out := make([]core.Record, 0, end-start)
	for _, r := range b.records[start:end] {
		out = append(out, r.Clone())
	}
	return out
}

func (b *memBackend) UpdateRecord(ctx context.Context, id string, fields map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.updateFail[id]; err != nil {
		return err
	}
	for i, r := range b.records {
		if r.ID() == id {
			b.records[i] = r.Merge(fields)
			return nil
		}
	}
	return fmt.Errorf("record %s not found", id)
}

func (b *memBackend) DeleteRecord(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.records {
		if r.ID() == id {
			b.records = append(b.records[:i], b.records[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("record %s not found", id)
}

type memFactory struct{ backend core.Backend }

func (f memFactory) Backend(core.ViewDefinition) (core.Backend, error) {
	return f.backend, nil
}

// fakeHistory is an AuditReader returning canned entries.
type fakeHistory struct {
	entries   []store.AuditEntry
	err       error
	lastLimit int
}

func (h *fakeHistory) RecordHistory(ctx context.Context, object, recordID string, limit int) ([]store.AuditEntry, error) {
	h.lastLimit = limit
	if h.err != nil {
		return nil, h.err
	}
	return h.entries, nil
}

func testRecords() []core.Record {
	return []core.Record{
		{core.FieldID: "c1", "FirstName": "Ada", "LeadSource": "Web"},
		{core.FieldID: "c2", "FirstName": "Bob", "LeadSource": "Phone"},
		{core.FieldID: "c3", "FirstName": "Cy", "LeadSource": "Web", core.FieldDependents: 1},
	}
}

func registerTestView(t *testing.T) {
	t.Helper()
	core.Clear()
	t.Cleanup(core.Clear)

	core.Register(core.ViewDefinition{
		Key:       testView,
		Label:     "Contacts",
		Object:    "contacts",
		SortField: core.FieldID,
		Columns: []core.Column{
			{Label: "First Name", FieldName: "FirstName", Type: core.ColumnText, Editable: true},
			{Label: "Lead Source", FieldName: "LeadSource", Type: core.ColumnPicklist, Editable: true},
			{Type: core.ColumnAction, Actions: core.DefaultRowActions},
		},
		FilterField:   "LeadSource",
		PicklistField: "LeadSource",
		PicklistKey:   "Contact.LeadSource",
		PageSize:      2,
		Paginated:     true,
	})
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080, RequestTimeout: 5 * time.Second},
		Grid:   config.GridConfig{BatchPolicy: "best-effort", MaxConcurrent: 4},
		Rate:   config.RateLimitConfig{Enabled: false, RequestsPerMinute: 300, MutationLimit: 30},
		Security: config.SecurityConfig{
			EnableCSP: true,
		},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func newTestServer(t *testing.T, backend *memBackend, history AuditReader, cfg *config.Config) *Server {
	t.Helper()
	registerTestView(t)
	svc := core.NewService(memFactory{backend: backend}, core.ServiceConfig{MaxConcurrent: 4})
	s := NewServer(svc, history, cfg)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}
