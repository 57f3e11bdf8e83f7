package core

// loader.go implements incremental (infinite scroll) loading.
//
// The loader owns the pagination cursor and the loaded/total counters. The
// cursor is read and then written around a remote call, so only one LoadNext
// may be in flight per loader; a second call is rejected rather than queued
// to avoid appending the same page twice.

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultPageSize is the number of records fetched per page.
const DefaultPageSize = 50

// Loader fetches an initial page and appends subsequent pages on demand.
type Loader struct {
	src       DataSource
	scope     Scope
	pageSize  int
	sortField string

	loading atomic.Bool

	mu        sync.RWMutex
	total     int
	loaded    int
	cursor    Cursor
	exhausted bool
}

// NewLoader creates a loader over src. sortField names the record field the
// data source orders by; it becomes the cursor key. A pageSize of NoLimit
// fetches the whole scope as the first page.
func NewLoader(src DataSource, scope Scope, pageSize int, sortField string) *Loader {
	if pageSize == 0 || pageSize < NoLimit {
		pageSize = DefaultPageSize
	}
	return &Loader{
		src:       src,
		scope:     scope,
		pageSize:  pageSize,
		sortField: sortField,
	}
}

// Initialize fetches the total count and the first page concurrently.
// On failure the loader state is left empty.
func (l *Loader) Initialize(ctx context.Context) (int, []Record, error) {
	var (
		total int
		page  []Record
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := l.src.FetchCount(gctx, l.scope)
		if err != nil {
			return &LoadError{Op: "count", Err: err}
		}
		total = n
		return nil
	})
	g.Go(func() error {
		rows, err := l.src.FetchPage(gctx, l.scope, nil, l.pageSize)
		if err != nil {
			return &LoadError{Op: "page", Err: err}
		}
		page = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		l.reset(0, nil)
		return 0, nil, err
	}

	l.reset(total, page)
	return total, page, nil
}

// LoadNext fetches the page after cursor and advances the loader on success.
//
// It fails with ErrNotLoaded before Initialize, ErrLoadInFlight while
// another LoadNext is pending and ErrStaleCursor when cursor is not the
// current position. When the cursor's record vanished remotely it returns a
// *LoadError wrapping ErrCursorNotFound and marks the loader exhausted.
func (l *Loader) LoadNext(ctx context.Context, cursor Cursor) ([]Record, error) {
	if !l.loading.CompareAndSwap(false, true) {
		return nil, ErrLoadInFlight
	}
	defer l.loading.Store(false)

	l.mu.RLock()
	loaded, current := l.loaded, l.cursor
	l.mu.RUnlock()

	if loaded == 0 {
		return nil, ErrNotLoaded
	}
	if cursor != current {
		return nil, ErrStaleCursor
	}

	page, err := l.src.FetchPage(ctx, l.scope, &cursor, l.pageSize)
	if err != nil {
		if errors.Is(err, ErrCursorNotFound) {
			l.mu.Lock()
			l.exhausted = true
			l.mu.Unlock()
		}
		return nil, &LoadError{Op: "page", Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(page) == 0 {
		l.exhausted = true
		return nil, nil
	}
	l.loaded += len(page)
	l.cursor = CursorFor(page[len(page)-1], l.sortField)
	if len(page) < l.pageSize {
		l.exhausted = true
	}
	return page, nil
}

// Rebase resets the counters to rows after a full refresh. The cursor moves
// to the last refreshed row.
func (l *Loader) Rebase(total int, rows []Record) {
	l.reset(total, rows)
}

func (l *Loader) reset(total int, rows []Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total = total
	l.loaded = len(rows)
	l.cursor = Cursor{}
	l.exhausted = false
	if len(rows) > 0 {
		l.cursor = CursorFor(rows[len(rows)-1], l.sortField)
	}
}

// Cursor returns the current pagination position.
func (l *Loader) Cursor() Cursor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cursor
}

// Total returns the remote record count reported at initialization.
func (l *Loader) Total() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Loaded returns the number of records loaded so far.
func (l *Loader) Loaded() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// PageSize returns the configured page size.
func (l *Loader) PageSize() int {
	return l.pageSize
}

// HasMore reports whether another LoadNext could return rows.
func (l *Loader) HasMore() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded > 0 && !l.exhausted && l.loaded < l.total
}

// Loading reports whether a LoadNext is in flight.
func (l *Loader) Loading() bool {
	return l.loading.Load()
}
