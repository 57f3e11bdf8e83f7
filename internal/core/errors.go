package core

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when an operation is invoked outside its
// precondition. Callers match it with errors.Is.
var ErrInvalidState = errors.New("invalid state")

var (
	// ErrNotLoaded is returned by pagination before the initial load.
	ErrNotLoaded = fmt.Errorf("%w: no rows loaded yet", ErrInvalidState)

	// ErrLoadInFlight is returned when a page load is already pending.
	ErrLoadInFlight = fmt.Errorf("%w: page load already in progress", ErrInvalidState)

	// ErrBatchInFlight is returned when a commit or bulk delete is already pending.
	ErrBatchInFlight = fmt.Errorf("%w: batch already in progress", ErrInvalidState)

	// ErrStaleCursor is returned when LoadNext is called with a cursor that
	// is not the loader's current position.
	ErrStaleCursor = fmt.Errorf("%w: stale cursor", ErrInvalidState)

	// ErrUnknownRecord is returned for record ids the view does not hold.
	ErrUnknownRecord = fmt.Errorf("%w: unknown record", ErrInvalidState)

	// ErrNotEditable is returned when staging an edit on a read-only field.
	ErrNotEditable = fmt.Errorf("%w: field is not editable", ErrInvalidState)

	// ErrNothingToCommit is returned by CommitEdits with no staged edits.
	ErrNothingToCommit = fmt.Errorf("%w: no pending edits", ErrInvalidState)

	// ErrEmptySelection is returned by bulk delete without targets.
	ErrEmptySelection = fmt.Errorf("%w: no rows selected", ErrInvalidState)
)

// ErrCursorNotFound is reported by a DataSource when the record referenced by
// a cursor no longer exists remotely.
var ErrCursorNotFound = errors.New("cursor record not found")

// ErrHasDependents blocks deletion of records that still have dependents.
var ErrHasDependents = errors.New("record has dependent records")

// ErrUnknownView is returned for view keys that are not registered.
var ErrUnknownView = errors.New("unknown view")

// ErrViewNotFound is returned for unknown or expired view sessions.
var ErrViewNotFound = errors.New("view not found")

// ErrTooManyViews is returned when the session limit is reached.
var ErrTooManyViews = errors.New("too many open views")

// LoadError reports a failed page or count fetch.
type LoadError struct {
	Op  string // "count", "page", "refresh", "picklist"
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load failed (%s): %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// UpdateError reports a failed single-record update.
type UpdateError struct {
	ID  string
	Err error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update failed for %s: %v", e.ID, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

// DeleteError reports a failed single-record delete.
type DeleteError struct {
	ID  string
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete failed for %s: %v", e.ID, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// BatchError aggregates the failures of a fan-out batch.
type BatchError struct {
	Op       string // "update" or "delete"
	Total    int
	Failures []error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s batch failed: %d of %d records failed", e.Op, len(e.Failures), e.Total)
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error { return e.Failures }
