package core

// batch.go implements the fan-out/fan-in used by commits and bulk deletes.
//
// Every unit of a batch is dispatched concurrently (bounded by the configured
// limit) and joined. Failures are collected per unit, never returned early,
// and a dispatched unit always runs to completion.

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// BatchPolicy selects how a multi-record mutation is applied.
type BatchPolicy string

const (
	// PolicyBestEffort issues one request per record. Successful units are
	// kept when others fail.
	PolicyBestEffort BatchPolicy = "best-effort"

	// PolicyAllOrNothing applies the batch in one collaborator transaction.
	PolicyAllOrNothing BatchPolicy = "all-or-nothing"
)

// ParseBatchPolicy converts a config value to a BatchPolicy.
func ParseBatchPolicy(s string) (BatchPolicy, error) {
	switch BatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyBestEffort:
		return PolicyBestEffort, nil
	case PolicyAllOrNothing:
		return PolicyAllOrNothing, nil
	default:
		return "", fmt.Errorf("unknown batch policy %q", s)
	}
}

// BatchFailure records why one unit of a batch failed.
type BatchFailure struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

// BatchResult is the aggregate outcome of a batch.
type BatchResult struct {
	Op        string         `json:"op"`
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed,omitempty"`
}

// OK reports whether every unit succeeded.
func (r BatchResult) OK() bool {
	return len(r.Failed) == 0
}

// Total returns the number of units in the batch.
func (r BatchResult) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}

// Err returns the aggregate *BatchError, or nil if the batch succeeded.
func (r BatchResult) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f.Err
	}
	return &BatchError{Op: r.Op, Total: r.Total(), Failures: errs}
}

// runBatch calls fn once per id, concurrently, at most limit at a time.
// Results keep the order of ids.
func runBatch(ctx context.Context, op string, ids []string, limit int, fn func(ctx context.Context, id string) error) BatchResult {
	errs := make([]error, len(ids))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			errs[i] = fn(ctx, id)
			return nil
		})
	}
	g.Wait()

	result := BatchResult{Op: op}
	for i, id := range ids {
		if errs[i] != nil {
			result.Failed = append(result.Failed, BatchFailure{ID: id, Err: errs[i]})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// runTxBatch applies the whole batch through one transactional call. Either
// every id succeeds or every id is reported failed with the same error.
func runTxBatch(ctx context.Context, op string, ids []string, apply func(ctx context.Context) error) BatchResult {
	result := BatchResult{Op: op}
	if err := apply(ctx); err != nil {
		for _, id := range ids {
			result.Failed = append(result.Failed, BatchFailure{ID: id, Err: err})
		}
		return result
	}
	result.Succeeded = append(result.Succeeded, ids...)
	return result
}
