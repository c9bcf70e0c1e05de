/*
errors.go - Centralized error types for the planning engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Collaborator packages (stores, feed adapters) should wrap these errors
  with additional context.

ERROR CATEGORIES:
  1. Precondition errors - Invariant violations callers must filter out
  2. Store errors - Missing entities
  3. Run errors - Fetch or commit failures that abort a sync run

USAGE:
  if errors.Is(err, planning.ErrCommitFailed) {
      // nothing was persisted; retry on the next scheduled run
  }

SEE ALSO:
  - reconcile.go: Uses these errors
  - store/sqlite: Wraps these errors with SQL context
*/
package planning

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrZeroRate is returned when a block is recalculated for a work order
	// with RatePerHour = 0. Callers filter such blocks out; seeing this error
	// means the candidate filter was bypassed.
	ErrZeroRate = errors.New("work order has zero rate per hour")

	// ErrBlockNotFound is returned when a referenced block schedule doesn't exist.
	ErrBlockNotFound = errors.New("block schedule not found")

	// ErrWorkOrderNotFound is returned when a referenced work order doesn't exist.
	ErrWorkOrderNotFound = errors.New("work order not found")

	// ErrCommitFailed is returned when the mutation batch cannot be applied
	// atomically. No entity state changed; the run should be retried on the
	// next scheduled invocation.
	ErrCommitFailed = errors.New("mutation batch commit failed")

	// ErrFeedUnavailable is returned when the external quantity feed cannot
	// be queried. Fatal for the current run; nothing is persisted.
	ErrFeedUnavailable = errors.New("quantity feed unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CommitError reports which mutation in the batch failed. The batch as a
// whole was rolled back regardless of position. Matches both ErrCommitFailed
// and the underlying cause with errors.Is.
type CommitError struct {
	Index int    // position in the batch
	Kind  string // mutation kind
	Cause error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed at mutation %d (%s): %v", e.Index, e.Kind, e.Cause)
}

func (e *CommitError) Unwrap() []error { return []error{ErrCommitFailed, e.Cause} }

// FeedError reports a failed snapshot fetch, including which work-order
// numbers were requested.
type FeedError struct {
	WorkOrderNumbers []string
	Cause            error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("quantity feed query for %d work orders failed: %v", len(e.WorkOrderNumbers), e.Cause)
}

func (e *FeedError) Unwrap() []error { return []error{ErrFeedUnavailable, e.Cause} }
