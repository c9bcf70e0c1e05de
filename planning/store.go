/*
store.go - External collaborator contracts

PURPOSE:
  Defines the interfaces between the sync engine and its collaborators:
  the block-schedule store, the external quantity feed, the sync-history
  store, the transactional committer, and the re-sequencing queue. The
  engine is wired with explicit interface parameters - no service locator.

IMPLEMENTATIONS:
  - store/memory.go: In-memory stores + snapshot/rollback committer (tests/dev)
  - store/sqlite: SQLite stores + sql.Tx committer (production)
  - erp: HTTP adapter for the quantity feed
  - resequence: supervised background worker for re-sequencing requests

SEE ALSO:
  - reconcile.go: The engine consuming these contracts
*/
package planning

import (
	"context"
	"time"
)

// =============================================================================
// BLOCK SCHEDULE STORE
// =============================================================================

// BlockScheduleStore queries the locally scheduled blocks.
type BlockScheduleStore interface {
	// CandidateBlocks returns the blocks eligible for quantity sync:
	// work-order-linked, end time after asOf, work order not manually
	// finished, and matching workOrderID when non-nil. Results are ordered
	// ascending by start time and carry a populated WorkOrder.
	CandidateBlocks(ctx context.Context, asOf time.Time, workOrderID *WorkOrderID) ([]BlockSchedule, error)
}

// =============================================================================
// QUANTITY FEED
// =============================================================================

// SnapshotSource queries the external production system for remaining
// quantities. One batched request for the whole number set, not one call
// per order. Orders unknown to the external system are simply absent from
// the result; that absence drives finish detection, not an error.
type SnapshotSource interface {
	QtyRemaining(ctx context.Context, workOrderNumbers []string) ([]QtySnapshot, error)
}

// =============================================================================
// SYNC HISTORY
// =============================================================================

// SyncHistoryStore reads the "last successful sync" marker. Writes go
// through the mutation batch (UpsertSyncHistory).
type SyncHistoryStore interface {
	// LastSync returns the marker for syncType, or nil if no sync has run.
	LastSync(ctx context.Context, syncType string) (*SyncHistory, error)
}

// =============================================================================
// COMMITTER
// =============================================================================

// Committer applies a batch atomically. On error nothing was persisted and
// the error unwraps to ErrCommitFailed.
type Committer interface {
	Commit(ctx context.Context, batch *Batch) error
}

// =============================================================================
// RE-SEQUENCING
// =============================================================================

// ResequenceRequest asks the downstream auto-sorter to re-order one asset's
// blocks, anchored at the given instant.
type ResequenceRequest struct {
	ID      string // correlation id for out-of-band failure reporting
	Source  string // caller label, e.g. SyncSource
	Offset  int    // priority/offset value passed through to the sorter
	AssetID AssetID
	Anchor  time.Time
}

// Resequencer accepts re-sequencing requests. Enqueue never blocks and its
// outcome is not fed back into the caller's result: requests are processed
// best-effort after the run's batch has committed, and failures surface on
// the worker's own reporting channel.
type Resequencer interface {
	Enqueue(req ResequenceRequest)
}
