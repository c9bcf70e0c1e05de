/*
mutation.go - Mutation variants and the batch collector

PURPOSE:
  A sync run never writes directly. Every pending change is staged as a
  Mutation in an ordered Batch, and the whole batch is handed to a
  Committer that applies it atomically: either every mutation lands or
  none does.

MUTATION VARIANTS:
  UpsertBlock        - persist a recalculated block schedule
  UpdateWorkOrderQty - set a work order's quantity-remaining
  FinishWorkOrder    - mark a work order finished (manual or detected)
  UpsertSyncHistory  - advance the "last sync" marker (exactly one per run)

OWNERSHIP:
  The Batch is an append-only buffer owned by one run. It is passed by
  ownership into Committer.Commit and discarded afterwards; no shared
  mutable state survives past a run.

SEE ALSO:
  - store.go: Committer contract
  - store/memory.go, store/sqlite: MutationStore implementations
*/
package planning

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MUTATION STORE - Write surface a committer binds to one transaction
// =============================================================================

// MutationStore is the write surface mutations apply themselves against.
// Committer implementations bind it to a transaction (sql.Tx, in-memory
// snapshot) so that Batch.Apply is all-or-nothing.
type MutationStore interface {
	UpsertBlockSchedule(ctx context.Context, block BlockSchedule) error
	UpdateWorkOrderQtyRemaining(ctx context.Context, id WorkOrderID, qty decimal.Decimal) error
	FinishWorkOrder(ctx context.Context, id WorkOrderID, finishedAt time.Time, manual bool) error
	UpsertSyncHistory(ctx context.Context, record SyncHistory) error
}

// =============================================================================
// MUTATION VARIANTS
// =============================================================================

// Mutation is one unit of pending change.
type Mutation interface {
	Apply(ctx context.Context, s MutationStore) error
	Kind() string
}

type UpsertBlock struct {
	Block BlockSchedule
}

func (m UpsertBlock) Apply(ctx context.Context, s MutationStore) error {
	return s.UpsertBlockSchedule(ctx, m.Block)
}
func (m UpsertBlock) Kind() string { return "upsert_block" }

type UpdateWorkOrderQty struct {
	WorkOrderID WorkOrderID
	Qty         decimal.Decimal
}

func (m UpdateWorkOrderQty) Apply(ctx context.Context, s MutationStore) error {
	return s.UpdateWorkOrderQtyRemaining(ctx, m.WorkOrderID, m.Qty)
}
func (m UpdateWorkOrderQty) Kind() string { return "update_work_order_qty" }

type FinishWorkOrder struct {
	WorkOrderID WorkOrderID
	FinishedAt  time.Time
	Manual      bool
}

func (m FinishWorkOrder) Apply(ctx context.Context, s MutationStore) error {
	return s.FinishWorkOrder(ctx, m.WorkOrderID, m.FinishedAt, m.Manual)
}
func (m FinishWorkOrder) Kind() string { return "finish_work_order" }

type UpsertSyncHistory struct {
	Record SyncHistory
}

func (m UpsertSyncHistory) Apply(ctx context.Context, s MutationStore) error {
	return s.UpsertSyncHistory(ctx, m.Record)
}
func (m UpsertSyncHistory) Kind() string { return "upsert_sync_history" }

// =============================================================================
// BATCH - Append-only ordered mutation buffer
// =============================================================================

type Batch struct {
	mutations []Mutation
}

func (b *Batch) Add(m Mutation) { b.mutations = append(b.mutations, m) }

func (b *Batch) Len() int { return len(b.mutations) }

// Mutations returns the staged mutations in order. The slice is the batch's
// backing store; callers must not mutate it.
func (b *Batch) Mutations() []Mutation { return b.mutations }

// Apply runs every mutation in order against s. It stops at the first
// failure; the committer owning s is responsible for rolling back.
func (b *Batch) Apply(ctx context.Context, s MutationStore) error {
	for i, m := range b.mutations {
		if err := m.Apply(ctx, s); err != nil {
			return &CommitError{Index: i, Kind: m.Kind(), Cause: err}
		}
	}
	return nil
}
