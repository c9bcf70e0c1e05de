/*
reconcile.go - Work-order quantity sync orchestration

PURPOSE:
  One sync run pulls authoritative remaining quantities from the external
  feed, reconciles them against the locally scheduled blocks, recalculates
  matched blocks under the shift calendar, detects silently completed work
  orders, commits every resulting change atomically, and finally fires one
  detached re-sequencing request per affected asset.

RUN SHAPE (sequential, no shared state across runs):
  1. Select candidate blocks (ordered by start time)
  2. Derive the distinct referenced work orders (first occurrence wins)
  3. Fetch quantity snapshots for that number set in one batched request
  4. Match each snapshot to its single block, recalculate, stage an upsert
  5. Sum snapshot quantities per order, stage quantity updates
  6. Orders absent from the feed with a start time in the past: stage finish
  7. Stage exactly one sync-history upsert (even on an empty run)
  8. Commit the batch atomically
  9. Per asset, enqueue a re-sequencing request anchored at the earliest
     updated block (fire-and-forget, outside the transaction)

FAILURE SEMANTICS:
  Fetch and commit failures abort the run with nothing persisted. The next
  scheduled invocation retries from scratch. Re-sequencing failures are
  reported on the worker's own channel and never affect the committed run.

SEE ALSO:
  - recalc.go: Step 4's block recalculation
  - mutation.go: Batch collector
  - store.go: Collaborator contracts
*/
package planning

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SyncSource labels re-sequencing requests fired by this engine.
const SyncSource = "UpdateWorkOrderQtyRemaining"

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs the quantity-remaining sync. One Engine may serve many runs;
// each run owns its working set and nothing is shared across concurrent
// invocations. Serialization of overlapping runs, if required, is the
// caller's concern.
type Engine struct {
	Blocks      BlockScheduleStore
	Feed        SnapshotSource
	Calendar    ShiftCalendar
	Committer   Committer
	Resequencer Resequencer
	Recalc      *Recalculator

	// Now supplies the run timestamp. Defaults to time.Now; tests override.
	Now func() time.Time

	Logger *log.Logger
}

func NewEngine(blocks BlockScheduleStore, feed SnapshotSource, calendar ShiftCalendar, committer Committer, resequencer Resequencer) *Engine {
	return &Engine{
		Blocks:      blocks,
		Feed:        feed,
		Calendar:    calendar,
		Committer:   committer,
		Resequencer: resequencer,
		Recalc:      NewRecalculator(nil),
		Now:         time.Now,
		Logger:      log.Default(),
	}
}

// matchedBlock pairs a snapshot with the single block it updates.
type matchedBlock struct {
	snap  QtySnapshot
	block *BlockSchedule
}

// SyncWorkOrderQtyRemaining runs one reconciliation. workOrderID restricts
// the run to one work order's blocks; nil processes the full eligible set.
func (e *Engine) SyncWorkOrderQtyRemaining(ctx context.Context, workOrderID *WorkOrderID) error {
	now := e.Now().UTC()
	runID := uuid.NewString()[:8]

	blocks, err := e.Blocks.CandidateBlocks(ctx, now, workOrderID)
	if err != nil {
		return fmt.Errorf("select candidate blocks: %w", err)
	}

	orders := distinctWorkOrders(blocks)

	var snaps []QtySnapshot
	if len(orders) > 0 {
		numbers := make([]string, 0, len(orders))
		for _, wo := range orders {
			numbers = append(numbers, wo.Number)
		}
		snaps, err = e.Feed.QtyRemaining(ctx, numbers)
		if err != nil {
			return &FeedError{WorkOrderNumbers: numbers, Cause: err}
		}
	}

	batch := &Batch{}

	// Match snapshots to blocks, then fetch each matched block's windows
	// concurrently before recalculating in snapshot order.
	matches := e.matchSnapshots(snaps, blocks)
	windows := make([][]ShiftWindow, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range matches {
		i, m := i, m
		g.Go(func() error {
			ws, err := e.Calendar.WorkingWindows(gctx, m.block.AssetID, m.block.StartTime)
			if err != nil {
				return fmt.Errorf("working windows for asset %s: %w", m.block.AssetID, err)
			}
			windows[i] = ws
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var updated []BlockSchedule
	for i, m := range matches {
		wo := m.block.WorkOrder
		err := e.Recalc.RecalculateBlock(m.block, m.snap.QtyRemaining, wo.RatePerHour, wo.ChangeOvertime, true, windows[i])
		if err != nil {
			return fmt.Errorf("recalculate block %s: %w", m.block.ID, err)
		}
		batch.Add(UpsertBlock{Block: *m.block})
		updated = append(updated, *m.block)
	}

	// Quantity updates: sum snapshot quantities per work-order number.
	// Orders with no snapshot at all are not updated here.
	sums := make(map[string]QtySnapshot, len(snaps))
	for _, snap := range snaps {
		sum := sums[snap.WorkOrderNumber]
		sum.WorkOrderNumber = snap.WorkOrderNumber
		sum.QtyRemaining = sum.QtyRemaining.Add(snap.QtyRemaining)
		sums[snap.WorkOrderNumber] = sum
	}
	for _, wo := range orders {
		if sum, ok := sums[wo.Number]; ok {
			batch.Add(UpdateWorkOrderQty{WorkOrderID: wo.ID, Qty: sum.QtyRemaining})
		}
	}

	// Finish detection: absence from the feed plus a start time already in
	// the past is an implicit completion signal.
	for _, wo := range orders {
		if _, ok := sums[wo.Number]; !ok && wo.StartTime.Before(now) {
			batch.Add(FinishWorkOrder{WorkOrderID: wo.ID, FinishedAt: now, Manual: false})
		}
	}

	// Exactly one sync-history upsert per run, even when nothing else was
	// staged, so "last sync time" always advances.
	batch.Add(UpsertSyncHistory{Record: SyncHistory{Type: SyncTypeWorkOrderQtyRemaining, SyncedAt: now}})

	if err := e.Committer.Commit(ctx, batch); err != nil {
		return fmt.Errorf("commit sync batch: %w", err)
	}

	e.Logger.Printf("[Sync %s] committed %d mutations (%d blocks updated, %d orders referenced)",
		runID, batch.Len(), len(updated), len(orders))

	// Detached continuation: one request per asset, anchored at the earliest
	// updated block. Outcome is not part of this run's result.
	for _, anchor := range earliestPerAsset(updated) {
		e.Resequencer.Enqueue(ResequenceRequest{
			ID:      uuid.NewString(),
			Source:  SyncSource,
			Offset:  0,
			AssetID: anchor.AssetID,
			Anchor:  anchor.StartTime,
		})
	}

	return nil
}

// matchSnapshots resolves each snapshot to the single candidate block with
// the same (work-order number, asset name); first match wins. Blocks whose
// work order has a zero rate are skipped: their duration is undefined.
func (e *Engine) matchSnapshots(snaps []QtySnapshot, blocks []BlockSchedule) []matchedBlock {
	var matches []matchedBlock
	for _, snap := range snaps {
		for i := range blocks {
			b := &blocks[i]
			if b.WorkOrder == nil || b.WorkOrder.Number != snap.WorkOrderNumber || b.AssetName != snap.AssetName {
				continue
			}
			if b.WorkOrder.RatePerHour.IsZero() {
				break
			}
			matches = append(matches, matchedBlock{snap: snap, block: b})
			break
		}
	}
	return matches
}

// distinctWorkOrders derives the referenced work orders from the candidate
// blocks, first occurrence per identifier. Blocks are ordered by start time,
// so the first occurrence also carries the order's earliest block.
func distinctWorkOrders(blocks []BlockSchedule) []*WorkOrder {
	var orders []*WorkOrder
	seen := make(map[WorkOrderID]bool)
	for i := range blocks {
		wo := blocks[i].WorkOrder
		if wo == nil || seen[wo.ID] {
			continue
		}
		seen[wo.ID] = true
		orders = append(orders, wo)
	}
	return orders
}

// earliestPerAsset selects, for each asset with updated blocks, the block
// with the minimum start time. Explicit min-by-key reduction; iteration
// order of the result is not significant.
func earliestPerAsset(updated []BlockSchedule) map[AssetID]BlockSchedule {
	earliest := make(map[AssetID]BlockSchedule)
	for _, b := range updated {
		cur, ok := earliest[b.AssetID]
		if !ok || b.StartTime.Before(cur.StartTime) {
			earliest[b.AssetID] = b
		}
	}
	return earliest
}
