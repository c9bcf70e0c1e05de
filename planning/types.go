/*
Package planning provides the work-order reconciliation and re-scheduling engine.

PURPOSE:
  This package contains the domain types and algorithms for keeping locally
  scheduled production blocks in sync with an external authoritative system.
  The external system reports how much quantity remains on each work order;
  this engine recomputes block durations and end times under shift-calendar
  constraints, detects silently completed work orders, and stages all
  resulting changes as one atomic mutation batch.

KEY CONCEPTS IN THIS FILE (types.go):
  - BlockSchedule: A scheduled interval of work on one asset
  - WorkOrder: A unit of production work consumed at a known rate
  - QtySnapshot: A point-in-time remaining-quantity record from the feed
  - ShiftWindow: A working-time interval for one asset
  - SyncHistory: "Last successful sync" marker, upserted every run

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for quantities and rates to avoid
     floating-point drift in duration math
  2. Type Safety: Strong typing for asset/work-order/block identifiers
  3. Atomicity: All staged changes commit together or not at all
  4. Detachment: Downstream re-sequencing never blocks a committed run

USAGE:
  engine := planning.NewEngine(blocks, feed, calendar, committer, resequencer)
  err := engine.SyncWorkOrderQtyRemaining(ctx, nil)

SEE ALSO:
  - recalc.go: Duration and end-time recalculation under shift windows
  - reconcile.go: The sync orchestration algorithm
  - mutation.go: Mutation variants and the batch collector
  - store.go: External collaborator contracts
*/
package planning

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AssetID string
type WorkOrderID string
type BlockID string

// =============================================================================
// BLOCK SCHEDULE - A scheduled interval of work on one asset
// =============================================================================

// BlockType tags what a schedule block represents. Only work-order blocks
// participate in quantity reconciliation.
type BlockType string

const (
	BlockWorkOrder   BlockType = "work_order"
	BlockMaintenance BlockType = "maintenance"
	BlockDowntime    BlockType = "downtime"
)

// BlockSchedule is a scheduled time interval during which an asset performs
// work. Invariant: EndTime >= StartTime.
//
// WorkOrder is populated by BlockScheduleStore.CandidateBlocks; it is a
// read-only view for the duration of one sync run. Persisted block rows carry
// only WorkOrderID.
type BlockSchedule struct {
	ID              BlockID
	AssetID         AssetID
	AssetName       string
	Type            BlockType
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int64

	WorkOrderID WorkOrderID // empty unless Type == BlockWorkOrder
	WorkOrder   *WorkOrder
}

// =============================================================================
// WORK ORDER - A unit of production work
// =============================================================================

// WorkOrder is a unit of production work with a target quantity, consumed at
// a known rate.
//
// RatePerHour is the quantity produced per working hour. A zero rate excludes
// the order's blocks from recalculation (required hours = qty / rate would be
// undefined).
type WorkOrder struct {
	ID               WorkOrderID
	Number           string // external work-order number, join key to the feed
	RatePerHour      decimal.Decimal
	ChangeOvertime   bool // overtime policy may compress elapsed time
	QtyRemaining     decimal.Decimal
	FinishedManually bool
	FinishedAt       *time.Time // set by a finish action, manual or detected
	StartTime        time.Time  // earliest schedule start across the order's blocks
}

// =============================================================================
// QUANTITY SNAPSHOT - Point-in-time record from the external feed
// =============================================================================

// QtySnapshot is keyed by (work-order number, asset name). Transient: fetched
// fresh each run, never persisted verbatim.
type QtySnapshot struct {
	WorkOrderNumber string          `json:"workorder_number"`
	AssetName       string          `json:"asset_name"`
	QtyRemaining    decimal.Decimal `json:"qty_remaining"`
}

// =============================================================================
// SHIFT WINDOW - Working-time interval for one asset
// =============================================================================

// ShiftWindow is a contiguous interval during which an asset is available to
// work. Windows supplied by a ShiftCalendar are non-overlapping and ordered
// ascending by Start.
type ShiftWindow struct {
	Start time.Time
	End   time.Time
}

func (w ShiftWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

func (w ShiftWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// =============================================================================
// SYNC HISTORY - "Last successful sync" marker
// =============================================================================

// SyncTypeWorkOrderQtyRemaining is the sync-history type written by this
// engine. One row per type; upserted every run so last-sync always advances.
const SyncTypeWorkOrderQtyRemaining = "WorkOrderQtyRemaining"

type SyncHistory struct {
	Type     string
	SyncedAt time.Time
}
