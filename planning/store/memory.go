// Package store provides in-memory implementations of the planning contracts.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/schedule-engine/planning"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements BlockScheduleStore, ShiftCalendar, SnapshotSource,
// SyncHistoryStore, MutationStore and Committer against process memory.
// Commit is atomic via snapshot/rollback, mirroring what the SQLite store
// gets from sql.Tx.
type Memory struct {
	mu         sync.RWMutex
	blocks     map[planning.BlockID]planning.BlockSchedule
	workOrders map[planning.WorkOrderID]planning.WorkOrder
	shifts     map[planning.AssetID][]planning.ShiftWindow
	snapshots  []planning.QtySnapshot
	history    map[string]planning.SyncHistory
}

func NewMemory() *Memory {
	return &Memory{
		blocks:     make(map[planning.BlockID]planning.BlockSchedule),
		workOrders: make(map[planning.WorkOrderID]planning.WorkOrder),
		shifts:     make(map[planning.AssetID][]planning.ShiftWindow),
		history:    make(map[string]planning.SyncHistory),
	}
}

// =============================================================================
// SEEDING AND INSPECTION
// =============================================================================

func (m *Memory) PutWorkOrder(wo planning.WorkOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workOrders[wo.ID] = wo
}

// PutBlock stores a block. Only WorkOrderID is persisted; the WorkOrder
// view is resolved on read.
func (m *Memory) PutBlock(b planning.BlockSchedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.WorkOrder = nil
	m.blocks[b.ID] = b
}

func (m *Memory) PutShifts(assetID planning.AssetID, windows ...planning.ShiftWindow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts[assetID] = append(m.shifts[assetID], windows...)
}

// SetSnapshots replaces the feed's response set.
func (m *Memory) SetSnapshots(snaps ...planning.QtySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append([]planning.QtySnapshot{}, snaps...)
}

func (m *Memory) Block(id planning.BlockID) (planning.BlockSchedule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[id]
	return b, ok
}

func (m *Memory) WorkOrderByID(id planning.WorkOrderID) (planning.WorkOrder, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wo, ok := m.workOrders[id]
	return wo, ok
}

// =============================================================================
// BLOCK SCHEDULE STORE
// =============================================================================

func (m *Memory) CandidateBlocks(_ context.Context, asOf time.Time, workOrderID *planning.WorkOrderID) ([]planning.BlockSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []planning.BlockSchedule
	for _, b := range m.blocks {
		if b.Type != planning.BlockWorkOrder || !b.EndTime.After(asOf) || b.WorkOrderID == "" {
			continue
		}
		wo, ok := m.workOrders[b.WorkOrderID]
		if !ok || wo.FinishedManually {
			continue
		}
		if workOrderID != nil && wo.ID != *workOrderID {
			continue
		}
		woCopy := wo
		b.WorkOrder = &woCopy
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

// =============================================================================
// SHIFT CALENDAR
// =============================================================================

func (m *Memory) WorkingWindows(_ context.Context, assetID planning.AssetID, from time.Time) ([]planning.ShiftWindow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []planning.ShiftWindow
	for _, w := range m.shifts[assetID] {
		if w.End.After(from) {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	return result, nil
}

// =============================================================================
// SNAPSHOT SOURCE
// =============================================================================

func (m *Memory) QtyRemaining(_ context.Context, workOrderNumbers []string) ([]planning.QtySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]bool, len(workOrderNumbers))
	for _, n := range workOrderNumbers {
		wanted[n] = true
	}
	var result []planning.QtySnapshot
	for _, s := range m.snapshots {
		if wanted[s.WorkOrderNumber] {
			result = append(result, s)
		}
	}
	return result, nil
}

// =============================================================================
// SYNC HISTORY STORE
// =============================================================================

func (m *Memory) LastSync(_ context.Context, syncType string) (*planning.SyncHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if h, ok := m.history[syncType]; ok {
		return &h, nil
	}
	return nil, nil
}

// =============================================================================
// MUTATION STORE
// =============================================================================

func (m *Memory) UpsertBlockSchedule(_ context.Context, block planning.BlockSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertBlockLocked(block)
}

func (m *Memory) upsertBlockLocked(block planning.BlockSchedule) error {
	block.WorkOrder = nil
	m.blocks[block.ID] = block
	return nil
}

func (m *Memory) UpdateWorkOrderQtyRemaining(_ context.Context, id planning.WorkOrderID, qty decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateQtyLocked(id, qty)
}

func (m *Memory) updateQtyLocked(id planning.WorkOrderID, qty decimal.Decimal) error {
	wo, ok := m.workOrders[id]
	if !ok {
		return planning.ErrWorkOrderNotFound
	}
	wo.QtyRemaining = qty
	m.workOrders[id] = wo
	return nil
}

func (m *Memory) FinishWorkOrder(_ context.Context, id planning.WorkOrderID, finishedAt time.Time, manual bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finishLocked(id, finishedAt, manual)
}

func (m *Memory) finishLocked(id planning.WorkOrderID, finishedAt time.Time, manual bool) error {
	wo, ok := m.workOrders[id]
	if !ok {
		return planning.ErrWorkOrderNotFound
	}
	at := finishedAt
	wo.FinishedAt = &at
	wo.FinishedManually = manual
	m.workOrders[id] = wo
	return nil
}

func (m *Memory) UpsertSyncHistory(_ context.Context, record planning.SyncHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertHistoryLocked(record)
	return nil
}

func (m *Memory) upsertHistoryLocked(record planning.SyncHistory) {
	m.history[record.Type] = record
}

// =============================================================================
// COMMITTER - Snapshot/rollback transactionality
// =============================================================================

// Commit applies the batch atomically. The state is snapshotted first and
// restored if any mutation fails.
func (m *Memory) Commit(ctx context.Context, batch *planning.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := batch.Apply(ctx, &txMemoryView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	blocks     map[planning.BlockID]planning.BlockSchedule
	workOrders map[planning.WorkOrderID]planning.WorkOrder
	history    map[string]planning.SyncHistory
}

func (m *Memory) snapshot() memorySnapshot {
	blocks := make(map[planning.BlockID]planning.BlockSchedule, len(m.blocks))
	for k, v := range m.blocks {
		blocks[k] = v
	}
	workOrders := make(map[planning.WorkOrderID]planning.WorkOrder, len(m.workOrders))
	for k, v := range m.workOrders {
		workOrders[k] = v
	}
	history := make(map[string]planning.SyncHistory, len(m.history))
	for k, v := range m.history {
		history[k] = v
	}
	return memorySnapshot{blocks: blocks, workOrders: workOrders, history: history}
}

func (m *Memory) restore(s memorySnapshot) {
	m.blocks = s.blocks
	m.workOrders = s.workOrders
	m.history = s.history
}

// txMemoryView applies mutations under the lock Commit already holds.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) UpsertBlockSchedule(_ context.Context, block planning.BlockSchedule) error {
	return tv.parent.upsertBlockLocked(block)
}

func (tv *txMemoryView) UpdateWorkOrderQtyRemaining(_ context.Context, id planning.WorkOrderID, qty decimal.Decimal) error {
	return tv.parent.updateQtyLocked(id, qty)
}

func (tv *txMemoryView) FinishWorkOrder(_ context.Context, id planning.WorkOrderID, finishedAt time.Time, manual bool) error {
	return tv.parent.finishLocked(id, finishedAt, manual)
}

func (tv *txMemoryView) UpsertSyncHistory(_ context.Context, record planning.SyncHistory) error {
	tv.parent.upsertHistoryLocked(record)
	return nil
}
