package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/schedule-engine/planning"
	"github.com/warp/schedule-engine/planning/store"
)

func june(d, hour int) time.Time {
	return time.Date(2025, time.June, d, hour, 0, 0, 0, time.UTC)
}

func TestMemory_CandidateBlocks_FiltersAndOrders(t *testing.T) {
	// GIVEN: A mix of block types, past blocks, and a manually finished order
	// WHEN: Querying candidates
	// THEN: Only future work-order blocks of unfinished orders, by start time

	mem := store.NewMemory()
	mem.PutWorkOrder(planning.WorkOrder{ID: "wo-1", Number: "WO-1", RatePerHour: decimal.NewFromInt(5)})
	mem.PutWorkOrder(planning.WorkOrder{ID: "wo-done", Number: "WO-9", RatePerHour: decimal.NewFromInt(5), FinishedManually: true})

	mem.PutBlock(planning.BlockSchedule{ID: "b-late", AssetID: "a", AssetName: "A", Type: planning.BlockWorkOrder,
		StartTime: june(3, 8), EndTime: june(3, 16), WorkOrderID: "wo-1"})
	mem.PutBlock(planning.BlockSchedule{ID: "b-early", AssetID: "a", AssetName: "A", Type: planning.BlockWorkOrder,
		StartTime: june(2, 8), EndTime: june(2, 16), WorkOrderID: "wo-1"})
	mem.PutBlock(planning.BlockSchedule{ID: "b-past", AssetID: "a", AssetName: "A", Type: planning.BlockWorkOrder,
		StartTime: june(1, 8), EndTime: june(1, 16), WorkOrderID: "wo-1"})
	mem.PutBlock(planning.BlockSchedule{ID: "b-maint", AssetID: "a", AssetName: "A", Type: planning.BlockMaintenance,
		StartTime: june(2, 8), EndTime: june(2, 16)})
	mem.PutBlock(planning.BlockSchedule{ID: "b-finished", AssetID: "a", AssetName: "A", Type: planning.BlockWorkOrder,
		StartTime: june(2, 8), EndTime: june(2, 16), WorkOrderID: "wo-done"})

	blocks, err := mem.CandidateBlocks(context.Background(), june(2, 0), nil)
	require.NoError(t, err)

	require.Len(t, blocks, 2)
	assert.Equal(t, planning.BlockID("b-early"), blocks[0].ID)
	assert.Equal(t, planning.BlockID("b-late"), blocks[1].ID)
	require.NotNil(t, blocks[0].WorkOrder)
	assert.Equal(t, "WO-1", blocks[0].WorkOrder.Number)
}

func TestMemory_Commit_RollsBackOnFailure(t *testing.T) {
	// GIVEN: A batch whose second mutation references a missing work order
	// WHEN: Committing
	// THEN: The first mutation's block upsert is rolled back too

	mem := store.NewMemory()
	mem.PutWorkOrder(planning.WorkOrder{ID: "wo-1", Number: "WO-1", RatePerHour: decimal.NewFromInt(5)})
	mem.PutBlock(planning.BlockSchedule{ID: "b-1", AssetID: "a", AssetName: "A", Type: planning.BlockWorkOrder,
		StartTime: june(2, 8), EndTime: june(2, 16), WorkOrderID: "wo-1"})

	resized := planning.BlockSchedule{ID: "b-1", AssetID: "a", AssetName: "A", Type: planning.BlockWorkOrder,
		StartTime: june(2, 8), EndTime: june(2, 12), DurationMinutes: 240, WorkOrderID: "wo-1"}

	batch := &planning.Batch{}
	batch.Add(planning.UpsertBlock{Block: resized})
	batch.Add(planning.UpdateWorkOrderQty{WorkOrderID: "wo-missing", Qty: decimal.NewFromInt(1)})

	err := mem.Commit(context.Background(), batch)
	require.Error(t, err)
	assert.ErrorIs(t, err, planning.ErrCommitFailed)
	assert.ErrorIs(t, err, planning.ErrWorkOrderNotFound)

	blk, ok := mem.Block("b-1")
	require.True(t, ok)
	assert.Equal(t, june(2, 16), blk.EndTime, "upsert must be rolled back")
}

func TestMemory_Commit_AppliesWholeBatch(t *testing.T) {
	mem := store.NewMemory()
	mem.PutWorkOrder(planning.WorkOrder{ID: "wo-1", Number: "WO-1", RatePerHour: decimal.NewFromInt(5)})

	batch := &planning.Batch{}
	batch.Add(planning.UpdateWorkOrderQty{WorkOrderID: "wo-1", Qty: decimal.NewFromInt(7)})
	batch.Add(planning.FinishWorkOrder{WorkOrderID: "wo-1", FinishedAt: june(2, 9), Manual: false})
	batch.Add(planning.UpsertSyncHistory{Record: planning.SyncHistory{Type: planning.SyncTypeWorkOrderQtyRemaining, SyncedAt: june(2, 9)}})

	require.NoError(t, mem.Commit(context.Background(), batch))

	wo, _ := mem.WorkOrderByID("wo-1")
	assert.True(t, wo.QtyRemaining.Equal(decimal.NewFromInt(7)))
	require.NotNil(t, wo.FinishedAt)
	assert.Equal(t, june(2, 9), *wo.FinishedAt)

	history, err := mem.LastSync(context.Background(), planning.SyncTypeWorkOrderQtyRemaining)
	require.NoError(t, err)
	require.NotNil(t, history)
	assert.Equal(t, june(2, 9), history.SyncedAt)
}

func TestMemory_WorkingWindows_DropsEndedShifts(t *testing.T) {
	mem := store.NewMemory()
	mem.PutShifts("a",
		planning.ShiftWindow{Start: june(1, 8), End: june(1, 16)},
		planning.ShiftWindow{Start: june(3, 8), End: june(3, 16)},
		planning.ShiftWindow{Start: june(2, 8), End: june(2, 16)},
	)

	windows, err := mem.WorkingWindows(context.Background(), "a", june(2, 0))
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, june(2, 8), windows[0].Start)
	assert.Equal(t, june(3, 8), windows[1].Start)
}
