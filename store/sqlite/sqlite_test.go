package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/schedule-engine/planning"
	"github.com/warp/schedule-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func june(d, hour int) time.Time {
	return time.Date(2025, time.June, d, hour, 0, 0, 0, time.UTC)
}

func seedOrder(t *testing.T, s *sqlite.Store, id, number string, rate int, start time.Time) {
	t.Helper()
	require.NoError(t, s.InsertWorkOrder(context.Background(), planning.WorkOrder{
		ID:          planning.WorkOrderID(id),
		Number:      number,
		RatePerHour: decimal.NewFromInt(int64(rate)),
		StartTime:   start,
	}))
}

func seedBlock(t *testing.T, s *sqlite.Store, id, woID string, asset string, start, end time.Time) {
	t.Helper()
	require.NoError(t, s.InsertBlockSchedule(context.Background(), planning.BlockSchedule{
		ID:          planning.BlockID(id),
		AssetID:     planning.AssetID(asset),
		AssetName:   asset,
		Type:        planning.BlockWorkOrder,
		StartTime:   start,
		EndTime:     end,
		WorkOrderID: planning.WorkOrderID(woID),
	}))
}

// =============================================================================
// CANDIDATE QUERY
// =============================================================================

func TestCandidateBlocks_JoinAndOrder(t *testing.T) {
	// GIVEN: Two future blocks out of start-time order and one past block
	// WHEN: Querying candidates
	// THEN: Future blocks come back ordered by start with the order joined in

	s := newTestStore(t)
	seedOrder(t, s, "wo-1", "WO-1", 10, june(1, 8))
	seedBlock(t, s, "b-late", "wo-1", "Mill-3", june(3, 8), june(3, 16))
	seedBlock(t, s, "b-early", "wo-1", "Mill-3", june(2, 8), june(2, 16))
	seedBlock(t, s, "b-past", "wo-1", "Mill-3", june(1, 8), june(1, 16))

	blocks, err := s.CandidateBlocks(context.Background(), june(2, 0), nil)
	require.NoError(t, err)

	require.Len(t, blocks, 2)
	assert.Equal(t, planning.BlockID("b-early"), blocks[0].ID)
	assert.Equal(t, planning.BlockID("b-late"), blocks[1].ID)
	require.NotNil(t, blocks[0].WorkOrder)
	assert.Equal(t, "WO-1", blocks[0].WorkOrder.Number)
	assert.True(t, blocks[0].WorkOrder.RatePerHour.Equal(decimal.NewFromInt(10)))
}

func TestCandidateBlocks_ExcludesManuallyFinished(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.InsertWorkOrder(context.Background(), planning.WorkOrder{
		ID: "wo-done", Number: "WO-9", RatePerHour: decimal.NewFromInt(5),
		FinishedManually: true, StartTime: june(1, 8),
	}))
	seedBlock(t, s, "b-1", "wo-done", "Mill-3", june(2, 8), june(2, 16))

	blocks, err := s.CandidateBlocks(context.Background(), june(2, 0), nil)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestCandidateBlocks_WorkOrderFilter(t *testing.T) {
	s := newTestStore(t)
	seedOrder(t, s, "wo-1", "WO-1", 10, june(1, 8))
	seedOrder(t, s, "wo-2", "WO-2", 10, june(1, 8))
	seedBlock(t, s, "b-1", "wo-1", "Mill-3", june(2, 8), june(2, 16))
	seedBlock(t, s, "b-2", "wo-2", "Mill-4", june(2, 8), june(2, 16))

	id := planning.WorkOrderID("wo-2")
	blocks, err := s.CandidateBlocks(context.Background(), june(2, 0), &id)
	require.NoError(t, err)

	require.Len(t, blocks, 1)
	assert.Equal(t, planning.BlockID("b-2"), blocks[0].ID)
}

// =============================================================================
// SHIFT QUERY
// =============================================================================

func TestWorkingWindows_OrderedEndsAfter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertShift(ctx, "sh-2", "asset-a", planning.ShiftWindow{Start: june(3, 8), End: june(3, 16)}))
	require.NoError(t, s.InsertShift(ctx, "sh-1", "asset-a", planning.ShiftWindow{Start: june(2, 8), End: june(2, 16)}))
	require.NoError(t, s.InsertShift(ctx, "sh-0", "asset-a", planning.ShiftWindow{Start: june(1, 8), End: june(1, 16)}))
	require.NoError(t, s.InsertShift(ctx, "sh-b", "asset-b", planning.ShiftWindow{Start: june(2, 8), End: june(2, 16)}))

	windows, err := s.WorkingWindows(ctx, "asset-a", june(2, 0))
	require.NoError(t, err)

	require.Len(t, windows, 2)
	assert.Equal(t, june(2, 8), windows[0].Start)
	assert.Equal(t, june(3, 8), windows[1].Start)
}

// =============================================================================
// ATOMIC COMMIT
// =============================================================================

func TestCommit_AppliesBatchAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedOrder(t, s, "wo-1", "WO-1", 10, june(1, 8))
	seedBlock(t, s, "b-1", "wo-1", "Mill-3", june(2, 8), june(2, 16))

	batch := &planning.Batch{}
	batch.Add(planning.UpsertBlock{Block: planning.BlockSchedule{
		ID: "b-1", AssetID: "Mill-3", AssetName: "Mill-3", Type: planning.BlockWorkOrder,
		StartTime: june(2, 8), EndTime: june(2, 12), DurationMinutes: 240, WorkOrderID: "wo-1",
	}})
	batch.Add(planning.UpdateWorkOrderQty{WorkOrderID: "wo-1", Qty: decimal.NewFromInt(40)})
	batch.Add(planning.UpsertSyncHistory{Record: planning.SyncHistory{
		Type: planning.SyncTypeWorkOrderQtyRemaining, SyncedAt: june(2, 9),
	}})

	require.NoError(t, s.Commit(ctx, batch))

	blk, err := s.BlockByID(ctx, "b-1")
	require.NoError(t, err)
	assert.True(t, blk.EndTime.Equal(june(2, 12)))
	assert.Equal(t, int64(240), blk.DurationMinutes)

	wo, err := s.WorkOrderByID(ctx, "wo-1")
	require.NoError(t, err)
	assert.True(t, wo.QtyRemaining.Equal(decimal.NewFromInt(40)))

	history, err := s.LastSync(ctx, planning.SyncTypeWorkOrderQtyRemaining)
	require.NoError(t, err)
	require.NotNil(t, history)
	assert.True(t, history.SyncedAt.Equal(june(2, 9)))
}

func TestCommit_RollsBackWholeBatchOnFailure(t *testing.T) {
	// GIVEN: A batch whose last mutation updates a missing work order
	// WHEN: Committing
	// THEN: The earlier block upsert and history upsert are rolled back too

	s := newTestStore(t)
	ctx := context.Background()
	seedOrder(t, s, "wo-1", "WO-1", 10, june(1, 8))
	seedBlock(t, s, "b-1", "wo-1", "Mill-3", june(2, 8), june(2, 16))

	batch := &planning.Batch{}
	batch.Add(planning.UpsertBlock{Block: planning.BlockSchedule{
		ID: "b-1", AssetID: "Mill-3", AssetName: "Mill-3", Type: planning.BlockWorkOrder,
		StartTime: june(2, 8), EndTime: june(2, 12), DurationMinutes: 240, WorkOrderID: "wo-1",
	}})
	batch.Add(planning.UpsertSyncHistory{Record: planning.SyncHistory{
		Type: planning.SyncTypeWorkOrderQtyRemaining, SyncedAt: june(2, 9),
	}})
	batch.Add(planning.UpdateWorkOrderQty{WorkOrderID: "wo-missing", Qty: decimal.NewFromInt(1)})

	err := s.Commit(ctx, batch)
	require.Error(t, err)
	assert.ErrorIs(t, err, planning.ErrCommitFailed)

	blk, err := s.BlockByID(ctx, "b-1")
	require.NoError(t, err)
	assert.True(t, blk.EndTime.Equal(june(2, 16)), "block upsert must be rolled back")

	history, err := s.LastSync(ctx, planning.SyncTypeWorkOrderQtyRemaining)
	require.NoError(t, err)
	assert.Nil(t, history, "history upsert must be rolled back")
}

func TestFinishWorkOrder_SetsTimestampAndFlag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedOrder(t, s, "wo-1", "WO-1", 10, june(1, 8))

	batch := &planning.Batch{}
	batch.Add(planning.FinishWorkOrder{WorkOrderID: "wo-1", FinishedAt: june(2, 9), Manual: false})
	require.NoError(t, s.Commit(ctx, batch))

	wo, err := s.WorkOrderByID(ctx, "wo-1")
	require.NoError(t, err)
	require.NotNil(t, wo.FinishedAt)
	assert.True(t, wo.FinishedAt.Equal(june(2, 9)))
	assert.False(t, wo.FinishedManually)
}
