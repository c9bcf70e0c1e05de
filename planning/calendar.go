package planning

import (
	"context"
	"sort"
	"time"
)

// =============================================================================
// SHIFT CALENDAR - External accessor for working-time windows
// =============================================================================

// ShiftCalendar supplies the future working-time windows of an asset.
//
// Contract: every returned window has End > from, windows are non-overlapping
// and ordered ascending by Start. An empty result is valid (no known future
// shifts). No side effects.
type ShiftCalendar interface {
	WorkingWindows(ctx context.Context, assetID AssetID, from time.Time) ([]ShiftWindow, error)
}

// =============================================================================
// FIXED CALENDAR - Static windows per asset (tests, dev)
// =============================================================================

// FixedCalendar serves a fixed window set per asset. Useful for tests and
// for environments without a shift system.
type FixedCalendar struct {
	Windows map[AssetID][]ShiftWindow
}

func NewFixedCalendar() *FixedCalendar {
	return &FixedCalendar{Windows: make(map[AssetID][]ShiftWindow)}
}

func (c *FixedCalendar) Add(assetID AssetID, windows ...ShiftWindow) {
	c.Windows[assetID] = append(c.Windows[assetID], windows...)
}

func (c *FixedCalendar) WorkingWindows(_ context.Context, assetID AssetID, from time.Time) ([]ShiftWindow, error) {
	var result []ShiftWindow
	for _, w := range c.Windows[assetID] {
		if w.End.After(from) {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	return result, nil
}
