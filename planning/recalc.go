/*
recalc.go - Duration and end-time recalculation under shift windows

PURPOSE:
  Pure computation: given the remaining quantity, production rate, overtime
  policy, and an asset's working windows, produce a new duration and a new
  start/end time for one schedule block.

ALGORITHM:
  1. required work-hours = remaining quantity / rate-per-hour
  2. If overtime is allowed for the order, the overtime policy may compress
     the elapsed time below the computed work-hours (the shortfall is
     compensated by overtime). The compression factor is a policy input,
     not a constant.
  3. Duration in minutes = elapsed hours * 60, rounded up to a whole minute
     so a block is never scheduled shorter than the required work.
  4. End time is found by walking the working windows forward from the
     block's start, consuming only time inside windows and skipping gaps.
     If the windows run out first, the end extends past the last window; a
     later sync reconciles it once the calendar reports further shifts.
  5. Start time is preserved unless reanchorStart is set, in which case it
     is pulled forward to the first working instant >= the current start.

EDGE CASES:
  - Rate zero is a precondition violation (ErrZeroRate); callers filter
    such blocks out before invoking RecalculateBlock.
  - No windows at all: duration is added directly to the start time.

SEE ALSO:
  - calendar.go: Window supplier contract
  - reconcile.go: The only production call site
*/
package planning

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OVERTIME POLICY - Pluggable elapsed-time compression
// =============================================================================

// OvertimePolicy maps required work-hours to elapsed schedule-hours for
// orders that allow overtime. The returned value may be smaller than the
// input (overtime absorbs the difference) but never larger.
type OvertimePolicy func(workHours decimal.Decimal) decimal.Decimal

// NoOvertime returns the identity policy: elapsed time equals work time.
func NoOvertime() OvertimePolicy {
	return func(workHours decimal.Decimal) decimal.Decimal { return workHours }
}

// CompressByFactor returns a policy dividing work-hours by factor (>= 1).
// A factor of 1.25 schedules four hours of elapsed time for every five
// hours of work, the remainder covered by overtime.
func CompressByFactor(factor decimal.Decimal) OvertimePolicy {
	one := decimal.NewFromInt(1)
	if factor.LessThan(one) {
		factor = one
	}
	return func(workHours decimal.Decimal) decimal.Decimal {
		return workHours.Div(factor)
	}
}

// =============================================================================
// RECALCULATOR - Pure block recalculation
// =============================================================================

// Recalculator recomputes a block's duration and start/end times.
// Overtime defaults to NoOvertime when nil.
type Recalculator struct {
	Overtime OvertimePolicy
}

func NewRecalculator(overtime OvertimePolicy) *Recalculator {
	if overtime == nil {
		overtime = NoOvertime()
	}
	return &Recalculator{Overtime: overtime}
}

// RecalculateBlock updates block in place.
//
// reanchorStart controls whether the start time may be pulled forward to the
// first available working instant >= the current start. The sync engine
// passes true: windows are fetched fresh each run, so reanchoring honors
// shifts added since the block was first scheduled.
func (r *Recalculator) RecalculateBlock(
	block *BlockSchedule,
	remainingQty decimal.Decimal,
	ratePerHour decimal.Decimal,
	overtimeAllowed bool,
	reanchorStart bool,
	windows []ShiftWindow,
) error {
	if ratePerHour.IsZero() {
		return ErrZeroRate
	}

	workHours := remainingQty.Div(ratePerHour)
	elapsed := workHours
	if overtimeAllowed {
		policy := r.Overtime
		if policy == nil {
			policy = NoOvertime()
		}
		elapsed = policy(workHours)
	}

	minutes := elapsed.Mul(decimal.NewFromInt(60)).Ceil().IntPart()
	if minutes < 0 {
		minutes = 0
	}
	block.DurationMinutes = minutes

	start := block.StartTime
	if reanchorStart {
		start = reanchor(start, windows)
	}

	block.StartTime = start
	block.EndTime = walkWindows(start, time.Duration(minutes)*time.Minute, windows)
	return nil
}

// reanchor pulls start forward to the first working instant >= start.
// If start already falls inside a window, or no window ends after it, start
// is unchanged.
func reanchor(start time.Time, windows []ShiftWindow) time.Time {
	for _, w := range windows {
		if !w.End.After(start) {
			continue
		}
		if w.Start.After(start) {
			return w.Start
		}
		return start
	}
	return start
}

// walkWindows consumes `remaining` of working time starting at `start`,
// counting only time inside windows and skipping the gaps between them.
// If the windows are exhausted first, the leftover is appended past the last
// window end (unbounded tail). With no windows at all this degenerates to
// start + remaining.
func walkWindows(start time.Time, remaining time.Duration, windows []ShiftWindow) time.Time {
	cursor := start
	for _, w := range windows {
		if !w.End.After(cursor) {
			continue
		}
		segStart := cursor
		if w.Start.After(segStart) {
			segStart = w.Start
		}
		avail := w.End.Sub(segStart)
		if avail >= remaining {
			return segStart.Add(remaining)
		}
		remaining -= avail
		cursor = w.End
	}
	return cursor.Add(remaining)
}
