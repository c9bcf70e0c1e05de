/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the planning contracts (BlockScheduleStore, ShiftCalendar,
  SyncHistoryStore, MutationStore, Committer) using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

ATOMIC COMMIT:
  Committer.Commit wraps the whole mutation batch in one sql.Tx. Either
  every staged mutation lands or none does; a failure mid-batch rolls the
  transaction back and leaves all entities in their pre-run state.

KEY TABLES:
  work_orders:      Production work orders with rate and quantity remaining
  block_schedules:  Scheduled intervals per asset, linked to work orders
  shifts:           Working-time windows per asset
  sync_history:     One row per sync type, upserted every run

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/schedule.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := planning.NewEngine(store, feed, store, store, worker)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - planning/store.go: Interface definitions
  - planning/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/schedule-engine/planning"
)

// timeLayout is fixed-width so stored timestamps compare lexicographically.
// RFC3339Nano would trim trailing zeros and break ORDER BY / range filters.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements the planning storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS work_orders (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL,
		rate_per_hour TEXT NOT NULL,
		change_overtime BOOLEAN NOT NULL DEFAULT FALSE,
		qty_remaining TEXT NOT NULL DEFAULT '0',
		finished_manually BOOLEAN NOT NULL DEFAULT FALSE,
		finished_at TEXT,
		start_time TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_orders_number
		ON work_orders(number);

	CREATE TABLE IF NOT EXISTS block_schedules (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL,
		asset_name TEXT NOT NULL,
		block_type TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		work_order_id TEXT,
		FOREIGN KEY (work_order_id) REFERENCES work_orders(id)
	);

	-- Candidate selection (hot path): type + end-time filter, start-time order
	CREATE INDEX IF NOT EXISTS idx_blocks_type_end
		ON block_schedules(block_type, end_time);
	CREATE INDEX IF NOT EXISTS idx_blocks_work_order
		ON block_schedules(work_order_id) WHERE work_order_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_blocks_asset_start
		ON block_schedules(asset_id, start_time);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_shifts_asset_end
		ON shifts(asset_id, end_time);

	-- One row per sync type; upserted every run
	CREATE TABLE IF NOT EXISTS sync_history (
		sync_type TEXT PRIMARY KEY,
		synced_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SEEDING - Used by setup code and tests
// =============================================================================

func (s *Store) InsertWorkOrder(ctx context.Context, wo planning.WorkOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var finishedAt any
	if wo.FinishedAt != nil {
		finishedAt = wo.FinishedAt.UTC().Format(timeLayout)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO work_orders (id, number, rate_per_hour, change_overtime, qty_remaining, finished_manually, finished_at, start_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(wo.ID), wo.Number, wo.RatePerHour.String(), wo.ChangeOvertime,
		wo.QtyRemaining.String(), wo.FinishedManually, finishedAt, wo.StartTime.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert work order: %w", err)
	}
	return nil
}

func (s *Store) InsertBlockSchedule(ctx context.Context, b planning.BlockSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertBlock(ctx, s.db, b)
}

func (s *Store) InsertShift(ctx context.Context, id string, assetID planning.AssetID, w planning.ShiftWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (id, asset_id, start_time, end_time) VALUES (?, ?, ?, ?)`,
		id, string(assetID), w.Start.UTC().Format(timeLayout), w.End.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert shift: %w", err)
	}
	return nil
}

// =============================================================================
// BLOCK SCHEDULE STORE
// =============================================================================

// CandidateBlocks returns work-order-linked blocks ending after asOf whose
// work order was not manually finished, ordered by start time, with the
// WorkOrder view populated from the join.
func (s *Store) CandidateBlocks(ctx context.Context, asOf time.Time, workOrderID *planning.WorkOrderID) ([]planning.BlockSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT b.id, b.asset_id, b.asset_name, b.block_type, b.start_time, b.end_time, b.duration_minutes,
		       w.id, w.number, w.rate_per_hour, w.change_overtime, w.qty_remaining, w.finished_manually, w.finished_at, w.start_time
		FROM block_schedules b
		JOIN work_orders w ON w.id = b.work_order_id
		WHERE b.block_type = ? AND b.end_time > ? AND w.finished_manually = FALSE`
	args := []any{string(planning.BlockWorkOrder), asOf.UTC().Format(timeLayout)}
	if workOrderID != nil {
		query += ` AND w.id = ?`
		args = append(args, string(*workOrderID))
	}
	query += ` ORDER BY b.start_time ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidate blocks: %w", err)
	}
	defer rows.Close()

	var result []planning.BlockSchedule
	for rows.Next() {
		b, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func scanCandidate(rows *sql.Rows) (planning.BlockSchedule, error) {
	var (
		b          planning.BlockSchedule
		wo         planning.WorkOrder
		bStart     string
		bEnd       string
		rate       string
		qty        string
		finishedAt sql.NullString
		woStart    string
	)
	err := rows.Scan(&b.ID, &b.AssetID, &b.AssetName, &b.Type, &bStart, &bEnd, &b.DurationMinutes,
		&wo.ID, &wo.Number, &rate, &wo.ChangeOvertime, &qty, &wo.FinishedManually, &finishedAt, &woStart)
	if err != nil {
		return b, fmt.Errorf("scan candidate block: %w", err)
	}
	if b.StartTime, err = time.Parse(timeLayout, bStart); err != nil {
		return b, fmt.Errorf("parse block start: %w", err)
	}
	if b.EndTime, err = time.Parse(timeLayout, bEnd); err != nil {
		return b, fmt.Errorf("parse block end: %w", err)
	}
	if wo.RatePerHour, err = decimal.NewFromString(rate); err != nil {
		return b, fmt.Errorf("parse rate: %w", err)
	}
	if wo.QtyRemaining, err = decimal.NewFromString(qty); err != nil {
		return b, fmt.Errorf("parse qty remaining: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return b, fmt.Errorf("parse finished at: %w", err)
		}
		wo.FinishedAt = &t
	}
	if wo.StartTime, err = time.Parse(timeLayout, woStart); err != nil {
		return b, fmt.Errorf("parse work order start: %w", err)
	}
	b.WorkOrderID = wo.ID
	b.WorkOrder = &wo
	return b, nil
}

// =============================================================================
// SHIFT CALENDAR
// =============================================================================

func (s *Store) WorkingWindows(ctx context.Context, assetID planning.AssetID, from time.Time) ([]planning.ShiftWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT start_time, end_time FROM shifts
		WHERE asset_id = ? AND end_time > ?
		ORDER BY start_time ASC`,
		string(assetID), from.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("query shifts: %w", err)
	}
	defer rows.Close()

	var result []planning.ShiftWindow
	for rows.Next() {
		var startStr, endStr string
		if err := rows.Scan(&startStr, &endStr); err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		var w planning.ShiftWindow
		if w.Start, err = time.Parse(timeLayout, startStr); err != nil {
			return nil, fmt.Errorf("parse shift start: %w", err)
		}
		if w.End, err = time.Parse(timeLayout, endStr); err != nil {
			return nil, fmt.Errorf("parse shift end: %w", err)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// =============================================================================
// SYNC HISTORY STORE
// =============================================================================

func (s *Store) LastSync(ctx context.Context, syncType string) (*planning.SyncHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var syncedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT synced_at FROM sync_history WHERE sync_type = ?`, syncType).Scan(&syncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query sync history: %w", err)
	}
	t, err := time.Parse(timeLayout, syncedAt)
	if err != nil {
		return nil, fmt.Errorf("parse synced at: %w", err)
	}
	return &planning.SyncHistory{Type: syncType, SyncedAt: t}, nil
}

// =============================================================================
// WORK ORDER READ - For the API and tests
// =============================================================================

func (s *Store) WorkOrderByID(ctx context.Context, id planning.WorkOrderID) (*planning.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		wo         planning.WorkOrder
		rate       string
		qty        string
		finishedAt sql.NullString
		start      string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, number, rate_per_hour, change_overtime, qty_remaining, finished_manually, finished_at, start_time
		FROM work_orders WHERE id = ?`, string(id)).
		Scan(&wo.ID, &wo.Number, &rate, &wo.ChangeOvertime, &qty, &wo.FinishedManually, &finishedAt, &start)
	if err == sql.ErrNoRows {
		return nil, planning.ErrWorkOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query work order: %w", err)
	}
	if wo.RatePerHour, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("parse rate: %w", err)
	}
	if wo.QtyRemaining, err = decimal.NewFromString(qty); err != nil {
		return nil, fmt.Errorf("parse qty remaining: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished at: %w", err)
		}
		wo.FinishedAt = &t
	}
	if wo.StartTime, err = time.Parse(timeLayout, start); err != nil {
		return nil, fmt.Errorf("parse start time: %w", err)
	}
	return &wo, nil
}

// BlockByID returns one block row (without the work-order view).
func (s *Store) BlockByID(ctx context.Context, id planning.BlockID) (*planning.BlockSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		b           planning.BlockSchedule
		start       string
		end         string
		workOrderID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, asset_id, asset_name, block_type, start_time, end_time, duration_minutes, work_order_id
		FROM block_schedules WHERE id = ?`, string(id)).
		Scan(&b.ID, &b.AssetID, &b.AssetName, &b.Type, &start, &end, &b.DurationMinutes, &workOrderID)
	if err == sql.ErrNoRows {
		return nil, planning.ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query block: %w", err)
	}
	if b.StartTime, err = time.Parse(timeLayout, start); err != nil {
		return nil, fmt.Errorf("parse block start: %w", err)
	}
	if b.EndTime, err = time.Parse(timeLayout, end); err != nil {
		return nil, fmt.Errorf("parse block end: %w", err)
	}
	if workOrderID.Valid {
		b.WorkOrderID = planning.WorkOrderID(workOrderID.String)
	}
	return &b, nil
}

// =============================================================================
// COMMITTER - One sql.Tx per batch
// =============================================================================

// Commit applies the batch inside a single transaction. A failure anywhere
// rolls everything back.
func (s *Store) Commit(ctx context.Context, batch *planning.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit transaction: %w", err)
	}

	if err := batch.Apply(ctx, &txStore{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &planning.CommitError{Index: batch.Len(), Kind: "commit", Cause: err}
	}
	return nil
}

// txStore binds the MutationStore write surface to one sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// execer lets upsertBlock serve both seeding (db) and commit (tx) paths.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertBlock(ctx context.Context, ex execer, b planning.BlockSchedule) error {
	var workOrderID any
	if b.WorkOrderID != "" {
		workOrderID = string(b.WorkOrderID)
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO block_schedules (id, asset_id, asset_name, block_type, start_time, end_time, duration_minutes, work_order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			asset_id = excluded.asset_id,
			asset_name = excluded.asset_name,
			block_type = excluded.block_type,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			duration_minutes = excluded.duration_minutes,
			work_order_id = excluded.work_order_id`,
		string(b.ID), string(b.AssetID), b.AssetName, string(b.Type),
		b.StartTime.UTC().Format(timeLayout), b.EndTime.UTC().Format(timeLayout),
		b.DurationMinutes, workOrderID)
	if err != nil {
		return fmt.Errorf("upsert block schedule: %w", err)
	}
	return nil
}

func (t *txStore) UpsertBlockSchedule(ctx context.Context, block planning.BlockSchedule) error {
	return upsertBlock(ctx, t.tx, block)
}

func (t *txStore) UpdateWorkOrderQtyRemaining(ctx context.Context, id planning.WorkOrderID, qty decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE work_orders SET qty_remaining = ? WHERE id = ?`,
		qty.String(), string(id))
	if err != nil {
		return fmt.Errorf("update qty remaining: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return planning.ErrWorkOrderNotFound
	}
	return nil
}

func (t *txStore) FinishWorkOrder(ctx context.Context, id planning.WorkOrderID, finishedAt time.Time, manual bool) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE work_orders SET finished_at = ?, finished_manually = ? WHERE id = ?`,
		finishedAt.UTC().Format(timeLayout), manual, string(id))
	if err != nil {
		return fmt.Errorf("finish work order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return planning.ErrWorkOrderNotFound
	}
	return nil
}

func (t *txStore) UpsertSyncHistory(ctx context.Context, record planning.SyncHistory) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sync_history (sync_type, synced_at) VALUES (?, ?)
		ON CONFLICT(sync_type) DO UPDATE SET synced_at = excluded.synced_at`,
		record.Type, record.SyncedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert sync history: %w", err)
	}
	return nil
}
