/*
scheduler.go - Periodic sync scheduler

PURPOSE:
  Runs the quantity-remaining sync on a fixed interval, the same way a
  production deployment would drive the reconciliation from a timer.

DESIGN:
  - Runs a background goroutine with a configurable tick interval
  - Each tick is one full sync run over the whole eligible set
  - A failed run is logged and retried on the next tick; the engine's
    all-or-nothing commit means a failure leaves no partial state
  - Overlapping runs are not serialized here: ticks are processed
    sequentially by the single scheduler goroutine

CONFIGURATION:
  - Interval: How often to sync (default: 15 minutes)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewSyncScheduler(engine)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSync endpoint (manual runs)
  - planning/reconcile.go: The engine
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/schedule-engine/planning"
)

// SyncScheduler drives periodic reconciliation runs.
type SyncScheduler struct {
	Engine   *planning.Engine
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSyncScheduler creates a new scheduler.
func NewSyncScheduler(engine *planning.Engine) *SyncScheduler {
	return &SyncScheduler{
		Engine:   engine,
		Interval: 15 * time.Minute,
		Enabled:  true,
		stop:     make(chan bool),
	}
}

// Start begins the scheduler.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)

	go s.run()

	log.Printf("[Scheduler] Started with sync interval: %v", s.Interval)
}

// Stop stops the scheduler.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (s *SyncScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.sync()

	for {
		select {
		case <-s.ticker.C:
			s.sync()
		case <-s.stop:
			return
		}
	}
}

func (s *SyncScheduler) sync() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.Engine.SyncWorkOrderQtyRemaining(ctx, nil); err != nil {
		// Nothing was persisted; the next tick retries from scratch.
		log.Printf("[Scheduler] Sync failed: %v", err)
	}
}
