/*
Package resequence runs re-sequencing requests as a supervised background worker.

PURPOSE:
  After a sync run commits, the engine asks the downstream auto-sorter to
  re-order each affected asset's blocks. That call must never block or fail
  the already-committed run. Instead of launching and discarding a bare
  goroutine, requests go through this worker: a bounded queue, per-request
  retry with backoff, and a failure channel so persistent errors are
  observable out-of-band.

GUARANTEES:
  - Enqueue never blocks. A full queue drops the request and reports it on
    the failure channel (best-effort contract; the next sync re-fires).
  - A request is retried up to MaxRetries times with linear backoff.
  - Worker failures never propagate into the sync run's error path.

USAGE:
  worker := resequence.NewWorker(sorterFunc)
  worker.Start()
  defer worker.Stop()

  go func() {
      for f := range worker.Failures() {
          log.Printf("resequence failed: %v", f.Err)
      }
  }()

SEE ALSO:
  - planning/store.go: Resequencer contract
  - planning/reconcile.go: Enqueue call site
*/
package resequence

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/warp/schedule-engine/planning"
)

// ErrQueueFull is reported when Enqueue drops a request because the queue
// has no capacity left.
var ErrQueueFull = errors.New("resequence queue full")

// Handler performs one re-sequencing pass for an asset, anchored at the
// request's instant. The auto-sorting algorithm itself lives downstream;
// this package only carries its trigger contract.
type Handler func(ctx context.Context, req planning.ResequenceRequest) error

// Failure reports a request that was dropped or exhausted its retries.
type Failure struct {
	Request  planning.ResequenceRequest
	Attempts int
	Err      error
}

// Worker is a supervised fire-and-forget queue implementing planning.Resequencer.
type Worker struct {
	MaxRetries int
	Backoff    time.Duration
	Logger     *log.Logger

	handler  Handler
	queue    chan planning.ResequenceRequest
	failures chan Failure

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewWorker(handler Handler) *Worker {
	return &Worker{
		MaxRetries: 3,
		Backoff:    2 * time.Second,
		Logger:     log.Default(),
		handler:    handler,
		queue:      make(chan planning.ResequenceRequest, 64),
		failures:   make(chan Failure, 64),
	}
}

// Start launches the processing goroutine.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		w.cancel = cancel
		w.wg.Add(1)
		go w.run(ctx)
		w.Logger.Printf("[Resequence] worker started (retries=%d backoff=%v)", w.MaxRetries, w.Backoff)
	})
}

// Stop cancels in-flight work and waits for the goroutine to exit.
// Queued requests that were not picked up are abandoned; the next sync run
// re-fires anchors for any assets that still need sorting.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
		close(w.failures)
		w.Logger.Printf("[Resequence] worker stopped")
	})
}

// Failures exposes dropped and exhausted requests for out-of-band reporting.
func (w *Worker) Failures() <-chan Failure { return w.failures }

// Enqueue implements planning.Resequencer. It never blocks: when the queue
// is full the request is dropped and reported.
func (w *Worker) Enqueue(req planning.ResequenceRequest) {
	select {
	case w.queue <- req:
	default:
		w.report(Failure{Request: req, Attempts: 0, Err: ErrQueueFull})
		w.Logger.Printf("[Resequence] queue full, dropped request %s for asset %s", req.ID, req.AssetID)
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.queue:
			w.process(ctx, req)
		}
	}
}

func (w *Worker) process(ctx context.Context, req planning.ResequenceRequest) {
	var err error
	for attempt := 1; attempt <= w.MaxRetries; attempt++ {
		if err = w.handler(ctx, req); err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		w.Logger.Printf("[Resequence] request %s asset=%s attempt %d/%d failed: %v",
			req.ID, req.AssetID, attempt, w.MaxRetries, err)
		if attempt < w.MaxRetries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * w.Backoff):
			}
		}
	}
	w.report(Failure{Request: req, Attempts: w.MaxRetries, Err: err})
}

func (w *Worker) report(f Failure) {
	select {
	case w.failures <- f:
	default:
		// Failure channel full; the log line above is the last resort.
	}
}
