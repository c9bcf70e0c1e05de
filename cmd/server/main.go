/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the schedule reconciliation server. Handles
  configuration, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags (and optional JSON config file)
  2. Initialize SQLite store
  3. Build the quantity-feed client and re-sequencing worker
  4. Wire the sync engine and HTTP router
  5. Start the periodic scheduler and the server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: schedule.db)
           Use ":memory:" for an in-memory database
  -config  Path to a JSON config file (see factory package)
  -feed    Quantity feed base URL (overrides config)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler and the re-sequencing worker
  2. Stop accepting new connections, drain active requests (30s timeout)
  3. Close the database connection

SEE ALSO:
  - api/server.go: Router configuration
  - factory/config.go: JSON configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/schedule-engine/api"
	"github.com/warp/schedule-engine/erp"
	"github.com/warp/schedule-engine/factory"
	"github.com/warp/schedule-engine/planning"
	"github.com/warp/schedule-engine/resequence"
	"github.com/warp/schedule-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "schedule.db", "SQLite database path")
	configPath := flag.String("config", "", "JSON config file path")
	feedURL := flag.String("feed", "", "quantity feed base URL (overrides config)")
	flag.Parse()

	// Configuration
	cfg := factory.DefaultConfig()
	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to read config: %v", err)
		}
		cfg, err = factory.ParseConfig(string(raw))
		if err != nil {
			log.Fatalf("Failed to parse config: %v", err)
		}
	}
	if *feedURL != "" {
		cfg.FeedBaseURL = *feedURL
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Re-sequencing worker. The downstream auto-sorter attaches here; until
	// it is wired, requests are acknowledged in the log so operators can see
	// which assets need sorting.
	worker := resequence.NewWorker(func(ctx context.Context, req planning.ResequenceRequest) error {
		log.Printf("[Resequence] asset=%s anchor=%s source=%s", req.AssetID, req.Anchor.Format(time.RFC3339), req.Source)
		return nil
	})
	worker.MaxRetries = cfg.ResequenceMaxRetries
	worker.Backoff = cfg.ResequenceBackoff
	worker.Start()
	defer worker.Stop()

	go func() {
		for f := range worker.Failures() {
			log.Printf("[Resequence] request %s failed after %d attempts: %v", f.Request.ID, f.Attempts, f.Err)
		}
	}()

	// Wire the engine
	feed := erp.New(cfg.FeedBaseURL)
	engine := planning.NewEngine(store, feed, store, store, worker)
	engine.Recalc = planning.NewRecalculator(cfg.Overtime)

	// Periodic scheduler
	scheduler := api.NewSyncScheduler(engine)
	scheduler.Interval = cfg.SchedulerInterval
	scheduler.Enabled = cfg.SchedulerEnabled
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP server
	handler := api.NewHandler(engine, store)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
