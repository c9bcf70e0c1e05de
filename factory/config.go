/*
Package factory provides JSON to Go engine-configuration conversion.

PURPOSE:
  Converts a JSON configuration document into the concrete pieces the
  engine is wired with: the overtime policy, the scheduler interval, the
  re-sequencing worker's retry settings, and the feed endpoint. This keeps
  plant-specific tuning out of code - operations can adjust the overtime
  compression or the sync cadence without a rebuild.

JSON SCHEMA:
  {
    "overtime": {
      "mode": "compress",          // "none" | "compress"
      "factor": 1.25               // required when mode is "compress", >= 1
    },
    "scheduler": {
      "enabled": true,
      "interval_minutes": 15
    },
    "resequence": {
      "max_retries": 3,
      "backoff_seconds": 2
    },
    "feed": {
      "base_url": "http://gp-bridge:9090"
    }
  }

KEY FEATURES:
  - Validates the overtime mode and factor
  - Sets sensible defaults for everything omitted
  - Returns ready-to-wire values, not raw JSON shapes

USAGE:
  cfg, err := factory.ParseConfig(jsonString)
  engine.Recalc = planning.NewRecalculator(cfg.Overtime)

SEE ALSO:
  - planning/recalc.go: OvertimePolicy consumers
  - cmd/server/main.go: Wiring
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/schedule-engine/planning"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type configJSON struct {
	Overtime struct {
		Mode   string  `json:"mode"`
		Factor float64 `json:"factor"`
	} `json:"overtime"`
	Scheduler struct {
		Enabled         *bool `json:"enabled"`
		IntervalMinutes int   `json:"interval_minutes"`
	} `json:"scheduler"`
	Resequence struct {
		MaxRetries     int `json:"max_retries"`
		BackoffSeconds int `json:"backoff_seconds"`
	} `json:"resequence"`
	Feed struct {
		BaseURL string `json:"base_url"`
	} `json:"feed"`
}

// =============================================================================
// ENGINE CONFIG - Parsed, validated, ready to wire
// =============================================================================

type EngineConfig struct {
	Overtime planning.OvertimePolicy

	SchedulerEnabled  bool
	SchedulerInterval time.Duration

	ResequenceMaxRetries int
	ResequenceBackoff    time.Duration

	FeedBaseURL string
}

// DefaultConfig returns the configuration used when no document is supplied.
func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		Overtime:             planning.NoOvertime(),
		SchedulerEnabled:     true,
		SchedulerInterval:    15 * time.Minute,
		ResequenceMaxRetries: 3,
		ResequenceBackoff:    2 * time.Second,
		FeedBaseURL:          "http://localhost:9090",
	}
}

// ParseConfig converts a JSON document into an EngineConfig, applying
// defaults for omitted fields and validating the overtime settings.
func ParseConfig(jsonStr string) (*EngineConfig, error) {
	var doc configJSON
	if err := json.Unmarshal([]byte(jsonStr), &doc); err != nil {
		return nil, fmt.Errorf("invalid config JSON: %w", err)
	}

	cfg := DefaultConfig()

	switch doc.Overtime.Mode {
	case "", "none":
		cfg.Overtime = planning.NoOvertime()
	case "compress":
		if doc.Overtime.Factor < 1 {
			return nil, fmt.Errorf("overtime factor must be >= 1, got %v", doc.Overtime.Factor)
		}
		cfg.Overtime = planning.CompressByFactor(decimal.NewFromFloat(doc.Overtime.Factor))
	default:
		return nil, fmt.Errorf("unknown overtime mode %q", doc.Overtime.Mode)
	}

	if doc.Scheduler.Enabled != nil {
		cfg.SchedulerEnabled = *doc.Scheduler.Enabled
	}
	if doc.Scheduler.IntervalMinutes > 0 {
		cfg.SchedulerInterval = time.Duration(doc.Scheduler.IntervalMinutes) * time.Minute
	}
	if doc.Resequence.MaxRetries > 0 {
		cfg.ResequenceMaxRetries = doc.Resequence.MaxRetries
	}
	if doc.Resequence.BackoffSeconds > 0 {
		cfg.ResequenceBackoff = time.Duration(doc.Resequence.BackoffSeconds) * time.Second
	}
	if doc.Feed.BaseURL != "" {
		cfg.FeedBaseURL = doc.Feed.BaseURL
	}

	return cfg, nil
}
