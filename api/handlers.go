/*
handlers.go - HTTP API handlers for the reconciliation engine

PURPOSE:
  Exposes the quantity-remaining sync via REST. Handles HTTP
  request/response, JSON serialization, and delegates to the engine.

ENDPOINTS:
  POST /api/sync/qty-remaining   Run a sync. Optional JSON body:
                                 {"work_order_id": "wo-42"} restricts the
                                 run to one work order's blocks.
  GET  /api/sync/history         Timestamp of the last successful sync.
  GET  /api/health               Liveness probe.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed request body
  - 404: No sync has run yet (history endpoint)
  - 502: Quantity feed unavailable
  - 500: Commit or internal failure

SEE ALSO:
  - server.go: Router setup and middleware
  - planning/reconcile.go: The engine behind TriggerSync
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/warp/schedule-engine/planning"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *planning.Engine
	History planning.SyncHistoryStore
}

func NewHandler(engine *planning.Engine, history planning.SyncHistoryStore) *Handler {
	return &Handler{Engine: engine, History: history}
}

// =============================================================================
// DTOs
// =============================================================================

type triggerSyncRequest struct {
	WorkOrderID string `json:"work_order_id,omitempty"`
}

type triggerSyncResponse struct {
	Status      string `json:"status"`
	WorkOrderID string `json:"work_order_id,omitempty"`
}

type syncHistoryResponse struct {
	Type     string    `json:"type"`
	SyncedAt time.Time `json:"synced_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// HANDLERS
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TriggerSync runs one reconciliation. The body is optional; an empty body
// processes the full eligible set.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	var req triggerSyncRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read body"})
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
	}

	var filter *planning.WorkOrderID
	if req.WorkOrderID != "" {
		id := planning.WorkOrderID(req.WorkOrderID)
		filter = &id
	}

	if err := h.Engine.SyncWorkOrderQtyRemaining(r.Context(), filter); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, planning.ErrFeedUnavailable) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, triggerSyncResponse{Status: "ok", WorkOrderID: req.WorkOrderID})
}

// GetSyncHistory returns the last successful sync marker.
func (h *Handler) GetSyncHistory(w http.ResponseWriter, r *http.Request) {
	record, err := h.History.LastSync(r.Context(), planning.SyncTypeWorkOrderQtyRemaining)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no sync has run yet"})
		return
	}
	writeJSON(w, http.StatusOK, syncHistoryResponse{Type: record.Type, SyncedAt: record.SyncedAt})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
