/*
Package erp adapts the external production system's quantity feed.

PURPOSE:
  Implements planning.SnapshotSource over the production system's HTTP
  endpoint. The endpoint takes a comma-joined list of work-order numbers
  and returns one snapshot per (work-order number, asset name) pair - one
  batched request per sync run, never one call per order.

WIRE FORMAT:
  GET {base}/workorders/qty-remaining?workorders=WO-1,WO-2

  [
    {"workorder_number": "WO-1", "asset_name": "Mill-3", "qty_remaining": "40"},
    {"workorder_number": "WO-1", "asset_name": "Mill-4", "qty_remaining": "10"}
  ]

ERROR SEMANTICS:
  Transport failures and non-200 responses are fatal for the current sync
  run (planning.ErrFeedUnavailable via FeedError). Work orders absent from
  the response are not errors; their absence drives finish detection.

SEE ALSO:
  - planning/store.go: SnapshotSource contract
  - planning/reconcile.go: The consumer
*/
package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/warp/schedule-engine/planning"
)

// Client queries the quantity-remaining feed over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// QtyRemaining fetches snapshots for the given work-order numbers in one
// batched request. An empty number set short-circuits to an empty result.
func (c *Client) QtyRemaining(ctx context.Context, workOrderNumbers []string) ([]planning.QtySnapshot, error) {
	if len(workOrderNumbers) == 0 {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/workorders/qty-remaining?workorders=%s",
		c.BaseURL, url.QueryEscape(strings.Join(workOrderNumbers, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var snapshots []planning.QtySnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshots); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}
	return snapshots, nil
}
