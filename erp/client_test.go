package erp_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/schedule-engine/erp"
)

func TestQtyRemaining_BatchedRequest(t *testing.T) {
	// GIVEN: A feed endpoint expecting one comma-joined request
	// WHEN: Querying two work-order numbers
	// THEN: One HTTP call is made and the snapshots decode with exact decimals

	var gotQuery string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotQuery = r.URL.Query().Get("workorders")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"workorder_number": "WO-1", "asset_name": "Mill-3", "qty_remaining": "40"},
			{"workorder_number": "WO-1", "asset_name": "Mill-4", "qty_remaining": "10.5"}
		]`))
	}))
	defer srv.Close()

	client := erp.New(srv.URL)
	snaps, err := client.QtyRemaining(context.Background(), []string{"WO-1", "WO-2"})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "WO-1,WO-2", gotQuery)
	require.Len(t, snaps, 2)
	assert.Equal(t, "WO-1", snaps[0].WorkOrderNumber)
	assert.Equal(t, "Mill-3", snaps[0].AssetName)
	assert.True(t, snaps[0].QtyRemaining.Equal(decimal.NewFromInt(40)))
	assert.True(t, snaps[1].QtyRemaining.Equal(decimal.NewFromFloat(10.5)))
}

func TestQtyRemaining_EmptyNumberSet_NoCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	client := erp.New(srv.URL)
	snaps, err := client.QtyRemaining(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, snaps)
	assert.Equal(t, 0, calls)
}

func TestQtyRemaining_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sproc failed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := erp.New(srv.URL)
	_, err := client.QtyRemaining(context.Background(), []string{"WO-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestQtyRemaining_UnknownOrdersAbsentNotError(t *testing.T) {
	// Orders the external system doesn't know are simply missing from the
	// response; that drives finish detection upstream, not an error here.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := erp.New(srv.URL)
	snaps, err := client.QtyRemaining(context.Background(), []string{"WO-404"})
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
