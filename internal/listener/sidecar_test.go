package listener

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

const testBlock = `{
	"number": "100",
	"hash": "0xblock",
	"extrinsics": [
		{
			"method": {"pallet": "assets", "method": "transfer"},
			"args": {"id": "1337", "target": {"id": "1watched"}, "amount": "25000000"},
			"hash": "0xtx1",
			"success": true
		},
		{
			"method": {"pallet": "assets", "method": "transferKeepAlive"},
			"args": {"id": "1984", "target": {"id": "1other"}, "amount": "5000000"},
			"hash": "0xtx2",
			"success": true
		},
		{
			"method": {"pallet": "assets", "method": "transfer"},
			"args": {"id": "1337", "target": {"id": "1failed"}, "amount": "1000000"},
			"hash": "0xtx3",
			"success": false
		},
		{
			"method": {"pallet": "balances", "method": "transfer"},
			"args": {"dest": {"id": "1native"}, "value": "1000000"},
			"hash": "0xtx4",
			"success": true
		},
		{
			"method": {"pallet": "timestamp", "method": "set"},
			"args": {"now": "1700000000"},
			"hash": "0xtx5",
			"success": true
		}
	]
}`

func testSidecar(t *testing.T) *SidecarClient {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/blocks/head", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number": "100", "hash": "0xblock", "extrinsics": []}`)
	})
	mux.HandleFunc("/blocks/100", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testBlock)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewSidecarClient(srv.URL)
}

func TestFinalizedHeight(t *testing.T) {
	c := testSidecar(t)

	height, err := c.FinalizedHeight(context.Background())
	if err != nil {
		t.Fatalf("FinalizedHeight: %v", err)
	}
	if height != 100 {
		t.Errorf("expected height 100, got %d", height)
	}
}

func TestBlockTransfers(t *testing.T) {
	c := testSidecar(t)

	transfers, err := c.BlockTransfers(context.Background(), 100)
	if err != nil {
		t.Fatalf("BlockTransfers: %v", err)
	}
	// Failed, balances-pallet and unrelated extrinsics are filtered out.
	if len(transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(transfers))
	}

	first := transfers[0]
	if first.TxHash != "0xtx1" || first.AssetID != 1337 || first.To != "1watched" {
		t.Errorf("unexpected first transfer: %+v", first)
	}
	if !first.Amount.Equal(decimal.NewFromInt(25000000)) {
		t.Errorf("expected raw amount 25000000, got %s", first.Amount.String())
	}
	if first.Block != 100 {
		t.Errorf("expected block 100, got %d", first.Block)
	}

	if transfers[1].TxHash != "0xtx2" || transfers[1].AssetID != 1984 {
		t.Errorf("unexpected second transfer: %+v", transfers[1])
	}
}

func TestSidecarErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewSidecarClient(srv.URL)
	if _, err := c.FinalizedHeight(context.Background()); err == nil {
		t.Error("expected error on 500 response")
	}
}
