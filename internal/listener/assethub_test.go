package listener

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sonotxt/custodia/internal/config"
	"github.com/sonotxt/custodia/internal/models"
)

var testAssets = map[uint64]config.AssetInfo{
	1337: {Symbol: "USDC", Decimals: 6},
	1984: {Symbol: "USDT", Decimals: 6},
}

func TestAssetHubProcessBlock(t *testing.T) {
	repo, led, log := testRepo(t)
	l := NewAssetHub(nil, repo, led, testAssets, time.Second, log)
	l.Watch(models.WatchEntry{AccountID: "acct-1", Address: "1watched", DerivationIndex: 0})

	transfers := []AssetTransfer{
		{TxHash: "0xtx1", AssetID: 1337, To: "1watched", Amount: decimal.NewFromInt(25000000), Block: 100},
		{TxHash: "0xtx2", AssetID: 1984, To: "1unwatched", Amount: decimal.NewFromInt(5000000), Block: 100},
		{TxHash: "0xtx3", AssetID: 9999, To: "1watched", Amount: decimal.NewFromInt(1000000), Block: 100},
	}
	if err := l.processBlock(100, transfers); err != nil {
		t.Fatalf("processBlock: %v", err)
	}

	// Only the watched transfer with a known asset gets credited.
	d, err := repo.DepositByTxHash("0xtx1")
	if err != nil {
		t.Fatalf("DepositByTxHash: %v", err)
	}
	if d.Status != models.DepositStatusCredited {
		t.Errorf("expected credited, got %s", d.Status)
	}
	if !d.Amount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected amount 25 after decimal shift, got %s", d.Amount.String())
	}
	if d.Asset != "USDC" {
		t.Errorf("expected USDC, got %s", d.Asset)
	}

	for _, hash := range []string{"0xtx2", "0xtx3"} {
		if d, _ := repo.DepositByTxHash(hash); d != nil {
			t.Errorf("transfer %s should not have been recorded", hash)
		}
	}

	bal, _ := repo.Balance("acct-1")
	if !bal.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected balance 25, got %s", bal.String())
	}

	// Cursor advanced in the same transaction.
	cursor, err := repo.Cursor(models.ChainAssetHub)
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	if cursor != 100 {
		t.Errorf("expected cursor 100, got %d", cursor)
	}
}

func TestAssetHubProcessBlockReplay(t *testing.T) {
	repo, led, log := testRepo(t)
	l := NewAssetHub(nil, repo, led, testAssets, time.Second, log)
	l.Watch(models.WatchEntry{AccountID: "acct-1", Address: "1watched", DerivationIndex: 0})

	transfers := []AssetTransfer{
		{TxHash: "0xtx1", AssetID: 1337, To: "1watched", Amount: decimal.NewFromInt(10000000), Block: 100},
	}
	for i := 0; i < 2; i++ {
		if err := l.processBlock(100, transfers); err != nil {
			t.Fatalf("processBlock replay %d: %v", i, err)
		}
	}

	bal, _ := repo.Balance("acct-1")
	if !bal.Equal(decimal.NewFromInt(10)) {
		t.Errorf("replayed block must not double-credit: balance %s", bal.String())
	}
}

func TestAssetHubConnect(t *testing.T) {
	repo, led, log := testRepo(t)

	// Two previously derived addresses, one rotated away. Both stay watched.
	for i, active := range []bool{false, true} {
		err := repo.CreateAddress(&models.PaymentAddress{
			AccountID:       "acct-1",
			Chain:           models.ChainAssetHub,
			Address:         fmt.Sprintf("1addr%d", i),
			DerivationIndex: uint32(i),
			IsActive:        active,
			CreatedAt:       time.Now(),
		})
		if err != nil {
			t.Fatalf("CreateAddress: %v", err)
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number": "500", "hash": "0xhead", "extrinsics": []}`)
	}))
	defer srv.Close()

	l := NewAssetHub(NewSidecarClient(srv.URL), repo, led, testAssets, time.Second, log)
	if err := l.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if l.watch.len() != 2 {
		t.Errorf("expected 2 watched addresses, got %d", l.watch.len())
	}
	// No cursor yet: start from the current head and persist it.
	if l.height != 500 {
		t.Errorf("expected start height 500, got %d", l.height)
	}
	cursor, _ := repo.Cursor(models.ChainAssetHub)
	if cursor != 500 {
		t.Errorf("expected persisted cursor 500, got %d", cursor)
	}
}

func TestAssetHubRunRetriesConnect(t *testing.T) {
	repo, led, log := testRepo(t)

	// The sidecar is down for the first few requests. Run must keep
	// retrying the connect instead of giving up.
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"number": "700", "hash": "0xhead", "extrinsics": []}`)
	}))
	defer srv.Close()

	l := NewAssetHub(NewSidecarClient(srv.URL), repo, led, testAssets, 5*time.Millisecond, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx)
	}()

	deadline := time.After(5 * time.Second)
	for {
		if cursor, _ := repo.Cursor(models.ChainAssetHub); cursor == 700 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("listener never connected after sidecar recovery")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if atomic.LoadInt32(&calls) <= 2 {
		t.Errorf("expected connect retries, got %d requests", calls)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run loop did not stop on cancel")
	}
}

func TestAssetHubConnectResumesFromCursor(t *testing.T) {
	repo, led, log := testRepo(t)
	if err := repo.SaveCursor(models.ChainAssetHub, 123); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}

	l := NewAssetHub(nil, repo, led, testAssets, time.Second, log)
	if err := l.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if l.height != 123 {
		t.Errorf("expected resume height 123, got %d", l.height)
	}
}
