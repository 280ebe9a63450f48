package listener

import (
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/sonotxt/custodia/internal/ledger"
	"github.com/sonotxt/custodia/internal/models"
	"github.com/sonotxt/custodia/internal/repository"
	"github.com/sonotxt/custodia/pkg/logger"
)

func testRepo(t *testing.T) (models.Repository, *ledger.Ledger, *logger.Logger) {
	t.Helper()
	log, err := logger.NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	dsn := filepath.Join(t.TempDir(), "custodia.db") + "?_busy_timeout=10000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	repo, err := repository.New(db, log)
	if err != nil {
		t.Fatalf("failed to init repository: %v", err)
	}
	return repo, ledger.New(repo, log), log
}

func TestWatchList(t *testing.T) {
	w := newWatchList()

	sub := uint32(42)
	entry := models.WatchEntry{AccountID: "acct-1", Address: "1abc", DerivationIndex: 0, SubIndex: &sub}
	w.add(entry)

	got, ok := w.lookupAddress("1abc")
	if !ok || got.AccountID != "acct-1" {
		t.Fatalf("lookupAddress failed: %+v, %v", got, ok)
	}
	got, ok = w.lookupSubIndex(42)
	if !ok || got.AccountID != "acct-1" {
		t.Fatalf("lookupSubIndex failed: %+v, %v", got, ok)
	}

	w.remove(entry)
	if _, ok := w.lookupAddress("1abc"); ok {
		t.Error("address should be removed")
	}
	if _, ok := w.lookupSubIndex(42); ok {
		t.Error("sub-index should be removed")
	}
	if w.len() != 0 {
		t.Errorf("expected empty watch-list, got %d", w.len())
	}
}

func TestWatchListTransparentEntriesSkipSubIndexMap(t *testing.T) {
	w := newWatchList()

	sub := uint32(0)
	shielded := models.WatchEntry{AccountID: "acct-pen", Address: "penumbra1abc", DerivationIndex: 0, SubIndex: &sub}
	transparent := models.WatchEntry{AccountID: "acct-hub", Address: "1abc", DerivationIndex: 0}
	w.add(shielded)
	w.add(transparent)

	got, ok := w.lookupSubIndex(0)
	if !ok || got.AccountID != "acct-pen" {
		t.Fatalf("transparent entry clobbered sub-index 0: %+v, %v", got, ok)
	}

	w.remove(transparent)
	if _, ok := w.lookupSubIndex(0); !ok {
		t.Error("removing a transparent entry dropped sub-index 0")
	}
	if _, ok := w.lookupAddress("penumbra1abc"); !ok {
		t.Error("shielded entry should survive")
	}
}

func TestBackoff(t *testing.T) {
	b := newBackoff(time.Second, 10*time.Second)

	expected := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		10 * time.Second, 10 * time.Second,
	}
	for i, want := range expected {
		if got := b.Next(); got != want {
			t.Errorf("attempt %d: expected %s, got %s", i, want, got)
		}
	}

	b.Reset()
	if got := b.Next(); got != time.Second {
		t.Errorf("expected reset to base delay, got %s", got)
	}
}
