package reconciler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/sonotxt/custodia/internal/ledger"
	"github.com/sonotxt/custodia/internal/models"
	"github.com/sonotxt/custodia/internal/repository"
	"github.com/sonotxt/custodia/pkg/logger"
)

func testReconciler(t *testing.T, minConfirmations uint32) (*Reconciler, models.Repository) {
	t.Helper()
	log, err := logger.NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "custodia.db")), &gorm.Config{
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
	led := ledger.New(repo, log)
	return New(repo, led, time.Minute, minConfirmations, log), repo
}

func seedDeposit(t *testing.T, repo models.Repository, status models.DepositStatus, confirmations uint32) *models.Deposit {
	t.Helper()
	d := &models.Deposit{
		ID:            uuid.New().String(),
		AccountID:     "acct-1",
		Chain:         models.ChainAssetHub,
		TxHash:        "0x" + uuid.New().String(),
		Asset:         "USDC",
		Amount:        decimal.NewFromInt(20),
		Status:        status,
		Confirmations: confirmations,
		CreatedAt:     time.Now(),
	}
	if err := repo.CreateDeposit(d); err != nil {
		t.Fatalf("CreateDeposit: %v", err)
	}
	return d
}

func TestSweepPromotesConfirmedPending(t *testing.T) {
	r, repo := testReconciler(t, 2)
	d := seedDeposit(t, repo, models.DepositStatusPending, 3)

	r.Sweep()

	stored, err := repo.DepositByID(d.ID)
	if err != nil {
		t.Fatalf("DepositByID: %v", err)
	}
	if stored.Status != models.DepositStatusCredited {
		t.Errorf("expected credited, got %s", stored.Status)
	}
	bal, _ := repo.Balance("acct-1")
	if !bal.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected balance 20, got %s", bal.String())
	}
}

func TestSweepLeavesUnderconfirmedPending(t *testing.T) {
	r, repo := testReconciler(t, 2)
	d := seedDeposit(t, repo, models.DepositStatusPending, 0)

	// Sweeping repeatedly must not promote a deposit with too few
	// confirmations, no matter how much time passes.
	for i := 0; i < 3; i++ {
		r.Sweep()
	}

	stored, err := repo.DepositByID(d.ID)
	if err != nil {
		t.Fatalf("DepositByID: %v", err)
	}
	if stored.Status != models.DepositStatusPending {
		t.Errorf("expected pending, got %s", stored.Status)
	}
	bal, _ := repo.Balance("acct-1")
	if !bal.IsZero() {
		t.Errorf("underconfirmed deposit must not be credited: %s", bal.String())
	}
}

func TestSweepCreditsStuckConfirmed(t *testing.T) {
	r, repo := testReconciler(t, 2)
	d := seedDeposit(t, repo, models.DepositStatusConfirmed, 5)

	r.Sweep()

	stored, err := repo.DepositByID(d.ID)
	if err != nil {
		t.Fatalf("DepositByID: %v", err)
	}
	if stored.Status != models.DepositStatusCredited {
		t.Errorf("expected credited, got %s", stored.Status)
	}
}

func TestSweepIdempotent(t *testing.T) {
	r, repo := testReconciler(t, 1)
	seedDeposit(t, repo, models.DepositStatusPending, 1)

	r.Sweep()
	r.Sweep()

	bal, _ := repo.Balance("acct-1")
	if !bal.Equal(decimal.NewFromInt(20)) {
		t.Errorf("repeated sweeps must not double-credit: %s", bal.String())
	}
}
