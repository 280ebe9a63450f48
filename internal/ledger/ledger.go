package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sonotxt/custodia/internal/models"
	"github.com/sonotxt/custodia/pkg/logger"
)

// Ledger is the crediting pipeline: it turns detected deposits into balance
// changes exactly once. Listener callbacks, manual reports and the
// reconciler all funnel through it; the tx_hash unique constraint is the
// single point of truth for "has this payment been applied".
type Ledger struct {
	repo     models.Repository
	notifier models.Notifier
	logger   *logger.Logger
}

func New(repo models.Repository, logger *logger.Logger) *Ledger {
	return &Ledger{repo: repo, logger: logger}
}

// SetNotifier wires the post-commit notification hook. Optional.
func (l *Ledger) SetNotifier(n models.Notifier) {
	l.notifier = n
}

// RecordObserved records a deposit a listener saw in a finalized block and
// credits it, inside the caller's transaction. It returns the deposit that
// got credited by this observation, or nil when the tx hash was already
// handled, so a listener replaying a block range never aborts its
// transaction on known deposits. An observation matching a pending manual
// report confirms and credits that report with the OBSERVED account,
// amount and asset: a report only pre-announces a hash, its claimed fields
// are never trusted for crediting.
func (l *Ledger) RecordObserved(tx models.Repository, d *models.Deposit) (*models.Deposit, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	d.Status = models.DepositStatusConfirmed
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	created, err := tx.CreateDepositIfAbsent(d)
	if err != nil {
		return nil, err
	}
	if created {
		if err := l.creditTx(tx, d); err != nil {
			return nil, err
		}
		return d, nil
	}

	existing, err := tx.DepositByTxHash(d.TxHash)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.Status != models.DepositStatusPending {
		l.logger.Debugf("Deposit %s already recorded, skipping", d.TxHash)
		return nil, nil
	}

	// The on-chain transfer behind a manual report showed up. The chain is
	// the source of truth for who gets credited and how much; reported
	// fields are overwritten before crediting so a report claiming someone
	// else's tx hash, or an inflated amount, gains nothing.
	if existing.AccountID != d.AccountID || !existing.Amount.Equal(d.Amount) || existing.Asset != d.Asset {
		l.logger.Warnf("Manual report %s claims account %s amount %s %s but chain shows account %s amount %s %s, crediting observed values",
			existing.ID, existing.AccountID, existing.Amount, existing.Asset, d.AccountID, d.Amount, d.Asset)
	}
	if err := tx.UpdateDepositObservation(existing.ID, d); err != nil {
		return nil, err
	}
	existing.AccountID = d.AccountID
	existing.Chain = d.Chain
	existing.Amount = d.Amount
	existing.Asset = d.Asset
	existing.Confirmations = d.Confirmations
	existing.BlockNumber = d.BlockNumber
	existing.FromAddress = d.FromAddress
	existing.ToAddress = d.ToAddress
	if err := tx.TransitionDeposit(existing.ID, models.DepositStatusPending, models.DepositStatusConfirmed); err != nil {
		return nil, err
	}
	if err := l.creditTx(tx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// CreditDeposit promotes a confirmed deposit to credited, adjusting the
// balance and writing the ledger entry in one transaction. Crediting a
// deposit that is not in confirmed state fails with ErrInvalidTransition
// and changes nothing.
func (l *Ledger) CreditDeposit(depositID string) error {
	var credited *models.Deposit
	err := l.repo.Transaction(func(tx models.Repository) error {
		d, err := tx.DepositByID(depositID)
		if err != nil {
			return err
		}
		if err := l.creditTx(tx, d); err != nil {
			return err
		}
		credited = d
		return nil
	})
	if err != nil {
		return err
	}
	l.NotifyCredited(credited)
	return nil
}

// creditTx performs the atomic credit steps against an open transaction:
// status transition, balance increment, ledger entry.
func (l *Ledger) creditTx(tx models.Repository, d *models.Deposit) error {
	now := time.Now()
	if err := tx.MarkDepositCredited(d.ID, now); err != nil {
		return err
	}
	if err := tx.AdjustBalance(d.AccountID, d.Amount); err != nil {
		return err
	}
	entry := &models.LedgerEntry{
		AccountID:   d.AccountID,
		Amount:      d.Amount,
		Type:        models.LedgerEntryPurchase,
		Description: fmt.Sprintf("deposit %s %s via %s", d.Amount.String(), d.Asset, d.Chain),
		Chain:       d.Chain,
		TxHash:      d.TxHash,
		DepositID:   d.ID,
		CreatedAt:   now,
	}
	if err := tx.AddLedgerEntry(entry); err != nil {
		return err
	}
	d.Status = models.DepositStatusCredited
	d.CreditedAt = &now
	l.logger.Infof("Credited deposit %s: %s %s to account %s", d.ID, d.Amount.String(), d.Asset, d.AccountID)
	return nil
}

// ReportManual records a user-reported deposit. It stays pending until the
// reconciler sees enough confirmations for it; a duplicate tx hash fails
// with ErrDepositExists.
func (l *Ledger) ReportManual(accountID string, chain models.Chain, txHash, asset string, amount decimal.Decimal) (*models.Deposit, error) {
	if txHash == "" {
		return nil, fmt.Errorf("tx hash is required")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	d := &models.Deposit{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Chain:     chain,
		TxHash:    txHash,
		Asset:     asset,
		Amount:    amount,
		Status:    models.DepositStatusPending,
		CreatedAt: time.Now(),
	}
	if err := l.repo.CreateDeposit(d); err != nil {
		return nil, err
	}
	l.logger.Infof("Recorded manual deposit report %s for account %s (tx %s)", d.ID, accountID, txHash)
	return d, nil
}

// RecordUsage debits an account, writing the negative ledger entry and the
// balance change atomically.
func (l *Ledger) RecordUsage(accountID string, amount decimal.Decimal, description string) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	delta := amount.Neg()
	return l.repo.Transaction(func(tx models.Repository) error {
		if err := tx.AdjustBalance(accountID, delta); err != nil {
			return err
		}
		return tx.AddLedgerEntry(&models.LedgerEntry{
			AccountID:   accountID,
			Amount:      delta,
			Type:        models.LedgerEntryUsage,
			Description: description,
			CreatedAt:   time.Now(),
		})
	})
}

// NotifyCredited tells the notifier about a credited deposit. Runs after
// the crediting transaction committed and never fails the caller.
func (l *Ledger) NotifyCredited(d *models.Deposit) {
	if l.notifier == nil || d == nil {
		return
	}
	l.notifier.DepositCredited(d)
}
