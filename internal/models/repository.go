package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Repository is the storage behind the deposit subsystem. All cross-field
// invariants (dedup, balance+ledger+status atomicity, rotation atomicity)
// are enforced through Transaction; no method holds a transaction open
// across a network call.
type Repository interface {
	// Transaction runs fn against a transaction-scoped Repository and
	// commits iff fn returns nil.
	Transaction(fn func(Repository) error) error

	// Payment addresses.
	ActiveAddress(accountID string, chain Chain) (*PaymentAddress, error)
	// WatchedAddresses returns every address ever derived on the chain.
	// Rotated-away addresses stay watched so late deposits still credit.
	WatchedAddresses(chain Chain) ([]*PaymentAddress, error)
	AddressBySubIndex(chain Chain, subIndex uint32) (*PaymentAddress, error)
	CreateAddress(addr *PaymentAddress) error
	// DeactivateAddresses clears is_active on every row for the account and
	// chain. Callers pair it with CreateAddress inside Transaction.
	DeactivateAddresses(accountID string, chain Chain) error
	ListAddresses(accountID string, chain Chain) ([]*PaymentAddress, error)
	CountAddresses(accountID string, chain Chain) (int64, error)
	// MaxDerivationIndex returns -1 when the account has no addresses yet.
	MaxDerivationIndex(accountID string, chain Chain) (int64, error)

	// Deposits.
	CreateDeposit(d *Deposit) error
	// CreateDepositIfAbsent inserts unless the tx hash already exists;
	// created reports whether a row was written. Implemented with an
	// ON CONFLICT DO NOTHING so a duplicate never aborts the surrounding
	// transaction.
	CreateDepositIfAbsent(d *Deposit) (created bool, err error)
	DepositByID(id string) (*Deposit, error)
	DepositByTxHash(txHash string) (*Deposit, error)
	DepositsByAccount(accountID string, limit int) ([]*Deposit, error)
	DepositsByStatus(status DepositStatus, limit int) ([]*Deposit, error)
	// TransitionDeposit moves a deposit from one status to the next; the
	// guard is in the UPDATE's WHERE clause, so a lost race surfaces as
	// ErrInvalidTransition instead of a double transition.
	TransitionDeposit(id string, from, to DepositStatus) error
	// MarkDepositCredited is the terminal transition, valid only from
	// confirmed. Sets credited_at.
	MarkDepositCredited(id string, at time.Time) error
	// UpdateDepositObservation overwrites a still-pending deposit's account,
	// amount and chain details with what a listener actually observed. The
	// pending guard is in the WHERE clause; a row past pending surfaces as
	// ErrInvalidTransition.
	UpdateDepositObservation(id string, observed *Deposit) error

	// Balances and ledger.
	AddLedgerEntry(e *LedgerEntry) error
	// AdjustBalance applies a signed delta, creating the balance row on
	// first use.
	AdjustBalance(accountID string, delta decimal.Decimal) error
	Balance(accountID string) (decimal.Decimal, error)
	LedgerEntries(accountID string, limit int) ([]*LedgerEntry, error)

	// Listener cursors.
	Cursor(chain Chain) (uint64, error)
	SaveCursor(chain Chain, height uint64) error

	// Notification providers.
	UpsertNotificationProvider(p *NotificationProvider) error
	NotificationProviderByAccount(accountID string) (*NotificationProvider, error)
	NotificationProviderByTelegramUsername(username string) (*NotificationProvider, error)
	SetTelegramChatID(accountID, chatID string) error

	Close() error
}
