package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntryType classifies a balance-affecting event.
type LedgerEntryType string

const (
	LedgerEntryPurchase     LedgerEntryType = "purchase"
	LedgerEntryUsage        LedgerEntryType = "usage"
	LedgerEntrySubscription LedgerEntryType = "subscription"
)

// LedgerEntry is one immutable record in the append-only transaction log.
// An account's balance always equals the sum of its entries; every balance
// mutation writes exactly one entry in the same database transaction.
type LedgerEntry struct {
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// AccountID is the affected account.
	AccountID string `json:"account_id" gorm:"column:account_id;index;not null"`
	// Amount is signed: positive for credits, negative for usage.
	Amount decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric(38,18);not null"`
	// Type classifies the event.
	Type LedgerEntryType `json:"type" gorm:"column:type;not null"`
	// Description is a human-readable summary.
	Description string `json:"description" gorm:"column:description"`
	// Chain, TxHash and DepositID back-reference the deposit for credits.
	Chain     Chain  `json:"chain,omitempty" gorm:"column:chain"`
	TxHash    string `json:"tx_hash,omitempty" gorm:"column:tx_hash;index"`
	DepositID string `json:"deposit_id,omitempty" gorm:"column:deposit_id;index"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;index"`
}

func (LedgerEntry) TableName() string {
	return "transactions"
}

// AccountBalance is the authoritative denormalized cache of the ledger sum,
// kept for fast reads. It is mutated only inside the same transaction as the
// matching LedgerEntry insert.
type AccountBalance struct {
	AccountID string          `json:"account_id" gorm:"column:account_id;primaryKey"`
	Balance   decimal.Decimal `json:"balance" gorm:"column:balance;type:numeric(38,18);not null"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

func (AccountBalance) TableName() string {
	return "account_balances"
}
