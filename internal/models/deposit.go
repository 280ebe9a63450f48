package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositStatus is the lifecycle state of a deposit. Transitions only move
// forward (pending -> confirmed -> credited) and rows are never deleted.
type DepositStatus string

const (
	// DepositStatusPending means the deposit was reported but not yet
	// verified against the chain (manual reports start here).
	DepositStatusPending DepositStatus = "pending"
	// DepositStatusConfirmed means a listener observed the transfer in a
	// finalized block, or the confirmation policy was satisfied.
	DepositStatusConfirmed DepositStatus = "confirmed"
	// DepositStatusCredited means the account balance was updated. Terminal.
	DepositStatusCredited DepositStatus = "credited"
)

// Deposit is one observed or reported incoming transfer.
type Deposit struct {
	// ID is a UUID assigned at creation.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// AccountID is the credited account.
	AccountID string `json:"account_id" gorm:"column:account_id;index;not null"`
	// Chain is the rail the deposit arrived on.
	Chain Chain `json:"chain" gorm:"column:chain;not null"`
	// TxHash is the chain transaction hash. Globally unique across all
	// chains and the sole de-duplication key; the uniqueIndex is what makes
	// crediting idempotent under races, not any check-then-insert logic.
	TxHash string `json:"tx_hash" gorm:"column:tx_hash;uniqueIndex;not null"`
	// Asset is the deposited asset symbol (USDC, USDT, ...).
	Asset string `json:"asset" gorm:"column:asset;not null"`
	// Amount is the deposited amount in asset units.
	Amount decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric(38,18);not null"`
	// Status is the lifecycle state.
	Status DepositStatus `json:"status" gorm:"column:status;index;not null"`
	// Confirmations counts blocks observed on top of the deposit's block.
	Confirmations uint32 `json:"confirmations" gorm:"column:confirmations;not null;default:0"`
	// BlockNumber is the height the transfer was observed at, when known.
	BlockNumber *uint64 `json:"block_number,omitempty" gorm:"column:block_number"`
	// FromAddress is the sender, when the chain reveals it.
	FromAddress string `json:"from_address,omitempty" gorm:"column:from_address"`
	// ToAddress is the watched destination address, when applicable.
	ToAddress string `json:"to_address,omitempty" gorm:"column:to_address"`
	// CreatedAt is when the deposit row was first written.
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;index"`
	// CreditedAt is when the balance was updated, nil before that.
	CreditedAt *time.Time `json:"credited_at,omitempty" gorm:"column:credited_at"`
}

func (Deposit) TableName() string {
	return "deposits"
}

// ChainCursor is the durable per-chain watermark a listener resumes from
// after a restart. It is advanced in the same transaction as any deposits
// discovered in the covered block range, so a crash can never skip a block.
type ChainCursor struct {
	Chain     Chain     `json:"chain" gorm:"column:chain;primaryKey"`
	Height    uint64    `json:"height" gorm:"column:height;not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (ChainCursor) TableName() string {
	return "chain_cursors"
}
