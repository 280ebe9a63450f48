package models

import "time"

// PaymentAddress is a deposit address derived for an account on one chain.
// Rows are never deleted; rotation deactivates the old row and inserts a new
// one, so the full history stays auditable.
type PaymentAddress struct {
	// ID is the surrogate key.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// AccountID is the owning account (UUID string).
	AccountID string `json:"account_id" gorm:"column:account_id;index:idx_account_chain;not null;uniqueIndex:idx_account_chain_index"`
	// Chain is the chain this address lives on.
	Chain Chain `json:"chain" gorm:"column:chain;index:idx_account_chain;not null;uniqueIndex:idx_account_chain_index"`
	// Address is the chain-native encoded address (SS58 or bech32m).
	Address string `json:"address" gorm:"column:address;not null;index"`
	// DerivationIndex is strictly increasing per (account, chain) and never
	// reused, even across rotations. Together with the deterministic deriver
	// this guarantees address uniqueness.
	DerivationIndex uint32 `json:"derivation_index" gorm:"column:derivation_index;not null;uniqueIndex:idx_account_chain_index"`
	// ChainSubIndex is the shielded-chain diversifier index. Observed notes
	// carry this value, and it is the only way to map a shielded deposit
	// back to an account. Nil for transparent chains.
	ChainSubIndex *uint32 `json:"chain_sub_index,omitempty" gorm:"column:chain_sub_index;index"`
	// IsActive marks the single address currently handed out for deposits.
	// At most one active row exists per (account, chain).
	IsActive bool `json:"is_active" gorm:"column:is_active;not null;index"`
	// CreatedAt is when the address was derived.
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (PaymentAddress) TableName() string {
	return "payment_addresses"
}

// WatchEntry is what a chain listener keeps in its in-memory watch-list for
// one active payment address.
type WatchEntry struct {
	AccountID       string
	Address         string
	DerivationIndex uint32
	// SubIndex is non-nil for shielded chains only. Transparent-chain
	// entries must leave it nil or they would collide in a listener's
	// sub-index lookup map.
	SubIndex *uint32
}

// Watcher is the runtime hook the registry uses to make a freshly derived or
// rotated address watchable without restarting the listener.
type Watcher interface {
	Watch(entry WatchEntry)
	Unwatch(entry WatchEntry)
}
