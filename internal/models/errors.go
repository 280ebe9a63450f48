package models

import "errors"

var (
	// ErrDepositExists is returned when a tx hash was already recorded.
	// The storage-level unique constraint is the source of truth here.
	ErrDepositExists = errors.New("deposit already recorded")
	// ErrAddressLimit is returned when an account is at its address cap.
	ErrAddressLimit = errors.New("address limit reached")
	// ErrInvalidTransition is returned when a deposit status update would
	// move backwards or skip the confirmed state.
	ErrInvalidTransition = errors.New("invalid deposit status transition")
	// ErrSeedNotConfigured is returned when no wallet seed source is set.
	ErrSeedNotConfigured = errors.New("wallet seed not configured")
	// ErrUnknownSubIndex is returned when a shielded note carries a
	// sub-index no payment address was derived with.
	ErrUnknownSubIndex = errors.New("no payment address for sub-index")
)
