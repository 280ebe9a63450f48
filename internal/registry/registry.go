package registry

import (
	"fmt"
	"time"

	"github.com/sonotxt/custodia/internal/models"
	"github.com/sonotxt/custodia/internal/wallet"
	"github.com/sonotxt/custodia/pkg/logger"
)

// Registry owns the lifecycle of derived deposit addresses: get-or-create,
// rotation with a per-account cap, and history. Freshly created addresses
// are pushed to the chain's watcher so they become observable without a
// listener restart.
type Registry struct {
	repo         models.Repository
	deriver      *wallet.Deriver
	maxAddresses int
	watchers     map[models.Chain]models.Watcher
	logger       *logger.Logger
}

func New(repo models.Repository, deriver *wallet.Deriver, maxAddresses int, logger *logger.Logger) *Registry {
	return &Registry{
		repo:         repo,
		deriver:      deriver,
		maxAddresses: maxAddresses,
		watchers:     make(map[models.Chain]models.Watcher),
		logger:       logger,
	}
}

// SetWatcher registers the runtime watch hook for a chain. Called during
// startup wiring, before the API starts serving.
func (r *Registry) SetWatcher(chain models.Chain, w models.Watcher) {
	r.watchers[chain] = w
}

// GetDepositAddress returns the account's active address on the chain,
// deriving index 0 on first use.
func (r *Registry) GetDepositAddress(accountID string, chain models.Chain) (*models.PaymentAddress, error) {
	active, err := r.repo.ActiveAddress(accountID, chain)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return active, nil
	}
	return r.createNext(accountID, chain, false)
}

// RotateAddress deactivates the account's current address and derives the
// next one, atomically. Fails once the account holds maxAddresses rows.
func (r *Registry) RotateAddress(accountID string, chain models.Chain) (*models.PaymentAddress, error) {
	return r.createNext(accountID, chain, true)
}

// createNext derives the address at max(existing indices)+1 and persists it
// as the single active row. The deactivate and insert share one transaction,
// so a failure leaves the prior active address untouched. The cap is counted
// inside the same transaction, so two rotations racing at the limit cannot
// both slip past it.
func (r *Registry) createNext(accountID string, chain models.Chain, enforceCap bool) (*models.PaymentAddress, error) {
	if r.deriver == nil {
		return nil, models.ErrSeedNotConfigured
	}

	var addr *models.PaymentAddress
	err := r.repo.Transaction(func(tx models.Repository) error {
		if enforceCap {
			count, err := tx.CountAddresses(accountID, chain)
			if err != nil {
				return err
			}
			if count >= int64(r.maxAddresses) {
				return fmt.Errorf("%w (%d/%d)", models.ErrAddressLimit, count, r.maxAddresses)
			}
		}
		maxIndex, err := tx.MaxDerivationIndex(accountID, chain)
		if err != nil {
			return err
		}
		index := uint32(maxIndex + 1)

		next := &models.PaymentAddress{
			AccountID:       accountID,
			Chain:           chain,
			DerivationIndex: index,
			IsActive:        true,
			CreatedAt:       time.Now(),
		}
		switch chain {
		case models.ChainAssetHub:
			next.Address, err = r.deriver.AssetHubAddress(accountID, index)
			if err != nil {
				return err
			}
		case models.ChainPenumbra:
			var subIndex uint32
			next.Address, subIndex, err = r.deriver.PenumbraAddress(accountID, index)
			if err != nil {
				return err
			}
			next.ChainSubIndex = &subIndex
		default:
			return fmt.Errorf("unknown chain %q", chain)
		}

		if err := tx.DeactivateAddresses(accountID, chain); err != nil {
			return err
		}
		if err := tx.CreateAddress(next); err != nil {
			return err
		}
		addr = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Infof("Derived %s address for account %s at index %d", chain, accountID, addr.DerivationIndex)
	if w, ok := r.watchers[chain]; ok {
		w.Watch(watchEntry(addr))
	}
	return addr, nil
}

// ListAddresses returns the account's address history, newest first.
func (r *Registry) ListAddresses(accountID string, chain models.Chain) ([]*models.PaymentAddress, error) {
	return r.repo.ListAddresses(accountID, chain)
}

// RemainingSlots reports how many more addresses the account may rotate to.
func (r *Registry) RemainingSlots(accountID string, chain models.Chain) (int, error) {
	count, err := r.repo.CountAddresses(accountID, chain)
	if err != nil {
		return 0, err
	}
	remaining := r.maxAddresses - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func watchEntry(addr *models.PaymentAddress) models.WatchEntry {
	entry := models.WatchEntry{
		AccountID:       addr.AccountID,
		Address:         addr.Address,
		DerivationIndex: addr.DerivationIndex,
	}
	if addr.ChainSubIndex != nil {
		sub := *addr.ChainSubIndex
		entry.SubIndex = &sub
	}
	return entry
}
