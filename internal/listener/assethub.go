package listener

import (
	"context"
	"time"

	"github.com/sonotxt/custodia/internal/config"
	"github.com/sonotxt/custodia/internal/ledger"
	"github.com/sonotxt/custodia/internal/models"
	"github.com/sonotxt/custodia/pkg/logger"
)

// maxRetryDelay caps the exponential backoff after repeated chain errors.
const maxRetryDelay = 5 * time.Minute

// AssetHub watches finalized Asset Hub blocks for stablecoin transfers into
// derived deposit addresses. It resumes from a durable block cursor, which
// advances in the same transaction as any deposits found in that block, so
// a crash mid-range never skips or double-credits a block.
type AssetHub struct {
	client   *SidecarClient
	repo     models.Repository
	ledger   *ledger.Ledger
	assets   map[uint64]config.AssetInfo
	interval time.Duration
	watch    *watchList
	logger   *logger.Logger

	height uint64
}

func NewAssetHub(client *SidecarClient, repo models.Repository, ledger *ledger.Ledger,
	assets map[uint64]config.AssetInfo, interval time.Duration, logger *logger.Logger) *AssetHub {
	return &AssetHub{
		client:   client,
		repo:     repo,
		ledger:   ledger,
		assets:   assets,
		interval: interval,
		watch:    newWatchList(),
		logger:   logger.Named("assethub"),
	}
}

func (l *AssetHub) Chain() models.Chain {
	return models.ChainAssetHub
}

// Connect loads the durable cursor and rebuilds the watch-list from
// storage. A fresh deployment with no cursor starts at the current
// finalized head instead of replaying chain history.
func (l *AssetHub) Connect(ctx context.Context) error {
	height, err := l.repo.Cursor(models.ChainAssetHub)
	if err != nil {
		return err
	}
	if height == 0 {
		height, err = l.client.FinalizedHeight(ctx)
		if err != nil {
			return err
		}
		if err := l.repo.SaveCursor(models.ChainAssetHub, height); err != nil {
			return err
		}
	}
	l.height = height

	addrs, err := l.repo.WatchedAddresses(models.ChainAssetHub)
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		l.watch.add(models.WatchEntry{
			AccountID:       addr.AccountID,
			Address:         addr.Address,
			DerivationIndex: addr.DerivationIndex,
		})
	}
	l.logger.Infof("Connected at height %d, watching %d addresses", l.height, l.watch.len())
	return nil
}

// Run connects and then polls until the context is cancelled. Transient
// chain errors, connecting included, are retried with capped exponential
// backoff and never terminate the loop; a sidecar that is down at startup
// only delays this listener.
func (l *AssetHub) Run(ctx context.Context) {
	bo := newBackoff(l.interval, maxRetryDelay)
	for {
		err := l.Connect(ctx)
		if err == nil {
			bo.Reset()
			break
		}
		if ctx.Err() != nil {
			return
		}
		delay := bo.Next()
		l.logger.Errorf("Connect failed, retrying in %s: %s", delay, err)
		select {
		case <-ctx.Done():
			l.logger.Info("Listener stopped")
			return
		case <-time.After(delay):
		}
	}

	for {
		delay := l.interval
		if err := l.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			delay = bo.Next()
			l.logger.Errorf("Poll failed, retrying in %s: %s", delay, err)
		} else {
			bo.Reset()
		}

		select {
		case <-ctx.Done():
			l.logger.Info("Listener stopped")
			return
		case <-time.After(delay):
		}
	}
}

func (l *AssetHub) poll(ctx context.Context) error {
	head, err := l.client.FinalizedHeight(ctx)
	if err != nil {
		return err
	}

	for height := l.height + 1; height <= head; height++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		transfers, err := l.client.BlockTransfers(ctx, height)
		if err != nil {
			return err
		}
		if err := l.processBlock(height, transfers); err != nil {
			return err
		}
	}
	return nil
}

// processBlock credits every watched transfer in the block and advances the
// cursor, all in one transaction.
func (l *AssetHub) processBlock(height uint64, transfers []AssetTransfer) error {
	var deposits []*models.Deposit
	for _, t := range transfers {
		entry, ok := l.watch.lookupAddress(t.To)
		if !ok {
			continue
		}
		info, ok := l.assets[t.AssetID]
		if !ok {
			l.logger.Warnf("Skipping transfer %s to %s: unknown asset id %d", t.TxHash, t.To, t.AssetID)
			continue
		}
		blockNumber := t.Block
		deposits = append(deposits, &models.Deposit{
			AccountID:     entry.AccountID,
			Chain:         models.ChainAssetHub,
			TxHash:        t.TxHash,
			Asset:         info.Symbol,
			Amount:        t.Amount.Shift(-info.Decimals),
			Confirmations: 1,
			BlockNumber:   &blockNumber,
			ToAddress:     t.To,
		})
	}

	var credited []*models.Deposit
	err := l.repo.Transaction(func(tx models.Repository) error {
		credited = credited[:0]
		for _, d := range deposits {
			done, err := l.ledger.RecordObserved(tx, d)
			if err != nil {
				return err
			}
			if done != nil {
				credited = append(credited, done)
			}
		}
		return tx.SaveCursor(models.ChainAssetHub, height)
	})
	if err != nil {
		return err
	}

	l.height = height
	for _, d := range credited {
		l.ledger.NotifyCredited(d)
	}
	return nil
}

func (l *AssetHub) Watch(entry models.WatchEntry) {
	l.watch.add(entry)
	l.logger.Infof("Watching address %s for account %s", entry.Address, entry.AccountID)
}

func (l *AssetHub) Unwatch(entry models.WatchEntry) {
	l.watch.remove(entry)
	l.logger.Infof("Stopped watching address %s", entry.Address)
}
