package listener

import (
	"context"
	"time"

	"github.com/sonotxt/custodia/internal/config"
	"github.com/sonotxt/custodia/internal/ledger"
	"github.com/sonotxt/custodia/internal/models"
	"github.com/sonotxt/custodia/pkg/logger"
)

// Penumbra watches a view service for incoming shielded notes. Notes carry
// only a diversifier sub-index; mapping one back to an account goes through
// the persisted chain_sub_index column, never through the address string,
// which does not appear on-chain in plaintext.
type Penumbra struct {
	client   *ViewClient
	repo     models.Repository
	ledger   *ledger.Ledger
	asset    config.AssetInfo
	interval time.Duration
	watch    *watchList
	logger   *logger.Logger

	height uint64
}

func NewPenumbra(client *ViewClient, repo models.Repository, ledger *ledger.Ledger,
	asset config.AssetInfo, interval time.Duration, logger *logger.Logger) *Penumbra {
	return &Penumbra{
		client:   client,
		repo:     repo,
		ledger:   ledger,
		asset:    asset,
		interval: interval,
		watch:    newWatchList(),
		logger:   logger.Named("penumbra"),
	}
}

func (l *Penumbra) Chain() models.Chain {
	return models.ChainPenumbra
}

// Connect loads the durable cursor and re-registers every known sub-index
// with the view service. Registration must complete before the run loop
// starts or notes arriving for those addresses will not be matched.
func (l *Penumbra) Connect(ctx context.Context) error {
	height, err := l.repo.Cursor(models.ChainPenumbra)
	if err != nil {
		return err
	}
	l.height = height

	addrs, err := l.repo.WatchedAddresses(models.ChainPenumbra)
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		if addr.ChainSubIndex == nil {
			l.logger.Warnf("Address %d has no sub-index, skipping", addr.ID)
			continue
		}
		sub := *addr.ChainSubIndex
		entry := models.WatchEntry{
			AccountID:       addr.AccountID,
			Address:         addr.Address,
			DerivationIndex: addr.DerivationIndex,
			SubIndex:        &sub,
		}
		if err := l.client.RegisterSubIndex(ctx, sub); err != nil {
			return err
		}
		l.watch.add(entry)
	}
	l.logger.Infof("Connected at height %d, watching %d sub-indices", l.height, l.watch.len())
	return nil
}

// Run connects and then polls until the context is cancelled. A view
// service that is unreachable at startup is retried with capped backoff
// instead of failing the process; the other chain keeps running.
func (l *Penumbra) Run(ctx context.Context) {
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

func (l *Penumbra) poll(ctx context.Context) error {
	notes, latest, err := l.client.Notes(ctx, l.height)
	if err != nil {
		return err
	}
	if latest <= l.height && len(notes) == 0 {
		return nil
	}

	var deposits []*models.Deposit
	for _, note := range notes {
		entry, ok := l.watch.lookupSubIndex(note.SubIndex)
		if !ok {
			l.logger.Warnf("Skipping note %s: no payment address for sub-index %d", note.TxHash, note.SubIndex)
			continue
		}
		height := note.Height
		deposits = append(deposits, &models.Deposit{
			AccountID:     entry.AccountID,
			Chain:         models.ChainPenumbra,
			TxHash:        note.TxHash,
			Asset:         l.asset.Symbol,
			Amount:        note.Amount.Shift(-l.asset.Decimals),
			Confirmations: 1,
			BlockNumber:   &height,
			ToAddress:     entry.Address,
		})
	}

	var credited []*models.Deposit
	err = l.repo.Transaction(func(tx models.Repository) error {
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
		return tx.SaveCursor(models.ChainPenumbra, latest)
	})
	if err != nil {
		return err
	}

	l.height = latest
	for _, d := range credited {
		l.ledger.NotifyCredited(d)
	}
	return nil
}

// Watch registers a freshly derived sub-index with the view service and
// adds it to the watch-list. Registration failures are logged, not fatal;
// Connect re-registers everything on the next restart.
func (l *Penumbra) Watch(entry models.WatchEntry) {
	if entry.SubIndex == nil {
		l.logger.Errorf("Refusing to watch %s: no sub-index", entry.Address)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := l.client.RegisterSubIndex(ctx, *entry.SubIndex); err != nil {
		l.logger.Errorf("Failed to register sub-index %d: %s", *entry.SubIndex, err)
	}
	l.watch.add(entry)
	l.logger.Infof("Watching sub-index %d for account %s", *entry.SubIndex, entry.AccountID)
}

func (l *Penumbra) Unwatch(entry models.WatchEntry) {
	l.watch.remove(entry)
	l.logger.Info("Stopped watching ", entry.Address)
}
