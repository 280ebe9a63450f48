package reconciler

import (
	"context"
	"time"

	"github.com/sonotxt/custodia/internal/ledger"
	"github.com/sonotxt/custodia/internal/models"
	"github.com/sonotxt/custodia/pkg/logger"
)

// sweepBatch bounds how many deposits one sweep loads per status.
const sweepBatch = 200

// Reconciler periodically sweeps deposits that did not finish the pipeline:
// pending ones are promoted once their confirmation count satisfies the
// policy, confirmed ones are pushed through crediting. It is the backstop
// for manual reports and for a crash between confirmation and crediting.
// A pending deposit with too few confirmations stays pending; elapsed time
// alone never confirms anything.
type Reconciler struct {
	repo             models.Repository
	ledger           *ledger.Ledger
	interval         time.Duration
	minConfirmations uint32
	logger           *logger.Logger
}

func New(repo models.Repository, ledger *ledger.Ledger, interval time.Duration,
	minConfirmations uint32, logger *logger.Logger) *Reconciler {
	return &Reconciler{
		repo:             repo,
		ledger:           ledger,
		interval:         interval,
		minConfirmations: minConfirmations,
		logger:           logger.Named("reconciler"),
	}
}

// Run sweeps on a fixed interval until the context is cancelled. Individual
// deposit failures are logged and skipped so one bad row cannot stall the
// sweep.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep runs one pass over pending and confirmed deposits.
func (r *Reconciler) Sweep() {
	r.sweepPending()
	r.sweepConfirmed()
}

func (r *Reconciler) sweepPending() {
	pending, err := r.repo.DepositsByStatus(models.DepositStatusPending, sweepBatch)
	if err != nil {
		r.logger.Errorf("Failed to load pending deposits: %s", err)
		return
	}
	for _, d := range pending {
		if d.Confirmations < r.minConfirmations {
			r.logger.Debugf("Deposit %s has %d/%d confirmations, leaving pending",
				d.ID, d.Confirmations, r.minConfirmations)
			continue
		}
		if err := r.repo.TransitionDeposit(d.ID, models.DepositStatusPending, models.DepositStatusConfirmed); err != nil {
			r.logger.Errorf("Failed to confirm deposit %s: %s", d.ID, err)
			continue
		}
		if err := r.ledger.CreditDeposit(d.ID); err != nil {
			r.logger.Errorf("Failed to credit deposit %s: %s", d.ID, err)
		}
	}
}

func (r *Reconciler) sweepConfirmed() {
	confirmed, err := r.repo.DepositsByStatus(models.DepositStatusConfirmed, sweepBatch)
	if err != nil {
		r.logger.Errorf("Failed to load confirmed deposits: %s", err)
		return
	}
	for _, d := range confirmed {
		if err := r.ledger.CreditDeposit(d.ID); err != nil {
			r.logger.Errorf("Failed to credit deposit %s: %s", d.ID, err)
		}
	}
}
