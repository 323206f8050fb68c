package cleanup

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sweeper drops lock entries that have been idle longer than idle.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

// Reconciler settles complete matches whose settlement failed earlier.
type Reconciler interface {
	ReconcileSettlements(ctx context.Context, limit int) (int, error)
}

const reconcileBatch = 100

type Options struct {
	Locks             Sweeper // nil when locks live in redis
	LockSweepInterval time.Duration
	LockIdleAfter     time.Duration

	Settlements       Reconciler
	ReconcileInterval time.Duration
}

type Worker struct {
	opts      Options
	scheduler gocron.Scheduler
	log       zerolog.Logger
}

func NewWorker(opts Options) *Worker {
	return &Worker{
		opts: opts,
		log:  log.With().Str("component", "cleanup").Logger(),
	}
}

// Start schedules the lock sweep and settlement reconciliation on a gocron scheduler.
func (w *Worker) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	if w.opts.Locks != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(w.opts.LockSweepInterval),
			gocron.NewTask(w.runCleanup),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			sched.Shutdown()
			return err
		}
	}
	if w.opts.Settlements != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(w.opts.ReconcileInterval),
			gocron.NewTask(w.runReconcile),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			sched.Shutdown()
			return err
		}
	}

	sched.Start()
	w.scheduler = sched
	w.log.Info().
		Bool("lock_sweep", w.opts.Locks != nil).
		Bool("reconcile", w.opts.Settlements != nil).
		Msg("background worker started")
	return nil
}

// Stop waits for running jobs to finish.
func (w *Worker) Stop() error {
	if w.scheduler == nil {
		return nil
	}
	return w.scheduler.Shutdown()
}

func (w *Worker) runCleanup() int {
	removed := w.opts.Locks.Sweep(w.opts.LockIdleAfter)
	if removed > 0 {
		w.log.Debug().Int("removed", removed).Msg("swept idle match locks")
	}
	return removed
}

func (w *Worker) runReconcile() int {
	ctx, cancel := context.WithTimeout(context.Background(), w.opts.ReconcileInterval)
	defer cancel()

	settled, err := w.opts.Settlements.ReconcileSettlements(ctx, reconcileBatch)
	if err != nil {
		w.log.Error().Err(err).Int("settled", settled).Msg("settlement reconciliation incomplete")
	} else if settled > 0 {
		w.log.Info().Int("settled", settled).Msg("reconciled settlements")
	}
	return settled
}
