package worker

import (
	"context"

	"github.com/ayo6706/ebanking-core/internal/observability"
	"go.uber.org/zap"
)

const DefaultPurgeSchedule = "@every 15m"

// KeyPurger is implemented by *idempotency.Store.
type KeyPurger interface {
	Purge(ctx context.Context) (int64, error)
}

// PurgeWorker deletes expired idempotency keys on a cron schedule.
type PurgeWorker struct {
	purger KeyPurger
	job    job
}

func NewPurgeWorker(purger KeyPurger) *PurgeWorker {
	return &PurgeWorker{
		purger: purger,
		job:    job{name: "idempotency_purge", schedule: DefaultPurgeSchedule},
	}
}

func (w *PurgeWorker) WithSchedule(schedule string) *PurgeWorker {
	if schedule != "" {
		w.job.schedule = schedule
	}
	return w
}

// Run starts the worker and returns a stop function.
func (w *PurgeWorker) Run(ctx context.Context) (func(), error) {
	if err := w.job.start(ctx, w.RunOnce); err != nil {
		return nil, err
	}
	return w.job.stop, nil
}

func (w *PurgeWorker) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	removed, err := w.purger.Purge(ctx)
	if err != nil {
		observability.IncrementWorkerRun("idempotency_purge", "failed")
		zap.L().Warn("idempotency purge failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("idempotency_purge", "success")
	if removed > 0 {
		zap.L().Info("expired idempotency keys purged", zap.Int64("removed", removed))
	}
}
