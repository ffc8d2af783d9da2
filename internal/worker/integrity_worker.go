package worker

import (
	"context"

	"github.com/ayo6706/ebanking-core/internal/observability"
	"github.com/ayo6706/ebanking-core/internal/service"
	"go.uber.org/zap"
)

const DefaultIntegritySchedule = "@every 1h"

// IntegrityAuditor is implemented by *service.IntegrityService.
type IntegrityAuditor interface {
	Run(ctx context.Context) (service.IntegrityReport, error)
}

// IntegrityWorker runs ledger integrity audits on a cron schedule.
type IntegrityWorker struct {
	auditor IntegrityAuditor
	job     job
}

func NewIntegrityWorker(auditor IntegrityAuditor) *IntegrityWorker {
	return &IntegrityWorker{
		auditor: auditor,
		job:     job{name: "integrity", schedule: DefaultIntegritySchedule},
	}
}

// WithSchedule sets a standard cron spec or descriptor such as "@every 30m".
func (w *IntegrityWorker) WithSchedule(schedule string) *IntegrityWorker {
	if schedule != "" {
		w.job.schedule = schedule
	}
	return w
}

// Start runs one audit immediately and then follows the schedule.
func (w *IntegrityWorker) Start(ctx context.Context) error {
	return w.job.start(ctx, w.RunOnce)
}

func (w *IntegrityWorker) Stop() {
	w.job.stop()
}

// Run starts the worker and returns a stop function.
func (w *IntegrityWorker) Run(ctx context.Context) (func(), error) {
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w.Stop, nil
}

func (w *IntegrityWorker) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := w.auditor.Run(ctx)
	if err != nil {
		observability.IncrementWorkerRun("integrity", "failed")
		zap.L().Error("integrity audit failed", zap.Error(err))
		return
	}
	if !report.Healthy() {
		observability.IncrementWorkerRun("integrity", "violations")
		return
	}
	observability.IncrementWorkerRun("integrity", "success")
}
