package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// job runs one function on a cron schedule. Overlapping runs are skipped and
// a panicking run does not stop the schedule.
type job struct {
	name     string
	schedule string
	cron     *cron.Cron
}

// start schedules run, fires it once immediately and starts the scheduler.
func (j *job) start(ctx context.Context, run func(context.Context)) error {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := c.AddFunc(j.schedule, func() { run(ctx) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", j.name, j.schedule, err)
	}
	j.cron = c
	zap.L().Info("worker starting", zap.String("worker", j.name), zap.String("schedule", j.schedule))

	go run(ctx)
	c.Start()
	return nil
}

// stop stops the scheduler and waits for a running invocation to finish.
func (j *job) stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
	zap.L().Info("worker stopped", zap.String("worker", j.name))
}
