package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/ebanking-core/internal/observability"
	"go.uber.org/zap"
)

var ErrStopped = errors.New("dispatcher stopped")

// Func is a unit of background work.
type Func func(ctx context.Context) error

// Task is the observable handle of a submitted Func.
type Task struct {
	name string
	done chan struct{}
	err  error
}

func newTask(name string) *Task {
	return &Task{name: name, done: make(chan struct{})}
}

// Completed returns a task that has already finished with err.
func Completed(name string, err error) *Task {
	t := newTask(name)
	t.finish(err)
	return t
}

func (t *Task) Name() string { return t.name }

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task result. It is only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) finish(err error) {
	t.err = err
	close(t.done)
}

type job struct {
	ctx  context.Context
	task *Task
	fn   Func
}

// Dispatcher runs fire-and-forget work on a bounded worker pool. Submitters
// never block: when the queue is full the job runs on an overflow goroutine.
type Dispatcher struct {
	workers int
	timeout time.Duration
	queue   chan job

	mu       sync.RWMutex
	stopped  bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewDispatcher creates a dispatcher with the given pool and queue sizes.
func NewDispatcher(workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Dispatcher{
		workers: workers,
		timeout: 30 * time.Second,
		queue:   make(chan job, queueSize),
	}
}

// WithTimeout bounds each task's execution time.
func (d *Dispatcher) WithTimeout(timeout time.Duration) *Dispatcher {
	if timeout > 0 {
		d.timeout = timeout
	}
	return d
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.queue {
				d.execute(j)
			}
		}()
	}
}

// Run starts the pool and returns a function that drains and stops it.
func (d *Dispatcher) Run() func() {
	d.Start()
	return d.Stop
}

// Stop rejects new work, lets queued tasks finish and waits for the workers.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		close(d.queue)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

// Submit hands fn off for background execution. The task runs with a
// context detached from ctx's cancellation but carrying its values.
func (d *Dispatcher) Submit(ctx context.Context, name string, fn Func) *Task {
	task := newTask(name)
	j := job{ctx: context.WithoutCancel(ctx), task: task, fn: fn}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		observability.IncrementTask(name, "rejected")
		task.finish(ErrStopped)
		return task
	}

	select {
	case d.queue <- j:
	default:
		observability.IncrementTask(name, "overflow")
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.execute(j)
		}()
	}
	return task
}

func (d *Dispatcher) execute(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()

	err := safeCall(ctx, j.fn)
	if err != nil {
		observability.IncrementTask(j.task.name, "failed")
		zap.L().Error("background task failed", zap.String("task", j.task.name), zap.Error(err))
	} else {
		observability.IncrementTask(j.task.name, "success")
	}
	j.task.finish(err)
}

func safeCall(ctx context.Context, fn Func) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return fn(ctx)
}
