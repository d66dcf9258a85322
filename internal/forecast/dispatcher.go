package forecast

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Task is a unit of background work
type Task func(ctx context.Context) error

type job struct {
	name string
	ctx  context.Context
	fn   Task
}

// Dispatcher runs background tasks on a single worker off a bounded queue.
// Submit never blocks, and task failures are only logged.
type Dispatcher struct {
	queue  chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger zerolog.Logger
}

// NewDispatcher starts a dispatcher with room for size pending tasks
func NewDispatcher(size int) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	d := &Dispatcher{
		queue:  make(chan job, size),
		logger: log.With().Str("component", "dispatcher").Logger(),
	}
	d.wg.Add(1)
	go d.worker()
	return d
}

// Submit queues fn. It reports false when the task was dropped because the
// queue is full or the dispatcher is closed.
func (d *Dispatcher) Submit(ctx context.Context, name string, fn Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn().Str("task", name).Msg("Dispatcher closed, dropping task")
		return false
	}

	select {
	case d.queue <- job{name: name, ctx: context.WithoutCancel(ctx), fn: fn}:
		return true
	default:
		d.logger.Warn().Str("task", name).Msg("Task queue full, dropping task")
		return false
	}
}

// Close stops accepting tasks and waits for the queued ones to finish
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("task", j.name).Err(fmt.Errorf("panic: %v", r)).Msg("Background task panicked")
		}
	}()

	if err := j.fn(j.ctx); err != nil {
		d.logger.Error().Err(err).Str("task", j.name).Msg("Background task failed")
		return
	}
	d.logger.Debug().Str("task", j.name).Msg("Background task done")
}
