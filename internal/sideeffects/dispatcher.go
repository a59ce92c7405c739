// Package sideeffects runs fire-and-forget work (XP awards, analytics) after a
// response has been produced. Tasks run on a detached context with their own
// timeout, so the request that submitted them can finish or be canceled
// without affecting them, and a failing task never reaches the caller.
package sideeffects

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/telemetry"
)

// Defaults used when no option overrides them.
const (
	DefaultWorkers   = 2
	DefaultQueueSize = 256
	DefaultTimeout   = 10 * time.Second
)

// Task is one unit of detached work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher is a bounded queue served by a fixed set of workers.
type Dispatcher struct {
	queue   chan Task
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*options)

type options struct {
	workers   int
	queueSize int
	timeout   time.Duration
	logger    *slog.Logger
}

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize sets how many tasks may wait before Submit drops new ones.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithTimeout bounds each task.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New starts a dispatcher. Call Close to drain it.
func New(opts ...Option) *Dispatcher {
	o := options{
		workers:   DefaultWorkers,
		queueSize: DefaultQueueSize,
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Dispatcher{
		queue:   make(chan Task, o.queueSize),
		timeout: o.timeout,
		logger:  o.logger,
	}
	for i := 0; i < o.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit enqueues a task without blocking. It reports false when the task was
// dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Submit(task Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		telemetry.SideEffectsTotal.WithLabelValues(task.Name, "dropped").Inc()
		d.logger.Warn("side effect dropped, dispatcher closed", slog.String("task", task.Name))
		return false
	}

	select {
	case d.queue <- task:
		return true
	default:
		telemetry.SideEffectsTotal.WithLabelValues(task.Name, "dropped").Inc()
		d.logger.Warn("side effect dropped, queue full", slog.String("task", task.Name))
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish or for ctx
// to end, whichever comes first.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("side effects not drained: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for task := range d.queue {
		d.run(task)
	}
}

func (d *Dispatcher) run(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	status := "ok"
	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			d.logger.Error("side effect panicked",
				slog.String("task", task.Name),
				slog.Any("panic", r),
			)
		}
		telemetry.SideEffectsTotal.WithLabelValues(task.Name, status).Inc()
	}()

	if err := task.Run(ctx); err != nil {
		status = "error"
		d.logger.Warn("side effect failed",
			slog.String("task", task.Name),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return
	}
	d.logger.Debug("side effect finished",
		slog.String("task", task.Name),
		slog.Duration("duration", time.Since(start)),
	)
}
