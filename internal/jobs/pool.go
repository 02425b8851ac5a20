// Package jobs runs background work on a bounded pool of workers.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrWorkerQueueFull is returned by Submit when the queue has no room.
	ErrWorkerQueueFull = errors.New("worker queue full")
	// ErrPoolStopped is returned by Submit after the pool has stopped.
	ErrPoolStopped = errors.New("worker pool stopped")
)

// TaskHandler processes one work unit. Implementations must be safe for
// concurrent use.
type TaskHandler func(ctx context.Context, unit *WorkUnit) error

// WorkUnit is a single queued task.
type WorkUnit struct {
	ID      string
	BatchID string
	Task    string
	Payload any
}

// NewWorkUnit creates a unit with a fresh id.
func NewWorkUnit(batchID, task string, payload any) *WorkUnit {
	return &WorkUnit{
		ID:      uuid.New().String(),
		BatchID: batchID,
		Task:    task,
		Payload: payload,
	}
}

// WorkResult reports the outcome of a unit.
type WorkResult struct {
	Unit     *WorkUnit
	Error    error
	Duration time.Duration
}

// PoolStatus reports a pool's current state.
type PoolStatus struct {
	Name       string `json:"name"`
	Workers    int    `json:"workers"`
	InFlight   int    `json:"in_flight"`
	QueueDepth int    `json:"queue_depth"`
	Completed  int64  `json:"completed"`
	Failed     int64  `json:"failed"`
}

// Config configures a new worker pool.
type Config struct {
	Name        string
	Logger      *slog.Logger
	WorkerCount int // Number of worker goroutines (default: 1)
	QueueSize   int // Queue size (default: 1000)

	// OnResult is called from the worker goroutine after each unit.
	OnResult func(WorkResult)
}

// Pool manages a fixed set of workers that share a single queue.
type Pool struct {
	name        string
	logger      *slog.Logger
	workerCount int
	onResult    func(WorkResult)

	queue chan *WorkUnit

	handlers map[string]TaskHandler
	mu       sync.RWMutex

	wg      sync.WaitGroup
	started atomic.Bool
	stopped atomic.Bool

	inFlight  atomic.Int32
	completed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a new worker pool.
func NewPool(cfg Config) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = "default"
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	return &Pool{
		name:        name,
		logger:      logger.With("pool", name, "workers", workerCount),
		workerCount: workerCount,
		onResult:    cfg.OnResult,
		queue:       make(chan *WorkUnit, queueSize),
		handlers:    make(map[string]TaskHandler),
	}
}

// RegisterHandler registers a handler for a task type.
// Must be called before Start.
func (p *Pool) RegisterHandler(task string, handler TaskHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[task] = handler
	p.logger.Debug("registered task handler", "task", task)
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Start launches the workers. They run until ctx is cancelled; Wait blocks
// until they have all returned.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.logger.Info("pool starting")
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	go func() {
		<-ctx.Done()
		p.stopped.Store(true)
		p.logger.Info("pool stopping", "dropped", len(p.queue))
	}()
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)
	for {
		select {
		case <-ctx.Done():
			return

		case unit := <-p.queue:
			p.inFlight.Add(1)
			result := p.process(ctx, unit)
			p.inFlight.Add(-1)
			if result.Error != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}
			p.logger.Debug("worker completed unit",
				"worker_id", id,
				"unit_id", unit.ID,
				"task", unit.Task,
				"success", result.Error == nil,
				"duration", result.Duration)
			if p.onResult != nil {
				p.onResult(result)
			}
		}
	}
}

// Submit adds a work unit to the pool's queue without blocking.
func (p *Pool) Submit(unit *WorkUnit) error {
	if p.stopped.Load() {
		return fmt.Errorf("%w: %s", ErrPoolStopped, p.name)
	}
	select {
	case p.queue <- unit:
		p.logger.Debug("pool accepted unit", "unit_id", unit.ID, "task", unit.Task, "queue_len", len(p.queue))
		return nil
	default:
		p.logger.Warn("pool queue full", "unit_id", unit.ID, "task", unit.Task)
		return fmt.Errorf("%w: %s", ErrWorkerQueueFull, p.name)
	}
}

// Status returns current pool status.
func (p *Pool) Status() PoolStatus {
	return PoolStatus{
		Name:       p.name,
		Workers:    p.workerCount,
		InFlight:   int(p.inFlight.Load()),
		QueueDepth: len(p.queue),
		Completed:  p.completed.Load(),
		Failed:     p.failed.Load(),
	}
}

func (p *Pool) process(ctx context.Context, unit *WorkUnit) WorkResult {
	start := time.Now()
	result := WorkResult{Unit: unit}

	p.mu.RLock()
	handler, ok := p.handlers[unit.Task]
	p.mu.RUnlock()

	if !ok {
		result.Error = fmt.Errorf("no handler registered for task: %s", unit.Task)
		return result
	}

	if err := handler(ctx, unit); err != nil {
		result.Error = err
		p.logger.Debug("work unit failed", "unit_id", unit.ID, "task", unit.Task, "error", err)
	}
	result.Duration = time.Since(start)
	return result
}
