// Package worker provides a bounded pool that executes analysis work across
// two priority lanes. The high lane exists as a latency hint for aggregation
// tasks; correctness never depends on lane ordering.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/logger"
)

// Lane selects which queue a task lands on.
type Lane int

const (
	LaneDefault Lane = iota
	LaneHigh
)

// String returns the string representation of a lane.
func (l Lane) String() string {
	if l == LaneHigh {
		return "high"
	}
	return "default"
}

// PoolState represents the current state of the pool.
type PoolState int32

const (
	PoolStateStopped PoolState = iota
	PoolStateRunning
	PoolStateDraining
)

// String returns the string representation of a pool state.
func (s PoolState) String() string {
	switch s {
	case PoolStateStopped:
		return "stopped"
	case PoolStateRunning:
		return "running"
	case PoolStateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Task is one unit of work with a label for logging.
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// Pool runs tasks on a fixed set of worker goroutines. Workers drain the
// high lane before the default lane but otherwise provide no ordering
// guarantee. A pool is single-use: once stopped it stays stopped.
type Pool struct {
	cfg    config.WorkerConfig
	log    logger.Interface
	state  atomic.Int32
	high   chan Task
	def    chan Task
	stop   chan struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc

	tasksProcessed atomic.Int64
}

// NewPool creates a worker pool. Start must be called before Submit.
func NewPool(cfg config.WorkerConfig, log logger.Interface) (*Pool, error) {
	if cfg.PoolSize < 1 {
		return nil, errors.New("pool size must be at least 1")
	}

	depth := cfg.QueueDepth
	if depth < 1 {
		depth = cfg.PoolSize
	}

	p := &Pool{
		cfg:  cfg,
		log:  log.WithComponent("worker"),
		high: make(chan Task, depth),
		def:  make(chan Task, depth),
		stop: make(chan struct{}),
	}
	p.state.Store(int32(PoolStateStopped))
	return p, nil
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(PoolStateStopped), int32(PoolStateRunning)) {
		return errors.New("pool is already running")
	}
	select {
	case <-p.stop:
		p.state.Store(int32(PoolStateStopped))
		return errors.New("pool cannot be restarted")
	default:
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.cfg.PoolSize; i++ {
		p.wg.Add(1)
		go p.worker(runCtx, i)
	}

	p.log.Info("worker pool started", "pool_size", p.cfg.PoolSize)
	return nil
}

// Stop drains the pool: queued tasks keep executing until the drain timeout
// passes, then in-flight work is cancelled. The task channels are never
// closed, so a Submit racing Stop fails instead of panicking.
func (p *Pool) Stop() error {
	if !p.state.CompareAndSwap(int32(PoolStateRunning), int32(PoolStateDraining)) {
		return errors.New("pool is not running")
	}

	p.log.Info("worker pool draining")
	close(p.stop)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("worker pool stopped gracefully")
	case <-time.After(p.cfg.DrainTimeout):
		p.log.Warn("worker pool drain timeout exceeded, cancelling in-flight tasks")
		p.cancel()
		<-done
	}

	p.state.Store(int32(PoolStateStopped))
	return nil
}

// Submit enqueues a task on the given lane. It blocks while the lane's
// queue is full and fails once the pool is no longer running.
func (p *Pool) Submit(ctx context.Context, lane Lane, task Task) error {
	if p.State() != PoolStateRunning {
		return fmt.Errorf("cannot submit %q: pool is %s", task.Name, p.State())
	}

	queue := p.def
	if lane == LaneHigh {
		queue = p.high
	}

	select {
	case queue <- task:
		return nil
	case <-p.stop:
		return fmt.Errorf("cannot submit %q: pool is stopping", task.Name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		// Prefer the high lane when something is waiting there.
		select {
		case task := <-p.high:
			p.execute(ctx, id, task)
			continue
		default:
		}

		select {
		case task := <-p.high:
			p.execute(ctx, id, task)
		case task := <-p.def:
			p.execute(ctx, id, task)
		case <-p.stop:
			p.drain(ctx, id)
			return
		case <-ctx.Done():
			return
		}
	}
}

// drain empties both lanes after stop is signalled, then exits.
func (p *Pool) drain(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case task := <-p.high:
			p.execute(ctx, id, task)
		case task := <-p.def:
			p.execute(ctx, id, task)
		default:
			return
		}
	}
}

func (p *Pool) execute(ctx context.Context, workerID int, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("task panicked",
				"task", task.Name,
				"worker", workerID,
				"panic", fmt.Sprintf("%v", rec),
			)
		}
	}()

	task.Run(ctx)
	p.tasksProcessed.Add(1)
}

// State returns the current pool state.
func (p *Pool) State() PoolState {
	return PoolState(p.state.Load())
}

// TasksProcessed returns how many tasks have completed or panicked.
func (p *Pool) TasksProcessed() int64 {
	return p.tasksProcessed.Load()
}
