package pools

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/Workiva/go-datastructures/queue"
	"go.uber.org/zap"
)

var (
	ErrPoolClosed         = errors.New("pool closed")
	ErrInvalidWorkerCount = errors.New("worker count must be positive")
	ErrNilTask            = errors.New("nil task")
)

// Task represents a unit of work
type Task func()

// PanicError carries the value recovered from a panicking task
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// stopSignal is queued once per worker on Close. It sits behind every task
// submitted before Close, so workers drain the queue before they exit.
type stopSignal struct{}

// WorkerPool runs tasks on a fixed set of workers fed by one unbounded FIFO queue
type WorkerPool struct {
	numWorkers int
	queue      *queue.Queue
	workers    []*worker
	wg         sync.WaitGroup
	logger     *zap.Logger

	// mu orders Submit against Close so no task lands behind the stop signals
	mu     sync.RWMutex
	closed bool

	// Statistics
	stats struct {
		tasksSubmitted atomic.Uint64
		tasksCompleted atomic.Uint64
		tasksPanicked  atomic.Uint64
	}
}

// worker represents a goroutine that processes tasks
type worker struct {
	id   int
	pool *WorkerPool
}

// Option configures a WorkerPool
type Option func(*WorkerPool)

// WithLogger sets the logger used to report task panics and lifecycle events
func WithLogger(logger *zap.Logger) Option {
	return func(p *WorkerPool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewWorkerPool starts numWorkers workers. The worker set is fixed for the
// lifetime of the pool.
func NewWorkerPool(numWorkers int, opts ...Option) (*WorkerPool, error) {
	if numWorkers <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, numWorkers)
	}

	pool := &WorkerPool{
		numWorkers: numWorkers,
		queue:      queue.New(int64(numWorkers)),
		workers:    make([]*worker, numWorkers),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(pool)
	}

	pool.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		w := &worker{
			id:   i,
			pool: pool,
		}
		pool.workers[i] = w
		go w.run()
	}

	pool.logger.Info("worker pool started", zap.Int("workers", numWorkers))
	return pool, nil
}

// Submit enqueues a task for execution by whichever worker is free first.
// It never blocks on a busy pool and fails with ErrPoolClosed after Close.
func (p *WorkerPool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.stats.tasksSubmitted.Add(1)
	if err := p.queue.Put(task); err != nil {
		p.stats.tasksSubmitted.Add(^uint64(0))
		return fmt.Errorf("%w: %v", ErrPoolClosed, err)
	}
	return nil
}

// worker.run is the main loop for a worker goroutine
func (w *worker) run() {
	defer w.pool.wg.Done()

	// Each worker owns an OS thread for its whole life
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		items, err := w.pool.queue.Get(1)
		if err != nil {
			return // Queue disposed
		}

		for _, item := range items {
			switch t := item.(type) {
			case stopSignal:
				return
			case Task:
				w.execute(t)
			}
		}
	}
}

// execute runs a single task. A panic is contained to the task that raised it.
func (w *worker) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			w.pool.stats.tasksPanicked.Add(1)
			err := &PanicError{Value: r, Stack: debug.Stack()}
			w.pool.logger.Error("task panicked",
				zap.Int("worker", w.id),
				zap.Error(err),
				zap.ByteString("stack", err.Stack),
			)
		}
		w.pool.stats.tasksCompleted.Add(1)
	}()

	task()
}

// Close stops accepting tasks, lets the workers drain everything already
// queued, and waits for them to exit. It must not be called from inside a task.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true

	signals := make([]interface{}, p.numWorkers)
	for i := range signals {
		signals[i] = stopSignal{}
	}
	_ = p.queue.Put(signals...)
	p.mu.Unlock()

	p.wg.Wait()
	p.queue.Dispose()

	p.logger.Info("worker pool closed",
		zap.Uint64("completed", p.stats.tasksCompleted.Load()),
		zap.Uint64("panicked", p.stats.tasksPanicked.Load()),
	)
}

// Closed reports whether Close has been called
func (p *WorkerPool) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Workers returns the fixed number of workers
func (p *WorkerPool) Workers() int {
	return p.numWorkers
}

// Stats returns pool statistics
func (p *WorkerPool) Stats() WorkerPoolStats {
	// Load completed first so pending never underflows
	completed := p.stats.tasksCompleted.Load()
	submitted := p.stats.tasksSubmitted.Load()
	return WorkerPoolStats{
		NumWorkers:     p.numWorkers,
		TasksSubmitted: submitted,
		TasksCompleted: completed,
		TasksPanicked:  p.stats.tasksPanicked.Load(),
		TasksPending:   submitted - completed,
	}
}

// WorkerPoolStats contains pool statistics
type WorkerPoolStats struct {
	NumWorkers     int
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksPanicked  uint64
	TasksPending   uint64
}
