package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hookrelay/pkg/observability"
)

var (
	// ErrQueueFull is returned by TrySubmit when every queue slot is taken.
	ErrQueueFull = errors.New("worker pool queue is full")
	// ErrPoolClosed is returned for tasks submitted after Shutdown.
	ErrPoolClosed = errors.New("worker pool is shut down")
)

// Task is a unit of work run by the pool. The context carries the per-task timeout.
type Task func(ctx context.Context) error

// SafeGo executes fn in a goroutine with panic recovery, a timeout, and error logging.
//
// Use this instead of bare `go func()` for fire-and-forget work.
//
//	SafeGo(ctx, logger, 5*time.Second, "purge delivery logs", func(ctx context.Context) error {
//	    _, err := logs.PurgeOlderThan(ctx, cutoff)
//	    return err
//	})
func SafeGo(parentCtx context.Context, logger logrus.FieldLogger, timeout time.Duration, taskName string, fn Task) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()
		runTask(ctx, logger, taskName, fn)
	}()
}

func runTask(ctx context.Context, logger logrus.FieldLogger, taskName string, fn Task) {
	defer observability.RecoverPanic(logger.WithField("task", taskName), "background task")

	if err := fn(ctx); err != nil {
		logger.WithError(err).WithField("task", taskName).Warn("background task failed")
	}
}

// PoolConfig sizes a WorkerPool.
type PoolConfig struct {
	Name        string
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

// WorkerPool runs tasks on a fixed number of goroutines fed by a bounded queue.
// Producers choose between TrySubmit, which fails fast when the queue is full,
// and Submit, which waits for a free slot.
type WorkerPool struct {
	cfg    PoolConfig
	queue  chan Task
	logger logrus.FieldLogger

	mu     sync.RWMutex
	closed bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorkerPool starts cfg.Workers goroutines. Cancelling ctx aborts running tasks.
func NewWorkerPool(ctx context.Context, cfg PoolConfig, logger logrus.FieldLogger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "worker"
	}

	poolCtx, cancel := context.WithCancel(ctx)
	p := &WorkerPool{
		cfg:    cfg,
		queue:  make(chan Task, cfg.QueueSize),
		logger: logger.WithField("pool", cfg.Name),
		ctx:    poolCtx,
		cancel: cancel,
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker(i)
	}
	return p
}

// TrySubmit enqueues task without blocking.
func (p *WorkerPool) TrySubmit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Submit enqueues task, waiting for a queue slot until ctx is done.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// QueueDepth reports how many tasks are waiting for a worker.
func (p *WorkerPool) QueueDepth() int {
	return len(p.queue)
}

// Shutdown stops accepting tasks and waits for queued work to drain.
// Tasks still running after timeout are cancelled.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-time.After(timeout):
		p.cancel()
		<-done
		return fmt.Errorf("worker pool %s: shutdown timed out after %s", p.cfg.Name, timeout)
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for task := range p.queue {
		ctx, cancel := context.WithTimeout(p.ctx, p.cfg.TaskTimeout)
		runTask(ctx, p.logger.WithField("worker", id), p.cfg.Name, task)
		cancel()
	}
}
