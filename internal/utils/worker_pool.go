package utils

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrPoolStopped = errors.New("worker pool stopped")

// WorkerPool runs submitted jobs on a fixed number of goroutines. A panicking
// job is recovered and logged; the worker keeps running.
type WorkerPool struct {
	jobs      chan func()
	workerNum int
	logger    *zap.Logger

	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex
	stopped  bool
}

func NewWorkerPool(workerNum, queueSize int, logger *zap.Logger) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		jobs:      make(chan func(), queueSize),
		workerNum: workerNum,
		logger:    logger,
		quit:      make(chan struct{}),
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.workerNum; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.workerNum))
}

func (p *WorkerPool) work(id int) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			p.run(id, job)
		case <-p.quit:
			// drain what was accepted before Stop
			for {
				select {
				case job := <-p.jobs:
					p.run(id, job)
				default:
					return
				}
			}
		}
	}
}

func (p *WorkerPool) run(id int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker job panicked", zap.Int("worker", id), zap.Any("panic", r))
		}
	}()
	job()
}

// Submit queues job, blocking while the queue is full. It gives up when ctx
// is done or the pool has been stopped.
func (p *WorkerPool) Submit(ctx context.Context, job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop waits for the workers to finish every job already queued.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		close(p.quit)
		p.wg.Wait()
	})
}
