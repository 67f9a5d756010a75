// Package worker runs fire-and-forget background jobs off the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cookbook/internal/logging"
)

var ErrQueueFull = errors.New("worker queue is full")

type Job struct {
	Name string
	Run  func(ctx context.Context)
}

// Dispatcher принимает задачи; Submit никогда не блокирует вызывающего.
type Dispatcher interface {
	Submit(job Job) error
}

type Pool struct {
	jobs    chan Job
	workers int
	log     logging.Logger
	onDrop  func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

func NewPool(workers, queueSize int, log logging.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Pool{jobs: make(chan Job, queueSize), workers: workers, log: log}
}

// OnDrop вызывается на каждую отброшенную задачу (метрики).
func (p *Pool) OnDrop(fn func()) { p.onDrop = fn }

func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.loop()
	}
}

func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return fmt.Errorf("submit %s: pool stopped", job.Name)
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		p.log.Warn(context.Background(), "[worker][submit] queue full, job dropped", "job", job.Name)
		if p.onDrop != nil {
			p.onDrop()
		}
		return ErrQueueFull
	}
}

// Stop перестаёт принимать задачи, дорабатывает очередь и ждёт воркеров.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	started := p.started
	p.mu.Unlock()

	if started {
		p.wg.Wait()
		p.cancel()
	}
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *Pool) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error(p.ctx, "[worker][run] job panicked", "job", job.Name, "panic", fmt.Sprint(r))
		}
	}()
	job.Run(p.ctx)
}

// Inline выполняет задачу сразу в вызывающей горутине (тесты, CLI).
type Inline struct{}

func (Inline) Submit(job Job) error {
	job.Run(context.Background())
	return nil
}
