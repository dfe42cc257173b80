package executor

import (
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrStopped is returned by Execute after Shutdown.
	ErrStopped = errors.New("worker pool is shut down")
	// ErrQueueFull is returned by Execute when the queue is saturated.
	ErrQueueFull = errors.New("task queue is full")
)

// Pool runs units of work on a fixed number of goroutines fed by a bounded
// queue. Execute never blocks: it rejects with ErrQueueFull when the queue
// is saturated and with ErrStopped after Shutdown.
type Pool struct {
	queue chan func()
	wg    sync.WaitGroup

	mu      sync.RWMutex
	running bool
}

// NewPool starts workers goroutines consuming a queue holding up to
// queueSize pending units. Both arguments must be positive.
func NewPool(workers, queueSize int) *Pool {
	p := &Pool{
		queue:   make(chan func(), queueSize),
		running: true,
	}

	for range workers {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for fn := range p.queue {
		p.run(fn)
	}
}

// run isolates a single unit so a panicking fn cannot kill the worker.
func (p *Pool) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered panic in worker", "panic", r)
		}
	}()

	fn()
}

func (p *Pool) Execute(fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return ErrStopped
	}

	select {
	case p.queue <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops intake, then waits for queued work to drain and the workers
// to exit. Shutdown is idempotent.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.queue)
	p.wg.Wait()
}
