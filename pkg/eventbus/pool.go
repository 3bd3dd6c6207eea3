package eventbus

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ErrPoolShutdown is returned when dispatch is attempted on a pool that has
// already been shut down.
var ErrPoolShutdown = fmt.Errorf("event dispatch pool has been shut down")

// ScalingConfig tunes the pool's dynamic worker count (spec §5: "a
// work-stealing/virtual-thread pool underlies an asynchronous event bus").
type ScalingConfig struct {
	ScaleUpThreshold   int
	ScaleDownThreshold int
	ScaleCheckInterval time.Duration
	ScaleCooldown      time.Duration
}

// Pool is a work-stealing dispatch pool: each worker has its own deque of
// pending event-dispatch closures, falls back to a shared global queue
// when its deque is empty, and steals from sibling workers before
// sleeping. Submit places every task on the shared global queue; nothing
// in this package pushes onto a worker's deque, so in practice every task
// is taken from the global queue. This is the scheduling substrate the Bus
// submits dispatch work to, so that publishers never block on slow
// listeners.
type Pool struct {
	maxWorkers     int
	minWorkers     int
	currentWorkers int
	workerDeques   []chan func()
	workers        []*poolWorker
	globalQueue    chan func()
	shutdownChan   chan struct{}
	scaleChan      chan int
	mu             sync.RWMutex
	once           sync.Once

	scaleUpThreshold   int
	scaleDownThreshold int
	scaleCheckInterval time.Duration
	lastScaleTime      time.Time
	scaleCooldown      time.Duration

	stats    *Stats
	deadlock *DeadlockDetector
}

type poolWorker struct {
	id    int
	deque chan func()
	pool  *Pool
}

// NewPool returns a work-stealing dispatch pool. maxWorkers <= 0 defaults
// to runtime.NumCPU(); minWorkers <= 0 defaults to 1.
func NewPool(maxWorkers, minWorkers int) *Pool {
	return NewPoolWithConfig(maxWorkers, minWorkers, ScalingConfig{})
}

// NewPoolWithConfig is NewPool with explicit scaling tuning.
func NewPoolWithConfig(maxWorkers, minWorkers int, cfg ScalingConfig) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	if minWorkers <= 0 {
		minWorkers = 1
	}
	if minWorkers > maxWorkers {
		minWorkers = maxWorkers
	}
	if cfg.ScaleUpThreshold <= 0 {
		cfg.ScaleUpThreshold = maxWorkers * 2
	}
	if cfg.ScaleDownThreshold <= 0 {
		cfg.ScaleDownThreshold = maxWorkers / 2
		if cfg.ScaleDownThreshold <= 0 {
			cfg.ScaleDownThreshold = 1
		}
	}
	if cfg.ScaleCheckInterval <= 0 {
		cfg.ScaleCheckInterval = 100 * time.Millisecond
	}
	if cfg.ScaleCooldown <= 0 {
		cfg.ScaleCooldown = 500 * time.Millisecond
	}

	p := &Pool{
		maxWorkers:         maxWorkers,
		minWorkers:         minWorkers,
		currentWorkers:     minWorkers,
		workerDeques:       make([]chan func(), maxWorkers),
		workers:            make([]*poolWorker, maxWorkers),
		globalQueue:        make(chan func(), maxWorkers*4),
		shutdownChan:       make(chan struct{}),
		scaleChan:          make(chan int, 1),
		scaleUpThreshold:   cfg.ScaleUpThreshold,
		scaleDownThreshold: cfg.ScaleDownThreshold,
		scaleCheckInterval: cfg.ScaleCheckInterval,
		scaleCooldown:      cfg.ScaleCooldown,
		lastScaleTime:      time.Now(),
		stats:              NewStats(),
		deadlock:           NewDeadlockDetector(30*time.Second, 5*time.Second),
	}

	for i := 0; i < maxWorkers; i++ {
		p.workerDeques[i] = make(chan func(), 256)
		p.workers[i] = &poolWorker{id: i, deque: p.workerDeques[i], pool: p}
	}
	for i := 0; i < minWorkers; i++ {
		go p.workers[i].run()
	}
	go p.scalingMonitor()
	return p
}

// Submit enqueues task for dispatch. It returns ErrPoolShutdown if the pool
// has been shut down, or ctx.Err() if ctx is cancelled before the task is
// accepted.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.stats.RecordSubmitted()
	select {
	case <-p.shutdownChan:
		p.stats.RecordCancelled()
		return ErrPoolShutdown
	default:
	}
	select {
	case p.globalQueue <- task:
		return nil
	case <-ctx.Done():
		p.stats.RecordCancelled()
		return ctx.Err()
	case <-p.shutdownChan:
		p.stats.RecordCancelled()
		return ErrPoolShutdown
	}
}

// Shutdown stops accepting new work and unblocks every worker. In-flight
// tasks are abandoned (spec §5: "Cancellation is cooperative ... in-flight
// events are abandoned").
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		close(p.shutdownChan)
		close(p.globalQueue)
		for _, d := range p.workerDeques {
			close(d)
		}
		p.stats.Finalize()
		p.deadlock.Shutdown()
	})
}

func (w *poolWorker) run() {
	for {
		var task func()
		var ok bool

		select {
		case task, ok = <-w.deque:
			if !ok {
				return
			}
		case <-w.pool.shutdownChan:
			return
		default:
			task = w.steal()
			if task == nil {
				select {
				case task, ok = <-w.pool.globalQueue:
					if !ok {
						return
					}
				case <-w.pool.shutdownChan:
					return
				default:
					time.Sleep(time.Millisecond)
					continue
				}
			}
		}

		if task != nil {
			start := time.Now()
			func() {
				defer func() {
					if r := recover(); r != nil {
						w.pool.stats.RecordFailed(fmt.Errorf("listener panicked: %v", r))
					}
				}()
				task()
				w.pool.stats.RecordCompleted(time.Since(start))
			}()
		}
	}
}

func (w *poolWorker) steal() func() {
	workers := w.pool.workers
	start := (w.id + 1) % len(workers)
	for i := 0; i < len(workers); i++ {
		victim := (start + i) % len(workers)
		if victim == w.id {
			continue
		}
		select {
		case task := <-w.pool.workerDeques[victim]:
			return task
		default:
		}
	}
	return nil
}

func (p *Pool) scalingMonitor() {
	ticker := time.NewTicker(p.scaleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.checkScaling()
		case n := <-p.scaleChan:
			p.adjustWorkers(n)
		case <-p.shutdownChan:
			return
		}
	}
}

func (p *Pool) checkScaling() {
	p.mu.RLock()
	if time.Since(p.lastScaleTime) < p.scaleCooldown {
		p.mu.RUnlock()
		return
	}
	current, max, min := p.currentWorkers, p.maxWorkers, p.minWorkers
	upThresh, downThresh := p.scaleUpThreshold, p.scaleDownThreshold
	p.mu.RUnlock()

	queued := len(p.globalQueue)
	for _, d := range p.workerDeques {
		queued += len(d)
	}

	if queued > upThresh && current < max {
		p.requestScale(current + 1)
	} else if queued < downThresh && current > min {
		p.requestScale(current - 1)
	}
}

func (p *Pool) requestScale(n int) {
	select {
	case p.scaleChan <- n:
	default:
	}
}

func (p *Pool) adjustWorkers(target int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	current := p.currentWorkers
	if target == current {
		return
	}
	if target > current {
		for i := current; i < target; i++ {
			go p.workers[i].run()
		}
		p.stats.RecordScaleUp()
	} else {
		p.stats.RecordScaleDown()
	}
	p.currentWorkers = target
	p.lastScaleTime = time.Now()
}

// WorkerCount returns the pool's current worker target. Scaling down
// lowers this number without stopping any running worker goroutine.
func (p *Pool) WorkerCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentWorkers
}

// QueueDepth returns the total number of pending dispatch closures.
func (p *Pool) QueueDepth() int {
	total := len(p.globalQueue)
	for _, d := range p.workerDeques {
		total += len(d)
	}
	return total
}

// Stats returns the pool's execution statistics collector.
func (p *Pool) Stats() *Stats { return p.stats }

// DeadlockDetectorHandle returns the pool's deadlock detector.
func (p *Pool) DeadlockDetectorHandle() *DeadlockDetector { return p.deadlock }
