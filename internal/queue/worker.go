package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Handler processes one claimed job. A non-nil error schedules a retry
// under the backoff policy until attempts run out.
type Handler func(ctx context.Context, job *Job) error

// WorkerPool consumes the queue with a fixed number of goroutines. There is
// one global pool; per-campaign pause works by removing that campaign's
// jobs, never by stopping workers.
type WorkerPool struct {
	queue        *Queue
	handler      Handler
	numWorkers   int
	pollInterval time.Duration

	totalProcessed int64
	totalFailed    int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewWorkerPool creates a pool. Non-positive concurrency falls back to
// DefaultConcurrency.
func NewWorkerPool(q *Queue, handler Handler, concurrency int) *WorkerPool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &WorkerPool{
		queue:        q,
		handler:      handler,
		numWorkers:   concurrency,
		pollInterval: 100 * time.Millisecond,
	}
}

// Start launches the workers.
func (p *WorkerPool) Start() error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("worker pool already running")
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	log.Printf("[WorkerPool] Starting %d workers", p.numWorkers)
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return nil
}

// Stop drains the pool. In-flight jobs finish and record their outcome.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	log.Println("[WorkerPool] Stopping workers...")
	p.wg.Wait()
	log.Printf("[WorkerPool] Stopped. Processed: %d, failed attempts: %d",
		atomic.LoadInt64(&p.totalProcessed), atomic.LoadInt64(&p.totalFailed))
}

// Stats returns cumulative processing counters.
func (p *WorkerPool) Stats() map[string]int64 {
	return map[string]int64{
		"total_processed": atomic.LoadInt64(&p.totalProcessed),
		"total_failed":    atomic.LoadInt64(&p.totalFailed),
	}
}

func (p *WorkerPool) worker(workerNum int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		job, err := p.queue.Claim(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			log.Printf("[WorkerPool] Worker %d: claim error: %v", workerNum, err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(p.pollInterval):
			}
			continue
		}

		p.process(job)
	}
}

// process runs the handler and records the outcome. The bookkeeping write
// uses its own context so a shutdown mid-job still settles the queue state.
func (p *WorkerPool) process(job *Job) {
	err := p.handler(p.ctx, job)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err != nil {
		atomic.AddInt64(&p.totalFailed, 1)
		attempts, ferr := p.queue.Fail(ctx, job.ID, err.Error())
		if ferr != nil {
			log.Printf("[WorkerPool] Job %s: fail bookkeeping error: %v", job.ID, ferr)
			return
		}
		if attempts < 0 {
			log.Printf("[WorkerPool] Job %s: removed while processing", job.ID)
		}
		return
	}

	atomic.AddInt64(&p.totalProcessed, 1)
	settled, cerr := p.queue.Complete(ctx, job.ID)
	if cerr != nil {
		log.Printf("[WorkerPool] Job %s: complete bookkeeping error: %v", job.ID, cerr)
		return
	}
	if !settled {
		log.Printf("[WorkerPool] Job %s: removed while processing", job.ID)
	}
}
