package queue

import (
	"context"
	"log"
	"time"
)

const (
	// DefaultRecoveryInterval is how often the scan for stalled jobs runs.
	DefaultRecoveryInterval = 2 * time.Minute

	// DefaultStalledAfter is how long a job can sit active before its
	// worker is presumed dead.
	DefaultStalledAfter = 5 * time.Minute
)

// RecoveryWorker periodically requeues jobs whose worker crashed
// mid-processing. A stall counts as an attempt, so a repeatedly crashing
// job still terminates in the failed set.
type RecoveryWorker struct {
	queue        *Queue
	interval     time.Duration
	stalledAfter time.Duration
}

// NewRecoveryWorker creates a recovery worker; non-positive durations fall
// back to the defaults.
func NewRecoveryWorker(q *Queue, interval, stalledAfter time.Duration) *RecoveryWorker {
	if interval <= 0 {
		interval = DefaultRecoveryInterval
	}
	if stalledAfter <= 0 {
		stalledAfter = DefaultStalledAfter
	}
	return &RecoveryWorker{queue: q, interval: interval, stalledAfter: stalledAfter}
}

// Start begins the recovery loop. It blocks until ctx is cancelled.
func (r *RecoveryWorker) Start(ctx context.Context) {
	log.Printf("[QueueRecovery] Starting (interval=%s, stalled_after=%s)", r.interval, r.stalledAfter)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[QueueRecovery] Stopping")
			return
		case <-ticker.C:
			requeued, failed, err := r.queue.RequeueStalled(ctx, r.stalledAfter)
			if err != nil {
				log.Printf("[QueueRecovery] Scan error: %v", err)
				continue
			}
			if requeued > 0 || failed > 0 {
				log.Printf("[QueueRecovery] Requeued %d stalled jobs, failed %d out of attempts", requeued, failed)
			}
		}
	}
}
