// Package mutexqueue implements the mutex-guarded queue mode used by
// internal/adaptive and by jobqueue.CreateQueue under strategy.ForceMutex.
//
// Grounded on eventloop.ChunkedIngress, but stores job slots in a single
// plain slice (append at the tail, reslice at the head) rather than in
// chained fixed-size chunks. ChunkedIngress relies on its caller (the
// event loop's single goroutine) holding an external lock; this queue must
// be safe for any number of concurrent producers and consumers on its own,
// so the slice is guarded by a sync.Mutex rather than assuming a single
// owner.
package mutexqueue

import (
	"sync"
	"time"

	"github.com/kcenon/jobqueue/job"
	"github.com/kcenon/jobqueue/qerrors"
)

const defaultMaxBatchSize = 1024

// Config configures a Queue.
type Config struct {
	// MaxBatchSize bounds EnqueueBatch/DequeueBatch. Defaults to 1024.
	MaxBatchSize int
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Enqueued        int64
	Dequeued        int64
	BatchEnqueues   int64
	BatchDequeues   int64
	LatencyNanos    int64
	ContentionNanos int64
	ContentionCount int64
	RetryCount      int64
	CurrentSize     int64
}

// Queue is a FIFO job queue guarded by a single mutex.
type Queue struct {
	maxBatchSize int

	mu      sync.Mutex
	items   []job.Job
	stopped bool

	enqueued        int64
	dequeued        int64
	batchEnqueues   int64
	batchDequeues   int64
	latencyNanos    int64
	contentionNanos int64
	contentionCount int64
}

// New constructs a Queue. An empty/zero Config uses the defaults.
func New(cfg Config) *Queue {
	size := cfg.MaxBatchSize
	if size <= 0 {
		size = defaultMaxBatchSize
	}
	return &Queue{maxBatchSize: size}
}

// lock acquires q.mu, recording how long the acquisition took so callers
// can sample mutex-mode contention per spec §4.D.
func (q *Queue) lock() time.Duration {
	start := time.Now()
	q.mu.Lock()
	return time.Since(start)
}

// Enqueue appends item to the tail. Returns qerrors.KindInvalidArgument if
// item is nil, qerrors.KindStopped if the queue has been stopped.
func (q *Queue) Enqueue(item job.Job) error {
	if item == nil {
		return qerrors.New("enqueue", qerrors.KindInvalidArgument)
	}
	start := time.Now()
	wait := q.lock()
	defer q.mu.Unlock()

	if q.stopped {
		return qerrors.New("enqueue", qerrors.KindStopped)
	}
	q.items = append(q.items, item)
	q.enqueued++
	q.recordLatency(time.Since(start), wait)
	return nil
}

// EnqueueBatch appends items atomically with respect to other callers.
// Returns qerrors.KindInvalidArgument if items is empty or exceeds
// MaxBatchSize.
func (q *Queue) EnqueueBatch(items []job.Job) error {
	if len(items) == 0 || len(items) > q.maxBatchSize {
		return qerrors.New("enqueue_batch", qerrors.KindInvalidArgument)
	}
	for _, it := range items {
		if it == nil {
			return qerrors.New("enqueue_batch", qerrors.KindInvalidArgument)
		}
	}

	start := time.Now()
	wait := q.lock()
	defer q.mu.Unlock()

	if q.stopped {
		return qerrors.New("enqueue_batch", qerrors.KindStopped)
	}
	q.items = append(q.items, items...)
	q.enqueued += int64(len(items))
	q.batchEnqueues++
	q.recordLatency(time.Since(start), wait)
	return nil
}

// Dequeue removes and returns the head item. Returns qerrors.KindEmpty if
// the queue is empty, qerrors.KindStopped if stopped and empty.
func (q *Queue) Dequeue() (job.Job, error) {
	start := time.Now()
	wait := q.lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		if q.stopped {
			return nil, qerrors.New("dequeue", qerrors.KindStopped)
		}
		return nil, qerrors.New("dequeue", qerrors.KindEmpty)
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.dequeued++
	q.recordLatency(time.Since(start), wait)
	return item, nil
}

// DequeueBatch removes up to MaxBatchSize items, stopping at the first
// empty read. Never errors; may return an empty (nil) slice.
func (q *Queue) DequeueBatch() []job.Job {
	start := time.Now()
	wait := q.lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if n > q.maxBatchSize {
		n = q.maxBatchSize
	}
	if n == 0 {
		return nil
	}
	out := make([]job.Job, n)
	copy(out, q.items[:n])
	q.items = q.items[n:]
	q.dequeued += int64(n)
	q.batchDequeues++
	q.recordLatency(time.Since(start), wait)
	return out
}

// Clear drains all items, independent of the stopped flag.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// Empty reports whether the queue held no items at the moment of the call.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Size reports the queue's length at the moment of the call.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stop marks the queue stopped. Idempotent. In-flight operations already
// past the lock complete normally; future Enqueue/EnqueueBatch calls return
// qerrors.KindStopped, and Dequeue keeps returning remaining items and
// returns qerrors.KindStopped once the queue is empty.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
}

// recordLatency must be called with q.mu held. wait is the time spent
// acquiring the lock; contention is recorded when it exceeds the
// low threshold spec §4.D suggests (100ns).
func (q *Queue) recordLatency(total, wait time.Duration) {
	q.latencyNanos += total.Nanoseconds()
	if wait > 100*time.Nanosecond {
		q.contentionNanos += wait.Nanoseconds()
		q.contentionCount++
	}
}

// Stats returns a snapshot of the queue's counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Enqueued:        q.enqueued,
		Dequeued:        q.dequeued,
		BatchEnqueues:   q.batchEnqueues,
		BatchDequeues:   q.batchDequeues,
		LatencyNanos:    q.latencyNanos,
		ContentionNanos: q.contentionNanos,
		ContentionCount: q.contentionCount,
		CurrentSize:     int64(len(q.items)),
	}
}

// ResetMetrics zeroes the latency/contention counters used by the
// adaptive queue's evaluation window, without touching enqueue/dequeue
// totals or the item slice.
func (q *Queue) ResetMetrics() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.latencyNanos = 0
	q.contentionNanos = 0
	q.contentionCount = 0
}
