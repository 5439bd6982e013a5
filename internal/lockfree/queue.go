// Package lockfree implements component C of the job-queue substrate: a
// Michael-Scott multi-producer/multi-consumer queue with helping, using
// internal/nodepool for node allocation and internal/hazard for safe
// reclamation.
//
// Grounded on eventloop/ingress.go's MicrotaskRing for the CAS-retry-loop
// idiom and ordering comments (tail/head re-checks, help-advance on a
// lagging tail), generalized from MicrotaskRing's multi-producer/
// single-consumer ring to full MPMC with hazard-protected dequeue.
package lockfree

import (
	"time"

	"github.com/kcenon/jobqueue/internal/align"
	"github.com/kcenon/jobqueue/internal/hazard"
	"github.com/kcenon/jobqueue/internal/nodepool"
	"github.com/kcenon/jobqueue/job"
	"github.com/kcenon/jobqueue/qerrors"

	"sync/atomic"
)

const (
	defaultChunkSize       = 128
	defaultMaxBatchSize    = 1024
	defaultRetryThreshold  = 32
	defaultMaxTotalRetries = 1000
)

// Config configures a Queue. Zero-valued fields fall back to the documented
// defaults.
type Config struct {
	ChunkSize         int
	MaxChunks         int
	MaxBatchSize      int
	RetryThreshold    int
	MaxTotalRetries   int
	MaxThreads        int
	PointersPerThread int
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Enqueued      int64
	Dequeued      int64
	BatchEnqueues int64
	BatchDequeues int64
	LatencyNanos  int64
	RetryCount    int64
	CurrentSize   int64
}

// Queue is a lock-free MPMC job queue.
type Queue struct {
	pool *nodepool.Pool[node, *node]
	hz   *hazard.Manager[node]

	maxBatchSize    int
	retryThreshold  int
	maxTotalRetries int

	_    align.Pad
	head atomic.Pointer[node]
	_    align.Pad
	tail atomic.Pointer[node]

	stopped atomic.Bool

	enqueued      atomic.Int64
	dequeued      atomic.Int64
	batchEnqueues atomic.Int64
	batchDequeues atomic.Int64
	latencyNanos  atomic.Int64
	retryCount    atomic.Int64
}

// New constructs a Queue, allocating the initial sentinel node from a
// freshly-created node pool.
func New(cfg Config) (*Queue, error) {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	maxBatchSize := cfg.MaxBatchSize
	if maxBatchSize <= 0 {
		maxBatchSize = defaultMaxBatchSize
	}
	retryThreshold := cfg.RetryThreshold
	if retryThreshold <= 0 {
		retryThreshold = defaultRetryThreshold
	}
	maxTotalRetries := cfg.MaxTotalRetries
	if maxTotalRetries <= 0 {
		maxTotalRetries = defaultMaxTotalRetries
	}

	pool := nodepool.New[node, *node](nodepool.Config{ChunkSize: chunkSize, MaxChunks: cfg.MaxChunks})
	hz := hazard.NewManager[node](hazard.Config{MaxThreads: cfg.MaxThreads, PointersPerThread: cfg.PointersPerThread})

	sentinel, err := pool.Allocate()
	if err != nil {
		return nil, qerrors.Wrap("new", qerrors.KindAllocationFailed, err)
	}

	q := &Queue{
		pool:            pool,
		hz:              hz,
		maxBatchSize:    maxBatchSize,
		retryThreshold:  retryThreshold,
		maxTotalRetries: maxTotalRetries,
	}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q, nil
}

// Enqueue links a new node carrying item onto the tail, helping any
// in-progress producer advance a lagging tail pointer along the way. See
// spec §4.C's Michael-Scott-with-helping algorithm.
func (q *Queue) Enqueue(item job.Job) error {
	if q.stopped.Load() {
		return qerrors.New("enqueue", qerrors.KindStopped)
	}
	if item == nil {
		return qerrors.New("enqueue", qerrors.KindInvalidArgument)
	}

	start := time.Now()
	n, err := q.pool.Allocate()
	if err != nil {
		return qerrors.Wrap("enqueue", qerrors.KindAllocationFailed, err)
	}
	boxed := item
	// Data is set before the node is reachable by any other goroutine;
	// the link CAS below is the publish point, so this write is visible
	// to any consumer that later loads tail.next and observes this node.
	n.data.Store(&boxed)

	totalRetries := 0
	for {
		if q.stopped.Load() {
			q.pool.Deallocate(n)
			return qerrors.New("enqueue", qerrors.KindStopped)
		}

		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}

		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				q.tail.CompareAndSwap(tail, n)
				q.enqueued.Add(1)
				q.latencyNanos.Add(int64(time.Since(start)))
				return nil
			}
		} else {
			q.tail.CompareAndSwap(tail, next)
		}

		totalRetries++
		if totalRetries%q.retryThreshold == 0 {
			q.retryCount.Add(1)
		}
		if totalRetries >= q.maxTotalRetries {
			q.pool.Deallocate(n)
			return qerrors.New("enqueue", qerrors.KindRetryLimitExceeded)
		}
	}
}

// EnqueueBatch stages a local chain of newly-allocated nodes and splices it
// in with a single CAS on tail.next, per spec §4.C's batch-enqueue
// algorithm. Failure returns every staged node to the pool.
func (q *Queue) EnqueueBatch(items []job.Job) error {
	if q.stopped.Load() {
		return qerrors.New("enqueue_batch", qerrors.KindStopped)
	}
	if len(items) == 0 || len(items) > q.maxBatchSize {
		return qerrors.New("enqueue_batch", qerrors.KindInvalidArgument)
	}
	for _, it := range items {
		if it == nil {
			return qerrors.New("enqueue_batch", qerrors.KindInvalidArgument)
		}
	}

	start := time.Now()
	first, err := q.pool.Allocate()
	if err != nil {
		return qerrors.Wrap("enqueue_batch", qerrors.KindAllocationFailed, err)
	}
	boxed0 := items[0]
	first.data.Store(&boxed0)
	last := first
	for _, it := range items[1:] {
		n, err := q.pool.Allocate()
		if err != nil {
			q.freeChain(first)
			return qerrors.Wrap("enqueue_batch", qerrors.KindAllocationFailed, err)
		}
		boxed := it
		n.data.Store(&boxed)
		last.next.Store(n)
		last = n
	}

	totalRetries := 0
	for {
		if q.stopped.Load() {
			q.freeChain(first)
			return qerrors.New("enqueue_batch", qerrors.KindStopped)
		}

		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}

		if next == nil {
			if tail.next.CompareAndSwap(nil, first) {
				q.tail.CompareAndSwap(tail, last)
				q.enqueued.Add(int64(len(items)))
				q.batchEnqueues.Add(1)
				q.latencyNanos.Add(int64(time.Since(start)))
				return nil
			}
		} else {
			q.tail.CompareAndSwap(tail, next)
		}

		totalRetries++
		if totalRetries%q.retryThreshold == 0 {
			q.retryCount.Add(1)
		}
		if totalRetries >= q.maxTotalRetries {
			q.freeChain(first)
			return qerrors.New("enqueue_batch", qerrors.KindRetryLimitExceeded)
		}
	}
}

func (q *Queue) freeChain(n *node) {
	for n != nil {
		next := n.next.Load()
		q.pool.Deallocate(n)
		n = next
	}
}

// Dequeue unlinks and returns the head item, per spec §4.C's dequeue
// algorithm: protect head with a hazard slot, help advance a lagging tail,
// detach the data, and retire the old head node once unlinked.
//
// Unlike Enqueue, Dequeue does not short-circuit on the stopped flag: it
// keeps draining remaining linked items, returning qerrors.KindStopped
// only once the queue is observed empty (see Stop).
func (q *Queue) Dequeue() (job.Job, error) {
	start := time.Now()
	handle, err := q.hz.Acquire()
	if err != nil {
		return nil, qerrors.Wrap("dequeue", qerrors.KindUnknown, err)
	}
	defer handle.Release()

	totalRetries := 0
	for {
		head := handle.Protect(0, &q.head)
		if head != q.head.Load() {
			totalRetries++
			continue
		}

		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			totalRetries++
			continue
		}

		if head == tail {
			if next == nil {
				if q.stopped.Load() {
					return nil, qerrors.New("dequeue", qerrors.KindStopped)
				}
				return nil, qerrors.New("dequeue", qerrors.KindEmpty)
			}
			q.tail.CompareAndSwap(tail, next)
		} else if next != nil {
			dataPtr := next.data.Load()
			if q.head.CompareAndSwap(head, next) {
				handle.Clear(0)
				var item job.Job
				if dataPtr != nil {
					item = *dataPtr
				}
				handle.Retire(head, func(n *node) { q.pool.Deallocate(n) })
				q.dequeued.Add(1)
				q.latencyNanos.Add(int64(time.Since(start)))
				return item, nil
			}
		}

		totalRetries++
		if totalRetries%q.retryThreshold == 0 {
			q.retryCount.Add(1)
		}
		if totalRetries >= q.maxTotalRetries {
			return nil, qerrors.New("dequeue", qerrors.KindRetryLimitExceeded)
		}
	}
}

// DequeueBatch performs up to MaxBatchSize iterative single dequeues,
// stopping at the first empty read. Never errors; may return nil.
func (q *Queue) DequeueBatch() []job.Job {
	out := make([]job.Job, 0, q.maxBatchSize)
	for i := 0; i < q.maxBatchSize; i++ {
		item, err := q.Dequeue()
		if err != nil {
			break
		}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	q.batchDequeues.Add(1)
	return out
}

// Clear drains the queue by repeated dequeue. It does not interact with
// the stopped flag either way.
func (q *Queue) Clear() {
	for {
		if _, err := q.Dequeue(); err != nil {
			return
		}
	}
}

// Empty reports whether the queue held no items at the moment of the call.
func (q *Queue) Empty() bool {
	head := q.head.Load()
	tail := q.tail.Load()
	return head == tail && head.next.Load() == nil
}

// Size is a best-effort, O(1) estimate derived from the enqueue/dequeue
// counters; it may transiently over- or under-report under concurrent
// activity, per spec §4.C.
func (q *Queue) Size() int {
	n := q.enqueued.Load() - q.dequeued.Load()
	if n < 0 {
		n = 0
	}
	return int(n)
}

// Stop marks the queue stopped. Idempotent and release-ordered via
// atomic.Bool. Future Enqueue/EnqueueBatch calls return
// qerrors.KindStopped immediately; Dequeue/DequeueBatch keep draining
// until the queue is observed empty.
func (q *Queue) Stop() {
	q.stopped.Store(true)
}

// Stats returns a snapshot of the queue's counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Enqueued:      q.enqueued.Load(),
		Dequeued:      q.dequeued.Load(),
		BatchEnqueues: q.batchEnqueues.Load(),
		BatchDequeues: q.batchDequeues.Load(),
		LatencyNanos:  q.latencyNanos.Load(),
		RetryCount:    q.retryCount.Load(),
		CurrentSize:   int64(q.Size()),
	}
}

// ResetMetrics zeroes the latency/retry counters used by the adaptive
// queue's evaluation window, without touching the enqueue/dequeue totals
// Size relies on.
func (q *Queue) ResetMetrics() {
	q.latencyNanos.Store(0)
	q.retryCount.Store(0)
}
