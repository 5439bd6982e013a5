// Package jobqueue is the public entry point to the concurrent job-queue
// substrate: a lock-free MPMC queue, a mutex-guarded queue, and an adaptive
// queue that migrates between the two at runtime, selected at construction
// time via CreateQueue.
//
// The core never executes a job.Job itself; it is a queue, not a thread
// pool. External workers (not provided by this module) are expected to
// Dequeue items and call Execute on them.
package jobqueue

import (
	"github.com/kcenon/jobqueue/internal/adaptive"
	"github.com/kcenon/jobqueue/internal/lockfree"
	"github.com/kcenon/jobqueue/internal/mutexqueue"
	"github.com/kcenon/jobqueue/job"
	"github.com/kcenon/jobqueue/strategy"
)

// Stats is a point-in-time snapshot of queue counters, returned by
// Handle.Statistics.
type Stats struct {
	Enqueued      int64
	Dequeued      int64
	BatchEnqueues int64
	BatchDequeues int64
	LatencyNanos  int64
	RetryCount    int64
	CurrentSize   int64
}

// Handle is the queue abstraction exposed to a host (a thread pool, a
// worker pool, or any other caller) that enqueues and dequeues job.Job
// values. The core does not call Execute; that is the caller's
// responsibility.
type Handle interface {
	Enqueue(item job.Job) error
	EnqueueBatch(items []job.Job) error
	Dequeue() (job.Job, error)
	DequeueBatch() []job.Job
	Clear()
	Empty() bool
	Size() int
	Stop()
	Statistics() Stats
}

// CreateQueue constructs a Handle bound to the given strategy. strategy
// defaults to strategy.Adaptive if unset (zero value).
//
// ForceMutex and ForceLockFree bind directly to the corresponding internal
// queue, with no adaptive-dispatch overhead. Auto and Adaptive are both
// realized by internal/adaptive.Queue: Auto makes a one-time
// hardware-parallelism check and never starts a monitor goroutine;
// Adaptive starts on the mutex-guarded queue and migrates based on
// sampled contention and latency.
func CreateQueue(strat strategy.Strategy, opts ...Option) (Handle, error) {
	cfg, err := resolveQueueOptions(opts)
	if err != nil {
		return nil, err
	}

	switch strat {
	case strategy.ForceMutex:
		return &mutexHandle{q: mutexqueue.New(cfg.mutexConfig())}, nil
	case strategy.ForceLockFree:
		q, err := lockfree.New(cfg.lockFreeConfig())
		if err != nil {
			return nil, err
		}
		return &lockFreeHandle{q: q}, nil
	default: // strategy.Auto, strategy.Adaptive (and the Adaptive default)
		adaptiveCfg := cfg.adaptiveConfig()
		adaptiveCfg.Strategy = strat
		q, err := adaptive.New(adaptiveCfg)
		if err != nil {
			return nil, err
		}
		return &adaptiveHandle{q: q}, nil
	}
}

// mutexHandle adapts internal/mutexqueue.Queue to Handle.
type mutexHandle struct{ q *mutexqueue.Queue }

func (h *mutexHandle) Enqueue(item job.Job) error           { return h.q.Enqueue(item) }
func (h *mutexHandle) EnqueueBatch(items []job.Job) error   { return h.q.EnqueueBatch(items) }
func (h *mutexHandle) Dequeue() (job.Job, error)            { return h.q.Dequeue() }
func (h *mutexHandle) DequeueBatch() []job.Job              { return h.q.DequeueBatch() }
func (h *mutexHandle) Clear()                               { h.q.Clear() }
func (h *mutexHandle) Empty() bool                          { return h.q.Empty() }
func (h *mutexHandle) Size() int                            { return h.q.Size() }
func (h *mutexHandle) Stop()                                { h.q.Stop() }
func (h *mutexHandle) Statistics() Stats {
	s := h.q.Stats()
	return Stats{
		Enqueued: s.Enqueued, Dequeued: s.Dequeued,
		BatchEnqueues: s.BatchEnqueues, BatchDequeues: s.BatchDequeues,
		LatencyNanos: s.LatencyNanos, RetryCount: s.RetryCount,
		CurrentSize: s.CurrentSize,
	}
}

// lockFreeHandle adapts internal/lockfree.Queue to Handle.
type lockFreeHandle struct{ q *lockfree.Queue }

func (h *lockFreeHandle) Enqueue(item job.Job) error         { return h.q.Enqueue(item) }
func (h *lockFreeHandle) EnqueueBatch(items []job.Job) error { return h.q.EnqueueBatch(items) }
func (h *lockFreeHandle) Dequeue() (job.Job, error)          { return h.q.Dequeue() }
func (h *lockFreeHandle) DequeueBatch() []job.Job            { return h.q.DequeueBatch() }
func (h *lockFreeHandle) Clear()                             { h.q.Clear() }
func (h *lockFreeHandle) Empty() bool                        { return h.q.Empty() }
func (h *lockFreeHandle) Size() int                          { return h.q.Size() }
func (h *lockFreeHandle) Stop()                              { h.q.Stop() }
func (h *lockFreeHandle) Statistics() Stats {
	s := h.q.Stats()
	return Stats{
		Enqueued: s.Enqueued, Dequeued: s.Dequeued,
		BatchEnqueues: s.BatchEnqueues, BatchDequeues: s.BatchDequeues,
		LatencyNanos: s.LatencyNanos, RetryCount: s.RetryCount,
		CurrentSize: s.CurrentSize,
	}
}

// adaptiveHandle adapts internal/adaptive.Queue to Handle.
type adaptiveHandle struct{ q *adaptive.Queue }

func (h *adaptiveHandle) Enqueue(item job.Job) error         { return h.q.Enqueue(item) }
func (h *adaptiveHandle) EnqueueBatch(items []job.Job) error { return h.q.EnqueueBatch(items) }
func (h *adaptiveHandle) Dequeue() (job.Job, error)          { return h.q.Dequeue() }
func (h *adaptiveHandle) DequeueBatch() []job.Job            { return h.q.DequeueBatch() }
func (h *adaptiveHandle) Clear()                             { h.q.Clear() }
func (h *adaptiveHandle) Empty() bool                        { return h.q.Empty() }
func (h *adaptiveHandle) Size() int                          { return h.q.Size() }
func (h *adaptiveHandle) Stop()                              { h.q.Stop() }
func (h *adaptiveHandle) Statistics() Stats {
	s := h.q.Stats()
	return Stats{
		Enqueued: s.Enqueued, Dequeued: s.Dequeued,
		BatchEnqueues: s.BatchEnqueues, BatchDequeues: s.BatchDequeues,
		LatencyNanos: s.LatencyNanos, RetryCount: s.RetryCount,
		CurrentSize: s.CurrentSize,
	}
}
