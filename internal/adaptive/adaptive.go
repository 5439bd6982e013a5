// Package adaptive implements component D of the job-queue substrate: a
// queue that holds both a mutex-guarded and a lock-free queue and migrates
// between them at runtime based on sampled contention and latency.
//
// The monitor goroutine's ctx/cancel/done/stopOnce shutdown shape is
// grounded on microbatch.Batcher, the teacher's clearest example of an
// owned background goroutine with a graceful join — generalized from
// flushing timed batches to periodically evaluating a switch decision.
package adaptive

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kcenon/jobqueue/internal/lockfree"
	"github.com/kcenon/jobqueue/internal/mutexqueue"
	"github.com/kcenon/jobqueue/job"
	"github.com/kcenon/jobqueue/logging"
	"github.com/kcenon/jobqueue/qerrors"
	"github.com/kcenon/jobqueue/strategy"
)

const (
	typeMutex int32 = iota
	typeLockFree
)

const (
	defaultEvaluationInterval     = 5 * time.Second
	defaultMinOperationsForSwitch = 1000

	// Suggested switch thresholds from spec §4.D.
	defaultMutexToLockFreeContention = 0.10
	defaultMutexToLockFreeLatencyNs  = 1000
	defaultLockFreeToMutexContention = 0.05
	defaultLockFreeToMutexLatencyNs  = 500 // compared against 2x below
)

// Config configures a Queue.
type Config struct {
	Strategy strategy.Strategy

	MutexConfig    mutexqueue.Config
	LockFreeConfig lockfree.Config

	EvaluationInterval     time.Duration
	MinOperationsForSwitch int64

	// GOMAXPROCS override for strategy.Auto's hardware-parallelism check;
	// <= 0 uses runtime.GOMAXPROCS(0).
	Parallelism int

	Logger logging.Logger
}

// Metrics is a snapshot of the adaptive queue's bookkeeping. Operations and
// ContentionCount are reset after every evaluation decision to avoid
// hysteresis collapse (spec §4.D); SwitchCount is cumulative.
type Metrics struct {
	Operations      int64
	ContentionCount int64
	SwitchCount     int64
	LastEvaluation  time.Time
}

// Queue implements the same operation set as internal/mutexqueue and
// internal/lockfree, dispatching to whichever is current.
type Queue struct {
	mutexQ    *mutexqueue.Queue
	lockFreeQ *lockfree.Queue

	current atomic.Int32
	strat   strategy.Strategy
	logger  logging.Logger

	evaluationInterval     time.Duration
	minOperationsForSwitch int64

	operations      atomic.Int64
	contentionCount atomic.Int64
	switchCount     atomic.Int64
	lastEvaluation  atomic.Pointer[time.Time]

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped sync.Once
}

// New constructs a Queue per the given strategy. strategy.Adaptive starts
// the background monitor goroutine; strategy.Auto makes a one-time
// parallelism check and never starts a monitor.
func New(cfg Config) (*Queue, error) {
	mutexQ := mutexqueue.New(cfg.MutexConfig)
	lockFreeQ, err := lockfree.New(cfg.LockFreeConfig)
	if err != nil {
		return nil, qerrors.Wrap("new", qerrors.KindAllocationFailed, err)
	}

	interval := cfg.EvaluationInterval
	if interval <= 0 {
		interval = defaultEvaluationInterval
	}
	minOps := cfg.MinOperationsForSwitch
	if minOps <= 0 {
		minOps = defaultMinOperationsForSwitch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	q := &Queue{
		mutexQ:                 mutexQ,
		lockFreeQ:              lockFreeQ,
		strat:                  cfg.Strategy,
		logger:                 logger,
		evaluationInterval:     interval,
		minOperationsForSwitch: minOps,
	}

	switch cfg.Strategy {
	case strategy.ForceMutex:
		q.current.Store(typeMutex)
	case strategy.ForceLockFree:
		q.current.Store(typeLockFree)
	case strategy.Auto:
		parallelism := cfg.Parallelism
		if parallelism <= 0 {
			parallelism = runtime.GOMAXPROCS(0)
		}
		if parallelism >= 4 {
			q.current.Store(typeLockFree)
		} else {
			q.current.Store(typeMutex)
		}
	default: // strategy.Adaptive
		q.current.Store(typeMutex)
		q.ctx, q.cancel = context.WithCancel(context.Background())
		q.done = make(chan struct{})
		go q.monitor()
	}

	return q, nil
}

func (q *Queue) onMutexMode() bool {
	return q.current.Load() == typeMutex
}

// Enqueue dispatches to whichever queue is current.
func (q *Queue) Enqueue(item job.Job) error {
	q.operations.Add(1)
	if q.onMutexMode() {
		return q.mutexQ.Enqueue(item)
	}
	return q.lockFreeQ.Enqueue(item)
}

// EnqueueBatch dispatches to whichever queue is current.
func (q *Queue) EnqueueBatch(items []job.Job) error {
	q.operations.Add(1)
	if q.onMutexMode() {
		return q.mutexQ.EnqueueBatch(items)
	}
	return q.lockFreeQ.EnqueueBatch(items)
}

// Dequeue dispatches to whichever queue is current.
func (q *Queue) Dequeue() (job.Job, error) {
	q.operations.Add(1)
	if q.onMutexMode() {
		return q.mutexQ.Dequeue()
	}
	return q.lockFreeQ.Dequeue()
}

// DequeueBatch dispatches to whichever queue is current.
func (q *Queue) DequeueBatch() []job.Job {
	q.operations.Add(1)
	if q.onMutexMode() {
		return q.mutexQ.DequeueBatch()
	}
	return q.lockFreeQ.DequeueBatch()
}

// Clear drains both underlying queues, since migrations may have left
// items in either.
func (q *Queue) Clear() {
	q.mutexQ.Clear()
	q.lockFreeQ.Clear()
}

// Empty reports whether the current queue is empty.
func (q *Queue) Empty() bool {
	if q.onMutexMode() {
		return q.mutexQ.Empty()
	}
	return q.lockFreeQ.Empty()
}

// Size reports the current queue's best-effort size.
func (q *Queue) Size() int {
	if q.onMutexMode() {
		return q.mutexQ.Size()
	}
	return q.lockFreeQ.Size()
}

// Stop stops both underlying queues and, if a monitor goroutine is
// running, signals it to exit and joins it.
func (q *Queue) Stop() {
	q.mutexQ.Stop()
	q.lockFreeQ.Stop()
	q.stopped.Do(func() {
		if q.cancel != nil {
			q.cancel()
			<-q.done
		}
	})
}

// Stats reports the current queue's statistics.
func (q *Queue) Stats() Stats {
	if q.onMutexMode() {
		s := q.mutexQ.Stats()
		return Stats{
			Enqueued: s.Enqueued, Dequeued: s.Dequeued,
			BatchEnqueues: s.BatchEnqueues, BatchDequeues: s.BatchDequeues,
			LatencyNanos: s.LatencyNanos, RetryCount: s.RetryCount,
			CurrentSize: s.CurrentSize,
		}
	}
	s := q.lockFreeQ.Stats()
	return Stats{
		Enqueued: s.Enqueued, Dequeued: s.Dequeued,
		BatchEnqueues: s.BatchEnqueues, BatchDequeues: s.BatchDequeues,
		LatencyNanos: s.LatencyNanos, RetryCount: s.RetryCount,
		CurrentSize: s.CurrentSize,
	}
}

// Stats mirrors internal/mutexqueue.Stats and internal/lockfree.Stats,
// widened to whichever queue is currently active.
type Stats struct {
	Enqueued      int64
	Dequeued      int64
	BatchEnqueues int64
	BatchDequeues int64
	LatencyNanos  int64
	RetryCount    int64
	CurrentSize   int64
}

// monitor wakes every EvaluationInterval and, once enough operations have
// been observed, evaluates the switch decision of spec §4.D.
func (q *Queue) monitor() {
	defer close(q.done)
	ticker := time.NewTicker(q.evaluationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.evaluate()
		}
	}
}

func (q *Queue) evaluate() {
	q.drainStale()

	ops := q.operations.Load()
	if ops < q.minOperationsForSwitch {
		return
	}

	onMutex := q.current.Load() == typeMutex
	var contentionRatio float64
	var avgLatencyNs float64

	if onMutex {
		s := q.mutexQ.Stats()
		if s.ContentionCount > 0 {
			contentionRatio = float64(s.ContentionCount) / float64(ops)
		}
		if ops > 0 {
			avgLatencyNs = float64(s.LatencyNanos) / float64(ops)
		}
		if contentionRatio > defaultMutexToLockFreeContention && avgLatencyNs > defaultMutexToLockFreeLatencyNs {
			q.migrate(typeMutex, typeLockFree, contentionRatio, avgLatencyNs)
		}
	} else {
		s := q.lockFreeQ.Stats()
		if s.RetryCount > 0 {
			contentionRatio = float64(s.RetryCount) / float64(ops)
		}
		if ops > 0 {
			avgLatencyNs = float64(s.LatencyNanos) / float64(ops)
		}
		if contentionRatio < defaultLockFreeToMutexContention && avgLatencyNs > 2*defaultLockFreeToMutexLatencyNs {
			q.migrate(typeLockFree, typeMutex, contentionRatio, avgLatencyNs)
		}
	}

	q.resetMetrics()
}

// drainStale moves any items left behind in the non-current queue into the
// current one. A migration's single drain pass can race a concurrent
// producer that read the old current value just before the flip and then
// enqueued into the now-stale queue; drainStale runs at the top of every
// evaluation so those stragglers are never stranded past one evaluation
// interval, per spec §4.D.
func (q *Queue) drainStale() {
	if q.current.Load() == typeMutex {
		for {
			item, err := q.lockFreeQ.Dequeue()
			if err != nil {
				return
			}
			_ = q.mutexQ.Enqueue(item)
		}
	}
	for {
		item, err := q.mutexQ.Dequeue()
		if err != nil {
			return
		}
		_ = q.lockFreeQ.Enqueue(item)
	}
}

// migrate drains the source queue and enqueues each item into the
// destination, then atomically flips current. One pass only: concurrent
// producers may still add to the source during the drain; drainStale
// picks up any stragglers on the next evaluation, per spec §4.D.
func (q *Queue) migrate(from, to int32, contentionRatio, avgLatencyNs float64) {
	migrated := 0
	if from == typeMutex {
		for {
			item, err := q.mutexQ.Dequeue()
			if err != nil {
				break
			}
			// The destination is not yet current, so it is safe to enqueue
			// into directly without racing other callers' dispatch.
			_ = q.lockFreeQ.Enqueue(item)
			migrated++
		}
	} else {
		for {
			item, err := q.lockFreeQ.Dequeue()
			if err != nil {
				break
			}
			_ = q.mutexQ.Enqueue(item)
			migrated++
		}
	}

	q.current.Store(to)
	q.switchCount.Add(1)

	q.logger.Log(logging.Entry{
		Level:     logging.LevelInfo,
		Category:  "adaptive",
		Message:   "queue strategy switched",
		Timestamp: time.Now(),
		Fields: map[string]any{
			"from":               strategyTypeName(from),
			"to":                 strategyTypeName(to),
			"contention_ratio":   contentionRatio,
			"average_latency_ns": avgLatencyNs,
			"items_migrated":     migrated,
		},
	})
}

func strategyTypeName(t int32) string {
	if t == typeMutex {
		return "mutex"
	}
	return "lockfree"
}

func (q *Queue) resetMetrics() {
	q.operations.Store(0)
	q.contentionCount.Store(0)
	q.mutexQ.ResetMetrics()
	q.lockFreeQ.ResetMetrics()
	now := time.Now()
	q.lastEvaluation.Store(&now)
}

// MetricsSnapshot reports the monitor's current bookkeeping, for tests and
// diagnostics.
func (q *Queue) MetricsSnapshot() Metrics {
	m := Metrics{
		Operations:      q.operations.Load(),
		ContentionCount: q.contentionCount.Load(),
		SwitchCount:     q.switchCount.Load(),
	}
	if t := q.lastEvaluation.Load(); t != nil {
		m.LastEvaluation = *t
	}
	return m
}

// CurrentStrategyName reports "mutex" or "lockfree" for tests and
// diagnostics.
func (q *Queue) CurrentStrategyName() string {
	return strategyTypeName(q.current.Load())
}
