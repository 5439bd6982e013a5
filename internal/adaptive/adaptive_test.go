package adaptive

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcenon/jobqueue/job"
	"github.com/kcenon/jobqueue/strategy"
)

func noop() job.Job { return job.Func(func() error { return nil }) }

func TestForceMutexStaysOnMutex(t *testing.T) {
	q, err := New(Config{Strategy: strategy.ForceMutex})
	require.NoError(t, err)
	defer q.Stop()
	assert.Equal(t, "mutex", q.CurrentStrategyName())
}

func TestForceLockFreeStaysOnLockFree(t *testing.T) {
	q, err := New(Config{Strategy: strategy.ForceLockFree})
	require.NoError(t, err)
	defer q.Stop()
	assert.Equal(t, "lockfree", q.CurrentStrategyName())
}

func TestAutoPicksLockFreeAboveParallelismFloor(t *testing.T) {
	q, err := New(Config{Strategy: strategy.Auto, Parallelism: 8})
	require.NoError(t, err)
	defer q.Stop()
	assert.Equal(t, "lockfree", q.CurrentStrategyName())
}

func TestAutoPicksMutexBelowParallelismFloor(t *testing.T) {
	q, err := New(Config{Strategy: strategy.Auto, Parallelism: 2})
	require.NoError(t, err)
	defer q.Stop()
	assert.Equal(t, "mutex", q.CurrentStrategyName())
}

func TestAdaptiveStartsOnMutex(t *testing.T) {
	q, err := New(Config{Strategy: strategy.Adaptive})
	require.NoError(t, err)
	defer q.Stop()
	assert.Equal(t, "mutex", q.CurrentStrategyName())
}

func TestEnqueueDequeueRoundTripUnderAdaptive(t *testing.T) {
	q, err := New(Config{Strategy: strategy.Adaptive})
	require.NoError(t, err)
	defer q.Stop()

	require.NoError(t, q.Enqueue(noop()))
	item, err := q.Dequeue()
	require.NoError(t, err)
	assert.NotNil(t, item)
}

func TestStopIsIdempotentAndJoinsMonitor(t *testing.T) {
	q, err := New(Config{Strategy: strategy.Adaptive, EvaluationInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	q.Stop()
	q.Stop() // must not block or panic
}

func TestSPSCLoadRemainsOnMutex(t *testing.T) {
	q, err := New(Config{
		Strategy:               strategy.Adaptive,
		EvaluationInterval:     20 * time.Millisecond,
		MinOperationsForSwitch: 10,
	})
	require.NoError(t, err)
	defer q.Stop()

	for i := 0; i < 50; i++ {
		require.NoError(t, q.Enqueue(noop()))
		_, err := q.Dequeue()
		require.NoError(t, err)
	}
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, "mutex", q.CurrentStrategyName(), "low-contention SPSC load should stay on mutex")
}

func TestHighContentionLoadEventuallySwitchesToLockFree(t *testing.T) {
	q, err := New(Config{
		Strategy:               strategy.Adaptive,
		EvaluationInterval:     15 * time.Millisecond,
		MinOperationsForSwitch: 200,
	})
	require.NoError(t, err)
	defer q.Stop()

	const workers = 8
	deadline := time.Now().Add(2 * time.Second)
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(workers * 2)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = q.Enqueue(noop())
				}
			}
		}()
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_, _ = q.Dequeue()
				}
			}
		}()
	}

	for time.Now().Before(deadline) {
		if q.CurrentStrategyName() == "lockfree" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	close(stop)
	wg.Wait()

	// A bounded number of evaluation intervals must have produced a switch
	// under sustained 8x8 contention; this is a best-effort timing test.
	assert.Equal(t, "lockfree", q.CurrentStrategyName())
}

func TestDrainStaleMovesStrandedItemsIntoCurrentQueue(t *testing.T) {
	q, err := New(Config{Strategy: strategy.ForceMutex})
	require.NoError(t, err)
	defer q.Stop()

	// Simulate items stranded in the lock-free queue by a migration that
	// already flipped current back to mutex: current is typeMutex, but
	// items sit directly in lockFreeQ, bypassing dispatch.
	const n = 25
	for i := 0; i < n; i++ {
		require.NoError(t, q.lockFreeQ.Enqueue(noop()))
	}
	assert.Equal(t, n, q.lockFreeQ.Size())
	assert.Equal(t, 0, q.mutexQ.Size())

	q.drainStale()

	assert.Equal(t, 0, q.lockFreeQ.Size())
	assert.Equal(t, n, q.mutexQ.Size())

	got := 0
	for {
		if _, err := q.Dequeue(); err != nil {
			break
		}
		got++
	}
	assert.Equal(t, n, got)
}

func TestResetMetricsResetsBothUnderlyingQueues(t *testing.T) {
	q, err := New(Config{Strategy: strategy.ForceLockFree})
	require.NoError(t, err)
	defer q.Stop()

	require.NoError(t, q.mutexQ.Enqueue(noop()))
	_, err = q.mutexQ.Dequeue()
	require.NoError(t, err)
	require.NoError(t, q.lockFreeQ.Enqueue(noop()))
	_, err = q.lockFreeQ.Dequeue()
	require.NoError(t, err)

	require.Greater(t, q.mutexQ.Stats().LatencyNanos, int64(0))
	require.Greater(t, q.lockFreeQ.Stats().LatencyNanos, int64(0))

	q.resetMetrics()

	assert.Equal(t, int64(0), q.mutexQ.Stats().LatencyNanos)
	assert.Equal(t, int64(0), q.lockFreeQ.Stats().LatencyNanos)
}

func TestMigrationConservesItemCount(t *testing.T) {
	q, err := New(Config{Strategy: strategy.ForceMutex})
	require.NoError(t, err)
	defer q.Stop()

	const n = 100
	for i := 0; i < n; i++ {
		require.NoError(t, q.Enqueue(noop()))
	}
	before := q.Size()

	q.migrate(typeMutex, typeLockFree, 0, 0)

	assert.Equal(t, "lockfree", q.CurrentStrategyName())
	assert.Equal(t, 0, q.mutexQ.Size())
	assert.Equal(t, before, q.Size())
}
