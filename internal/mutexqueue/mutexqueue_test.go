package mutexqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcenon/jobqueue/job"
	"github.com/kcenon/jobqueue/qerrors"
)

func noop() job.Job { return job.Func(func() error { return nil }) }

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := New(Config{})
	// Pointer jobs, so assert.Same can compare identities.
	newJob := func() *job.Func { f := job.Func(func() error { return nil }); return &f }
	a, b, c := newJob(), newJob(), newJob()
	require.NoError(t, q.Enqueue(a))
	require.NoError(t, q.Enqueue(b))
	require.NoError(t, q.Enqueue(c))

	got, err := q.Dequeue()
	require.NoError(t, err)
	assert.Same(t, a, got)

	got, err = q.Dequeue()
	require.NoError(t, err)
	assert.Same(t, b, got)
}

func TestEnqueueNilIsInvalidArgument(t *testing.T) {
	q := New(Config{})
	err := q.Enqueue(nil)
	require.Error(t, err)
	assert.True(t, qerrors.Is(err, qerrors.KindInvalidArgument))
	assert.True(t, q.Empty())
}

func TestDequeueEmptyReturnsEmptyKind(t *testing.T) {
	q := New(Config{})
	_, err := q.Dequeue()
	require.Error(t, err)
	assert.True(t, qerrors.Is(err, qerrors.KindEmpty))
}

func TestBatchBoundaries(t *testing.T) {
	q := New(Config{MaxBatchSize: 4})
	items := make([]job.Job, 4)
	for i := range items {
		items[i] = noop()
	}
	require.NoError(t, q.EnqueueBatch(items))

	tooMany := make([]job.Job, 5)
	for i := range tooMany {
		tooMany[i] = noop()
	}
	err := q.EnqueueBatch(tooMany)
	require.Error(t, err)
	assert.True(t, qerrors.Is(err, qerrors.KindInvalidArgument))

	err = q.EnqueueBatch(nil)
	require.Error(t, err)
	assert.True(t, qerrors.Is(err, qerrors.KindInvalidArgument))
}

func TestDequeueBatchStopsAtEmpty(t *testing.T) {
	q := New(Config{MaxBatchSize: 1024})
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(noop()))
	}
	out := q.DequeueBatch()
	assert.Len(t, out, 5)
	assert.Nil(t, q.DequeueBatch())
}

func TestStopIsIdempotentAndDequeueAfterStopReturnsStopped(t *testing.T) {
	q := New(Config{})
	q.Stop()
	q.Stop()

	err := q.Enqueue(noop())
	require.Error(t, err)
	assert.True(t, qerrors.Is(err, qerrors.KindStopped))

	_, err = q.Dequeue()
	require.Error(t, err)
	assert.True(t, qerrors.Is(err, qerrors.KindStopped))
}

func TestClearDrainsIndependentlyOfStop(t *testing.T) {
	q := New(Config{})
	require.NoError(t, q.Enqueue(noop()))
	require.NoError(t, q.Enqueue(noop()))
	q.Clear()
	assert.True(t, q.Empty())
	assert.Equal(t, 0, q.Size())
	q.Clear() // no-op, must not panic
}

func TestSizeMatchesEnqueuedMinusDequeued(t *testing.T) {
	q := New(Config{})
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(noop()))
	}
	for i := 0; i < 4; i++ {
		_, err := q.Dequeue()
		require.NoError(t, err)
	}
	assert.Equal(t, 6, q.Size())
	assert.Equal(t, int64(10), q.Stats().Enqueued)
	assert.Equal(t, int64(4), q.Stats().Dequeued)
}

func TestConcurrentProducersConsumersConserveCount(t *testing.T) {
	q := New(Config{})
	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				require.NoError(t, q.Enqueue(noop()))
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		_, err := q.Dequeue()
		if err != nil {
			break
		}
		count++
	}
	assert.Equal(t, producers*perProducer, count)
}

func TestResetMetricsClearsLatencyNotTotals(t *testing.T) {
	q := New(Config{})
	require.NoError(t, q.Enqueue(noop()))
	q.ResetMetrics()
	stats := q.Stats()
	assert.Equal(t, int64(0), stats.LatencyNanos)
	assert.Equal(t, int64(1), stats.Enqueued)
}
