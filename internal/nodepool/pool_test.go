package nodepool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCell struct {
	value   int
	version atomic.Uint64
	next    atomic.Pointer[testCell]
}

func (c *testCell) Next() *atomic.Pointer[testCell] { return &c.next }

func (c *testCell) Reset() {
	c.value = 0
	c.next.Store(nil)
	c.version.Add(1)
}

func TestAllocateGrowsChunks(t *testing.T) {
	p := New[testCell, *testCell](Config{ChunkSize: 4})

	var cells []*testCell
	for i := 0; i < 10; i++ {
		c, err := p.Allocate()
		require.NoError(t, err)
		require.NotNil(t, c)
		cells = append(cells, c)
	}

	stats := p.Stats()
	assert.Equal(t, int64(10), stats.Allocated)
	assert.GreaterOrEqual(t, stats.Chunks, int64(3)) // 10 cells / 4 per chunk, rounded up
	assert.GreaterOrEqual(t, stats.TotalCapacity, int64(10))
}

func TestDeallocateRecyclesAndBumpsVersion(t *testing.T) {
	p := New[testCell, *testCell](Config{ChunkSize: 4})

	c, err := p.Allocate()
	require.NoError(t, err)
	c.value = 42
	before := c.version.Load()

	p.Deallocate(c)
	assert.Equal(t, int64(0), p.Stats().Allocated)
	assert.Equal(t, int64(1), p.Stats().FreeListSize)

	c2, err := p.Allocate()
	require.NoError(t, err)
	assert.Same(t, c, c2, "recycled cell should come from the free list")
	assert.Equal(t, 0, c2.value, "payload must be reset")
	assert.Greater(t, c2.version.Load(), before, "version must be bumped on reuse")
}

func TestAllocateNeverReturnsACellOnBothLists(t *testing.T) {
	p := New[testCell, *testCell](Config{ChunkSize: 8})
	c, err := p.Allocate()
	require.NoError(t, err)
	p.Deallocate(c)

	seen := map[*testCell]bool{}
	for i := 0; i < 8; i++ {
		cell, err := p.Allocate()
		require.NoError(t, err)
		require.False(t, seen[cell], "cell handed out twice concurrently")
		seen[cell] = true
	}
}

func TestMaxChunksBoundsCapacity(t *testing.T) {
	p := New[testCell, *testCell](Config{ChunkSize: 2, MaxChunks: 1})
	_, err := p.Allocate()
	require.NoError(t, err)
	_, err = p.Allocate()
	require.NoError(t, err)

	_, err = p.Allocate()
	require.Error(t, err)
}

func TestConcurrentAllocateDeallocate(t *testing.T) {
	p := New[testCell, *testCell](Config{ChunkSize: 16})

	const goroutines = 8
	const iterations = 500

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				c, err := p.Allocate()
				if err != nil {
					t.Errorf("allocate: %v", err)
					return
				}
				c.value = i
				p.Deallocate(c)
			}
		}()
	}
	wg.Wait()

	stats := p.Stats()
	assert.Equal(t, int64(0), stats.Allocated)
}
