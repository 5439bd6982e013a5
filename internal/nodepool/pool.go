// Package nodepool implements component A of the job-queue substrate: a
// per-type, chunk-backed allocator returning fixed-size cells via a
// lock-free LIFO free list, falling back to chunked bump allocation when
// the free list is empty.
//
// Grounded on eventloop/ingress.go's chunk/chunkPool (fixed-size array
// nodes chained via next, sync.Pool-backed chunk recycling), generalized
// from a sync.Pool-backed, single-threaded task chunk into a lock-free,
// multi-producer/multi-consumer, statistics-carrying pool: unlike
// ChunkedIngress, which requires the caller to hold an external mutex,
// this pool must itself be safe for any mix of concurrent allocate/
// deallocate callers (internal/lockfree shares one pool across every
// producer and consumer goroutine).
package nodepool

import (
	"sync/atomic"

	"github.com/kcenon/jobqueue/internal/align"
	"github.com/kcenon/jobqueue/qerrors"
)

// Linked is implemented by *T for element types the pool can thread onto
// its internal free list. Next must always return the same pointer field;
// the pool and the owning component share that single field rather than
// allocating separate pool-only bookkeeping, which is safe precisely
// because a cell is never simultaneously live and free (see the package
// using this pool for that invariant).
//
// Reset is called once, by Deallocate, before a cell is pushed onto the
// free list: it must clear any payload fields and bump any ABA-avoidance
// version counter the element type owns.
type Linked[T any] interface {
	*T
	Next() *atomic.Pointer[T]
	Reset()
}

// Config configures a Pool.
type Config struct {
	// ChunkSize is the number of cells per chunk. Defaults to 128 if <= 0.
	ChunkSize int
	// MaxChunks bounds the number of chunks the pool may allocate, making
	// out_of_capacity reachable once the free list and last chunk are both
	// exhausted. <= 0 means unbounded growth (the default).
	MaxChunks int
}

const defaultChunkSize = 128

type chunk[T any] struct {
	cells []T
	index atomic.Int64
	next  atomic.Pointer[chunk[T]]
}

// Pool is a thread-safe, per-type chunked allocator. See the package doc
// comment and spec §4.A for the allocate/deallocate algorithms.
type Pool[T any, PT Linked[T]] struct {
	chunkSize int
	maxChunks int

	_        align.Pad
	freeHead atomic.Pointer[T]
	_        align.Pad
	current  atomic.Pointer[chunk[T]]

	chunks    atomic.Int64
	allocated atomic.Int64
	freed     atomic.Int64
}

// New constructs a Pool. An empty/zero Config uses the defaults
// (ChunkSize=128, unbounded growth).
func New[T any, PT Linked[T]](cfg Config) *Pool[T, PT] {
	size := cfg.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	return &Pool[T, PT]{chunkSize: size, maxChunks: cfg.MaxChunks}
}

// Stats is a point-in-time snapshot of pool bookkeeping.
type Stats struct {
	Chunks        int64
	TotalCapacity int64
	Allocated     int64
	FreeListSize  int64
}

// Stats returns a best-effort snapshot of the pool's counters.
func (p *Pool[T, PT]) Stats() Stats {
	chunks := p.chunks.Load()
	return Stats{
		Chunks:        chunks,
		TotalCapacity: chunks * int64(p.chunkSize),
		Allocated:     p.allocated.Load(),
		FreeListSize:  p.freed.Load(),
	}
}

// Allocate returns a cell, never nil, failing only with a
// qerrors.KindAllocationFailed error if MaxChunks is configured and
// exhausted.
func (p *Pool[T, PT]) Allocate() (PT, error) {
	// Step 1: pop the free-list head.
	for {
		head := p.freeHead.Load()
		if head == nil {
			break
		}
		next := PT(head).Next().Load()
		if p.freeHead.CompareAndSwap(head, next) {
			cell := PT(head)
			cell.Next().Store(nil)
			p.allocated.Add(1)
			p.freed.Add(-1)
			return cell, nil
		}
	}

	// Step 2/3: bump-allocate from the current chunk, growing as needed.
	for {
		c := p.current.Load()
		if c == nil {
			if err := p.growChunk(nil); err != nil {
				return nil, err
			}
			continue
		}
		idx := c.index.Add(1) - 1
		if idx < int64(len(c.cells)) {
			p.allocated.Add(1)
			return PT(&c.cells[idx]), nil
		}
		if err := p.growChunk(c); err != nil {
			return nil, err
		}
	}
}

// growChunk installs a fresh chunk as current, CAS'd in from old (which may
// be nil for the first chunk). Losing racers simply retry against whichever
// chunk won.
func (p *Pool[T, PT]) growChunk(old *chunk[T]) error {
	if p.maxChunks > 0 && p.chunks.Load() >= int64(p.maxChunks) {
		return qerrors.New("allocate", qerrors.KindAllocationFailed)
	}
	nc := &chunk[T]{cells: make([]T, p.chunkSize)}
	if p.current.CompareAndSwap(old, nc) {
		p.chunks.Add(1)
	}
	return nil
}

// Deallocate resets the cell's payload (and any ABA version counter, via
// Reset) and pushes it onto the free list for reuse.
func (p *Pool[T, PT]) Deallocate(cell PT) {
	cell.Reset()
	for {
		head := p.freeHead.Load()
		cell.Next().Store(head)
		if p.freeHead.CompareAndSwap(head, (*T)(cell)) {
			p.allocated.Add(-1)
			p.freed.Add(1)
			return
		}
	}
}
