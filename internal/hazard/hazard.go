// Package hazard implements component B of the job-queue substrate: a
// hazard-pointer reclamation manager providing safe memory reclamation for
// the lock-free MPMC queue in internal/lockfree.
//
// No single file in the teacher lineage implements hazard pointers
// (eventloop/ingress.go's MicrotaskRing sidesteps reclamation entirely by
// being MPSC with a single fixed consumer). The CAS-retry-loop style and
// the release/acquire publish-then-reverify discipline are grounded on
// MicrotaskRing's Push/Pop ordering comments, generalized from a single
// shared slot to the bounded set of per-lease protection slots spec.md
// §4.B describes.
//
// Go note: goroutines have no stable OS-thread identity to key a C++-style
// thread_local hazard record, so "per-thread" ownership is realized here as
// "per-lease": a caller acquires a *Handle for the duration of one queue
// operation and releases it at the end. max_threads becomes a bound on
// concurrently in-flight hazard leases (see DESIGN.md).
package hazard

import (
	"slices"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/kcenon/jobqueue/internal/align"
	"github.com/kcenon/jobqueue/qerrors"
)

// ptrLess orders two pointers of arbitrary type by address, giving the
// sorted protected-pointer set scanAndReclaim needs for binary search.
// Pointer ordering comparisons (<, >) are not legal in Go, so the
// comparison goes through uintptr.
func ptrLess[T any](a, b *T) bool {
	return uintptr(unsafe.Pointer(a)) < uintptr(unsafe.Pointer(b))
}

func ptrCompare[T any](a, b *T) int {
	switch {
	case ptrLess(a, b):
		return -1
	case ptrLess(b, a):
		return 1
	default:
		return 0
	}
}

// Config configures a Manager.
type Config struct {
	// MaxThreads bounds the number of records (and so the number of
	// concurrently in-flight hazard leases). Defaults to 64 if <= 0.
	MaxThreads int
	// PointersPerThread bounds the number of protection slots a single
	// lease may use simultaneously (e.g. protecting head and head->next at
	// once). Defaults to 2 if <= 0.
	PointersPerThread int
	// RetireThreshold triggers a scan once a record's retired list reaches
	// this length. Defaults to 64 if <= 0.
	RetireThreshold int
	// ScanInterval triggers a scan once this much wall-clock time has
	// elapsed since the last one, independent of retired-list length.
	// Defaults to 100ms if <= 0.
	ScanInterval time.Duration
}

const (
	defaultMaxThreads       = 64
	defaultPointersPerHread = 2
	defaultRetireThreshold  = 64
)

var defaultScanInterval = 100 * time.Millisecond

type retiredEntry[T any] struct {
	ptr       *T
	deleter   func(*T)
	retiredAt time.Time
}

type record[T any] struct {
	_        align.Pad
	owner    atomic.Uint64 // 0 = free; otherwise a lease generation id
	slots    []atomic.Pointer[T]
	retired  []retiredEntry[T]
	lastScan time.Time
}

// Manager is a hazard-pointer reclamation manager for pointers of type *T.
type Manager[T any] struct {
	records         []*record[T]
	retireThreshold int
	scanInterval    time.Duration
	leaseSeq        atomic.Uint64
}

// NewManager constructs a Manager. An empty/zero Config uses the documented
// defaults.
func NewManager[T any](cfg Config) *Manager[T] {
	maxThreads := cfg.MaxThreads
	if maxThreads <= 0 {
		maxThreads = defaultMaxThreads
	}
	slotsPerThread := cfg.PointersPerThread
	if slotsPerThread <= 0 {
		slotsPerThread = defaultPointersPerHread
	}
	retireThreshold := cfg.RetireThreshold
	if retireThreshold <= 0 {
		retireThreshold = defaultRetireThreshold
	}
	scanInterval := cfg.ScanInterval
	if scanInterval <= 0 {
		scanInterval = defaultScanInterval
	}

	m := &Manager[T]{
		records:         make([]*record[T], maxThreads),
		retireThreshold: retireThreshold,
		scanInterval:    scanInterval,
	}
	for i := range m.records {
		m.records[i] = &record[T]{slots: make([]atomic.Pointer[T], slotsPerThread)}
	}
	return m
}

// Handle is a scoped, per-lease protection handle returned by Acquire. Its
// slots must be cleared (directly, or via Release) before the lease is
// considered done.
type Handle[T any] struct {
	mgr *Manager[T]
	rec *record[T]
}

// Acquire leases a free record, failing with a qerrors.KindUnknown
// *QueueError (op "acquire") if every record is currently leased (more
// concurrent operations in flight than MaxThreads allows).
func (m *Manager[T]) Acquire() (*Handle[T], error) {
	lease := m.leaseSeq.Add(1)
	for _, rec := range m.records {
		if rec.owner.CompareAndSwap(0, lease) {
			return &Handle[T]{mgr: m, rec: rec}, nil
		}
	}
	return nil, qerrors.New("acquire", qerrors.KindUnknown)
}

// Protect publishes src's current value into the given slot, re-reading
// src until two consecutive reads agree, per spec §4.B's protect algorithm.
// The returned pointer is guaranteed not to be reclaimed until the slot is
// cleared (via Clear or Release).
func (h *Handle[T]) Protect(slot int, src *atomic.Pointer[T]) *T {
	for {
		p := src.Load()
		h.rec.slots[slot].Store(p)
		if q := src.Load(); q == p {
			return p
		}
	}
}

// Clear releases the protection held in the given slot.
func (h *Handle[T]) Clear(slot int) {
	h.rec.slots[slot].Store(nil)
}

// Retire records p for deferred destruction via deleter, once no hazard
// slot anywhere protects it. It may trigger a scan synchronously, per the
// scan policy in spec §4.B (retired-list threshold or wall-clock
// interval).
func (h *Handle[T]) Retire(p *T, deleter func(*T)) {
	h.rec.retired = append(h.rec.retired, retiredEntry[T]{ptr: p, deleter: deleter, retiredAt: time.Now()})

	if len(h.rec.retired) >= h.mgr.retireThreshold || time.Since(h.rec.lastScan) >= h.mgr.scanInterval {
		h.mgr.scanAndReclaim(h.rec)
		h.rec.lastScan = time.Now()
	}
}

// Release clears every slot held by the handle and returns the underlying
// record to the free pool.
func (h *Handle[T]) Release() {
	for i := range h.rec.slots {
		h.rec.slots[i].Store(nil)
	}
	h.rec.owner.Store(0)
}

// scanAndReclaim walks every record's slots to build the currently
// protected-pointer set (sorted, for O(log H) membership tests, per
// spec §4.B's explicit O((H+R) log H) requirement), then walks ONLY the
// triggering lease's own retired list, invoking each entry's deleter if
// its pointer is not protected.
//
// Retired lists are thread-local (here: lease-local) and must never be
// mutated by anything other than their owning lease — two leases may call
// scanAndReclaim concurrently, and each must only append to / rewrite its
// own record's retired slice. Collecting the protected set from every
// record is still safe and required: hazard slots are read-only here and
// a pointer protected by a different lease must still block this lease's
// reclamation of it. Reclaiming a foreign record's retired list would race
// the owning lease's concurrent append (a data race on the slice) and
// could double-free a node via two leases' deleters both firing for the
// same unprotected entry.
func (m *Manager[T]) scanAndReclaim(self *record[T]) {
	var protected []*T
	for _, rec := range m.records {
		for i := range rec.slots {
			if p := rec.slots[i].Load(); p != nil {
				protected = append(protected, p)
			}
		}
	}
	slices.SortFunc(protected, ptrCompare[T])

	remaining := self.retired[:0]
	for _, entry := range self.retired {
		_, found := slices.BinarySearchFunc(protected, entry.ptr, ptrCompare[T])
		if found {
			remaining = append(remaining, entry)
			continue
		}
		entry.deleter(entry.ptr)
	}
	self.retired = remaining
}

// PendingReclaims returns the total number of retired-but-not-yet-freed
// entries across all records, for tests and diagnostics.
func (m *Manager[T]) PendingReclaims() int {
	total := 0
	for _, rec := range m.records {
		total += len(rec.retired)
	}
	return total
}
