package lockfree

import (
	"sync/atomic"

	"github.com/kcenon/jobqueue/internal/align"
	"github.com/kcenon/jobqueue/job"
)

// node is a Michael-Scott queue link. data holds a pointer to a boxed
// job.Job (job.Job is an interface, not a concrete pointer type, so it
// cannot itself live inside an atomic.Pointer[T]). next is reused both for
// live queue linkage and, while the node sits on nodepool's free list, for
// free-list linkage — legal because a node is never in both places at
// once (see internal/nodepool.Linked).
type node struct {
	_       align.Pad
	data    atomic.Pointer[job.Job]
	next    atomic.Pointer[node]
	version atomic.Uint64
}

// Next implements nodepool.Linked[node].
func (n *node) Next() *atomic.Pointer[node] { return &n.next }

// Reset implements nodepool.Linked[node]: clears the payload and bumps the
// ABA-avoidance version counter before the node returns to the free list.
func (n *node) Reset() {
	n.data.Store(nil)
	n.next.Store(nil)
	n.version.Add(1)
}
