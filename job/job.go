// Package job defines the work-item contract transported by the queue
// core. The core never inspects or invokes a Job; it only moves ownership
// of one from a producer to a consumer.
package job

// Job is an opaque, exclusively-owned unit of work. A Job must be movable
// and must not be shared after it is handed to Enqueue: ownership transfers
// to the queue until a Dequeue call hands it to exactly one consumer.
//
// The core (node pool, hazard manager, lock-free queue, adaptive queue)
// never calls Execute. Only external consumers (such as worker goroutines)
// do.
type Job interface {
	// Execute runs the unit of work, returning an error on failure.
	Execute() error
}

// Func adapts a plain function to the Job interface, for callers that have
// no richer state to attach to a queued item.
type Func func() error

// Execute implements Job.
func (f Func) Execute() error { return f() }
