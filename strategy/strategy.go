// Package strategy defines the queue-implementation selection policy used
// by the jobqueue factory.
package strategy

// Strategy selects which underlying queue implementation a Handle uses.
type Strategy int32

const (
	// ForceMutex always uses the mutex-guarded FIFO queue.
	ForceMutex Strategy = iota + 1
	// ForceLockFree always uses the lock-free MPMC queue.
	ForceLockFree
	// Auto chooses LockFree if runtime.GOMAXPROCS(0) >= 4, else Mutex, and
	// is fixed for the lifetime of the queue.
	Auto
	// Adaptive starts on Mutex and migrates between Mutex and LockFree at
	// runtime based on observed contention and latency. It is the zero
	// value, so an unset Strategy selects it.
	Adaptive Strategy = 0
)

// String renders a human-readable Strategy name.
func (s Strategy) String() string {
	switch s {
	case ForceMutex:
		return "FORCE_MUTEX"
	case ForceLockFree:
		return "FORCE_LOCKFREE"
	case Auto:
		return "AUTO"
	case Adaptive:
		return "ADAPTIVE"
	default:
		return "UNKNOWN"
	}
}
