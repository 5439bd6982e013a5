package jobqueue

import (
	"time"

	"github.com/kcenon/jobqueue/internal/adaptive"
	"github.com/kcenon/jobqueue/internal/lockfree"
	"github.com/kcenon/jobqueue/internal/mutexqueue"
	"github.com/kcenon/jobqueue/logging"
)

// queueOptions holds configuration collected from Option values, grounded
// on eventloop's loopOptions/LoopOption pattern.
type queueOptions struct {
	chunkSize         int
	maxChunks         int
	maxBatchSize      int
	retryThreshold    int
	maxTotalRetries   int
	maxThreads        int
	pointersPerThread int

	evaluationInterval     time.Duration
	minOperationsForSwitch int64
	parallelism            int

	logger logging.Logger
}

// Option configures a Handle returned by CreateQueue.
type Option interface {
	applyQueue(*queueOptions) error
}

type queueOptionImpl struct {
	applyQueueFunc func(*queueOptions) error
}

func (o *queueOptionImpl) applyQueue(opts *queueOptions) error {
	return o.applyQueueFunc(opts)
}

// WithChunkSize sets the node pool's per-chunk cell count (lock-free mode
// only). Defaults to 128.
func WithChunkSize(size int) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.chunkSize = size
		return nil
	}}
}

// WithMaxChunks bounds the node pool's total chunk count (lock-free mode
// only), making allocation_failed reachable once exhausted. <= 0 means
// unbounded (the default).
func WithMaxChunks(n int) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.maxChunks = n
		return nil
	}}
}

// WithMaxBatchSize bounds EnqueueBatch/DequeueBatch in both queue modes.
// Defaults to 1024.
func WithMaxBatchSize(n int) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.maxBatchSize = n
		return nil
	}}
}

// WithRetryThreshold sets the local-retry count at which the lock-free
// queue's retry counter is incremented. Defaults to 32.
func WithRetryThreshold(n int) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.retryThreshold = n
		return nil
	}}
}

// WithMaxTotalRetries bounds total CAS retries in the lock-free queue
// before an operation fails with retry_limit_exceeded. Defaults to 1000.
// Set to a very large value to effectively disable the liveness ceiling.
func WithMaxTotalRetries(n int) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.maxTotalRetries = n
		return nil
	}}
}

// WithHazardPointers sets the hazard manager's record count (bounding
// concurrently in-flight lock-free operations) and the number of
// protection slots per lease. Defaults to 64 and 2.
func WithHazardPointers(maxThreads, pointersPerThread int) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.maxThreads = maxThreads
		opts.pointersPerThread = pointersPerThread
		return nil
	}}
}

// WithEvaluationInterval sets how often the Adaptive strategy's monitor
// goroutine evaluates a switch decision. Defaults to 5s. Ignored for
// strategies other than strategy.Adaptive.
func WithEvaluationInterval(d time.Duration) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.evaluationInterval = d
		return nil
	}}
}

// WithMinOperationsForSwitch sets the operation-count floor the Adaptive
// strategy requires before it will evaluate a switch. Defaults to 1000.
func WithMinOperationsForSwitch(n int64) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.minOperationsForSwitch = n
		return nil
	}}
}

// WithParallelism overrides runtime.GOMAXPROCS(0) for the Auto strategy's
// hardware-parallelism check. Mainly useful for tests.
func WithParallelism(n int) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.parallelism = n
		return nil
	}}
}

// WithLogger overrides the structured logger used for switch/migration
// events under the Adaptive strategy. Defaults to logging.Default().
func WithLogger(l logging.Logger) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.logger = l
		return nil
	}}
}

// resolveQueueOptions applies Option values to a fresh queueOptions,
// mirroring eventloop.resolveLoopOptions's nil-skipping behavior.
func resolveQueueOptions(opts []Option) (*queueOptions, error) {
	cfg := &queueOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyQueue(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (cfg *queueOptions) mutexConfig() mutexqueue.Config {
	return mutexqueue.Config{MaxBatchSize: cfg.maxBatchSize}
}

func (cfg *queueOptions) lockFreeConfig() lockfree.Config {
	return lockfree.Config{
		ChunkSize:         cfg.chunkSize,
		MaxChunks:         cfg.maxChunks,
		MaxBatchSize:      cfg.maxBatchSize,
		RetryThreshold:    cfg.retryThreshold,
		MaxTotalRetries:   cfg.maxTotalRetries,
		MaxThreads:        cfg.maxThreads,
		PointersPerThread: cfg.pointersPerThread,
	}
}

func (cfg *queueOptions) adaptiveConfig() adaptive.Config {
	return adaptive.Config{
		MutexConfig:            cfg.mutexConfig(),
		LockFreeConfig:         cfg.lockFreeConfig(),
		EvaluationInterval:     cfg.evaluationInterval,
		MinOperationsForSwitch: cfg.minOperationsForSwitch,
		Parallelism:            cfg.parallelism,
		Logger:                 cfg.logger,
	}
}
