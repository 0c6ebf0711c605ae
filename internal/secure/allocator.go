package secure

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	scerrors "github.com/longkey1/securechat/internal/errors"
	"github.com/longkey1/securechat/internal/logging"
	"github.com/longkey1/securechat/internal/metrics"
)

// LockPolicy decides what happens when the OS refuses to lock a buffer.
type LockPolicy int

const (
	// LockBestEffort keeps the buffer unlocked, logs a warning and
	// counts the failure. Buffer.Locked reports false.
	LockBestEffort LockPolicy = iota
	// LockRequired fails construction with a LockError.
	LockRequired
)

// ParseLockPolicy parses "best-effort" or "required".
func ParseLockPolicy(s string) (LockPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "best-effort", "besteffort":
		return LockBestEffort, nil
	case "required":
		return LockRequired, nil
	default:
		return LockBestEffort, fmt.Errorf("invalid lock policy: %s (expected best-effort or required)", s)
	}
}

func (p LockPolicy) String() string {
	if p == LockRequired {
		return "required"
	}
	return "best-effort"
}

// Allocator creates buffers from a Memory capability and tracks the live
// ones so they can be purged together.
type Allocator struct {
	memory  Memory
	policy  LockPolicy
	logger  *zap.Logger
	metrics *metrics.Metrics

	initOnce sync.Once

	mu   sync.Mutex
	live map[*region]struct{}
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithMemory replaces the system memory capability.
func WithMemory(memory Memory) AllocatorOption {
	return func(a *Allocator) {
		a.memory = memory
	}
}

// WithLockPolicy sets the lock failure policy.
func WithLockPolicy(policy LockPolicy) AllocatorOption {
	return func(a *Allocator) {
		a.policy = policy
	}
}

// WithLogger sets the logger used for lock and release warnings.
func WithLogger(logger *zap.Logger) AllocatorOption {
	return func(a *Allocator) {
		a.logger = logger
	}
}

// WithMetrics records buffer counts and lock failures.
func WithMetrics(m *metrics.Metrics) AllocatorOption {
	return func(a *Allocator) {
		a.metrics = m
	}
}

// NewAllocator creates an allocator backed by SystemMemory unless
// WithMemory says otherwise.
func NewAllocator(opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		memory: SystemMemory{},
		policy: LockBestEffort,
		logger: logging.Nop(),
		live:   make(map[*region]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var defaultAllocator atomic.Pointer[Allocator]

// Default returns the process-wide allocator used by New.
func Default() *Allocator {
	if a := defaultAllocator.Load(); a != nil {
		return a
	}
	defaultAllocator.CompareAndSwap(nil, NewAllocator())
	return defaultAllocator.Load()
}

// SetDefault replaces the process-wide allocator. Buffers created by the
// previous allocator stay tracked by it.
func SetDefault(a *Allocator) {
	defaultAllocator.Store(a)
}

// New copies data into a new buffer from the default allocator.
func New(data []byte) (*Buffer, error) {
	return Default().New(data)
}

// NewFromString copies s into a new buffer from the default allocator.
func NewFromString(s string) (*Buffer, error) {
	return Default().New([]byte(s))
}

// Purge closes every live buffer of the default allocator.
func Purge() {
	Default().Purge()
}

// Policy returns the allocator's lock policy.
func (a *Allocator) Policy() LockPolicy {
	return a.policy
}

// New copies data into protected memory. The memory is locked before
// the copy so the secret never sits in an unlocked page. An empty input
// yields an empty, unlocked buffer without allocating.
func (a *Allocator) New(data []byte) (*Buffer, error) {
	a.initOnce.Do(func() {
		if err := Init(); err != nil {
			a.logger.Warn("secure memory initialization incomplete", zap.Error(err))
		}
	})

	r := &region{memory: a.memory, length: len(data)}

	if len(data) > 0 {
		mem, err := a.memory.Alloc(len(data))
		if err != nil {
			return nil, err
		}
		r.data = mem[:len(data)]
		r.mapping = mem

		if err := a.memory.Lock(r.mapping); err != nil {
			a.metrics.LockFailed()
			if a.policy == LockRequired {
				if _, releaseErr := r.release(); releaseErr != nil {
					a.logger.Warn("releasing unlocked buffer failed", zap.Error(releaseErr))
				}
				return nil, &scerrors.LockError{Err: err}
			}
			fields := []zap.Field{zap.Int("length", len(data)), zap.Error(err)}
			if limit, ok := memlockLimit(); ok {
				fields = append(fields, zap.Uint64("memlock_limit", limit))
			}
			a.logger.Warn("memory lock failed, buffer is not protected against swap", fields...)
		} else {
			r.locked = true
		}

		copy(r.data, data)
	}

	a.mu.Lock()
	a.live[r] = struct{}{}
	a.mu.Unlock()
	a.metrics.BufferCreated()

	b := &Buffer{region: r, allocator: a}
	b.cleanup = runtime.AddCleanup(b, func(r *region) {
		if err := a.release(r); err != nil {
			a.logger.Warn("releasing unreachable buffer failed", zap.Error(err))
		}
	}, r)

	return b, nil
}

// Take copies data into a new buffer and wipes data, so the caller's
// heap copy no longer holds the secret.
func (a *Allocator) Take(data []byte) (*Buffer, error) {
	b, err := a.New(data)
	wipe(data)
	return b, err
}

// Live returns the number of buffers not yet released.
func (a *Allocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Purge releases every live buffer. Buffers closed this way panic on
// further access, exactly as if their owner had closed them.
func (a *Allocator) Purge() {
	a.mu.Lock()
	regions := make([]*region, 0, len(a.live))
	for r := range a.live {
		regions = append(regions, r)
	}
	a.mu.Unlock()

	for _, r := range regions {
		if err := a.release(r); err != nil {
			a.logger.Warn("purging buffer failed", zap.Error(err))
		}
	}
}

// release frees r once and stops tracking it.
func (a *Allocator) release(r *region) error {
	released, err := r.release()
	if !released {
		return err
	}

	a.mu.Lock()
	delete(a.live, r)
	a.mu.Unlock()
	a.metrics.BufferReleased()

	return err
}
