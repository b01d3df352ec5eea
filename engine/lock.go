package engine

import (
	"context"
	"sync/atomic"

	"github.com/looplj/harmonygate/internal/log"
)

// Lock is the process-wide exclusive section guarding every call that
// traverses the accelerator (spec.md §4.5/§5). It is built on a
// buffered channel of size 1 rather than sync.Mutex so acquisition can be
// cancelled while a caller is still queued (sync.Mutex offers no way to
// abandon a pending Lock() call). Queueing is FIFO to the extent the Go
// runtime's channel send/receive wait queues are FIFO, matching the
// "FIFO-fair if the underlying primitive is" clause in spec.md §5.
//
// Lock is not re-entrant: acquiring it twice on the same goroutine
// deadlocks, by design (spec.md §5: "nested acquisition is a bug").
type Lock struct {
	sem     chan struct{}
	inFlight int32
	queued   int32
}

// NewLock constructs an unlocked Lock.
func NewLock() *Lock {
	return &Lock{sem: make(chan struct{}, 1)}
}

// Acquire blocks until the lock is free or ctx is done. On success it
// returns a release function that MUST be called exactly once, typically
// via defer, on every exit path (spec.md §9 "guard that guarantees release
// on every exit path").
func (l *Lock) Acquire(ctx context.Context) (release func(), err error) {
	atomic.AddInt32(&l.queued, 1)

	defer atomic.AddInt32(&l.queued, -1)

	select {
	case l.sem <- struct{}{}:
		atomic.AddInt32(&l.inFlight, 1)

		var released int32

		return func() {
			if atomic.CompareAndSwapInt32(&released, 0, 1) {
				atomic.AddInt32(&l.inFlight, -1)
				<-l.sem
			}
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InFlight reports the number of callers currently inside the critical
// section (0 or 1). Exposed for the concurrency instrumentation invariant
// in spec.md §8 (S7): for any schedule of N concurrent generations, this
// must never exceed 1.
func (l *Lock) InFlight() int {
	return int(atomic.LoadInt32(&l.inFlight))
}

// Queued reports the number of callers currently waiting to acquire the
// lock.
func (l *Lock) Queued() int {
	return int(atomic.LoadInt32(&l.queued))
}

// ClearCache best-effort clears the engine's accelerator cache if it
// implements CacheClearer. Errors are logged and swallowed (spec.md §4.5:
// "best-effort, errors logged only"); this call happens AFTER the lock has
// been released, so it never extends the next queued caller's wait.
func ClearCache(ctx context.Context, eng Engine) {
	clearer, ok := eng.(CacheClearer)
	if !ok {
		return
	}

	if err := clearer.ClearCache(ctx); err != nil {
		log.Warn(ctx, "accelerator cache clear failed", log.Cause(err))
	}
}
