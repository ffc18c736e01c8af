package sync

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	lockKey      = "sync_in_progress"
	remainingKey = "sync_remaining"
	progressKey  = "sync_progress"
)

// Lock is the advisory, self-expiring flag preventing two full-catalog
// syncs from running concurrently. A stuck lock recovers by timeout, never
// by explicit cancellation. It also keeps the transient progress counters
// for the foreground sync mode.
type Lock struct {
	cache   *gocache.Cache
	timeout time.Duration
}

func NewLock(timeout time.Duration) *Lock {
	return &Lock{
		cache:   gocache.New(timeout, time.Minute),
		timeout: timeout,
	}
}

// TryAcquire takes the lock if it is free. Returns false when another sync
// holds it.
func (l *Lock) TryAcquire() bool {
	return l.cache.Add(lockKey, true, l.timeout) == nil
}

// Refresh re-arms the expiry; called per item in the foreground loop so a
// long catalog walk doesn't lose the lock mid-run.
func (l *Lock) Refresh() {
	l.cache.Set(lockKey, true, l.timeout)
}

func (l *Lock) Release() {
	l.cache.Delete(lockKey)
	l.cache.Delete(progressKey)
}

func (l *Lock) IsLocked() bool {
	_, held := l.cache.Get(lockKey)
	return held
}

func (l *Lock) SetRemaining(n int) {
	l.cache.Set(remainingKey, n, gocache.NoExpiration)
}

func (l *Lock) Remaining() int {
	if v, ok := l.cache.Get(remainingKey); ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return 0
}

func (l *Lock) IncrementProgress() int {
	n, err := l.cache.IncrementInt(progressKey, 1)
	if err != nil {
		l.cache.Set(progressKey, 1, gocache.NoExpiration)
		return 1
	}
	return n
}

func (l *Lock) Progress() int {
	if v, ok := l.cache.Get(progressKey); ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return 0
}
