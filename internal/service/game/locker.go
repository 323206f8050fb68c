package game

import (
	"context"
	"sync"
	"time"
)

// Locker serializes work on a single match across concurrent requests.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type lockEntry struct {
	sem      chan struct{}
	waiters  int
	lastUsed time.Time
}

// MemoryLocker is a per-key mutex table for a single process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*lockEntry)}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.waiters++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(entry, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(entry, true) })
	}, nil
}

func (l *MemoryLocker) release(entry *lockEntry, held bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.waiters--
	entry.lastUsed = time.Now()
	if held {
		<-entry.sem
	}
}

// Sweep drops keys nobody has held or waited on for longer than idle.
// It returns the number of keys removed.
func (l *MemoryLocker) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	now := time.Now()
	for key, entry := range l.locks {
		if entry.waiters == 0 && now.Sub(entry.lastUsed) > idle {
			delete(l.locks, key)
			count++
		}
	}
	return count
}

// Len reports how many keys are tracked.
func (l *MemoryLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func matchLockKey(matchID string) string {
	return "connect-four:match:" + matchID
}
