// Package ratelimit implements the rolling-window admission counter
// used by the Dispatcher (component 2 of the design).
package ratelimit

import (
	"container/list"
	"sync"
	"time"
)

// Limiter admits at most N calls in any trailing window. Unlike a
// token bucket, it never "saves up" unused capacity beyond what fits
// in the window — admission is decided purely from the timestamps of
// the last N admitted calls.
type Limiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	admits *list.List // front = oldest admitted timestamp
}

// New builds a Limiter admitting at most max calls per window.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:    max,
		window: window,
		admits: list.New(),
	}
}

// TryAcquire admits the call and returns true iff fewer than max of
// the limiter's remembered timestamps lie within the past window.
func (l *Limiter) TryAcquire() bool {
	return l.tryAcquireAt(time.Now())
}

func (l *Limiter) tryAcquireAt(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evict(now)

	if l.admits.Len() >= l.max {
		return false
	}
	l.admits.PushBack(now)
	return true
}

// NextAdmissionAt returns the earliest time a call would be admitted
// if the caller waited, given the currently remembered timestamps.
// Used by the Dispatcher to sleep until a permit would be granted
// instead of busy-polling.
func (l *Limiter) NextAdmissionAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.evict(now)

	if l.admits.Len() < l.max {
		return now
	}
	oldest := l.admits.Front().Value.(time.Time)
	return oldest.Add(l.window)
}

// evict drops remembered timestamps older than the window. Caller
// must hold l.mu.
func (l *Limiter) evict(now time.Time) {
	for e := l.admits.Front(); e != nil; {
		next := e.Next()
		if now.Sub(e.Value.(time.Time)) >= l.window {
			l.admits.Remove(e)
		} else {
			// admits is insertion-ordered, so once one entry is still
			// fresh, every later one is too.
			break
		}
		e = next
	}
}
