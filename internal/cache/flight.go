// Package cache memoizes in-progress and completed generations keyed by
// request fingerprint. Storing the in-flight entry (not just the final
// value) is what lets concurrent identical requests share exactly one
// upstream call.
package cache

import (
	"container/list"
	"context"
	"sync"

	"github.com/goccy/go-json"
)

// DefaultCapacity bounds the cache when no capacity is configured.
const DefaultCapacity = 128

// entry is one fingerprint's slot. done is closed exactly once, after value
// or err is set.
type entry struct {
	key   string
	done  chan struct{}
	value json.RawMessage
	err   error
	elem  *list.Element
}

// Flight is a bounded, recency-ordered coalescing cache. The entry is
// installed under the lock before any upstream work starts; that sequencing
// is what makes deduplication correct.
type Flight struct {
	mu       sync.Mutex
	entries  map[string]*entry
	order    *list.List // front = most recent
	capacity int

	hits      uint64
	misses    uint64
	coalesced uint64
}

// NewFlight creates a cache bounded to capacity entries.
func NewFlight(capacity int) *Flight {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Flight{
		entries:  make(map[string]*entry),
		order:    list.New(),
		capacity: capacity,
	}
}

// Do returns the cached or in-flight result for key, running fn exactly once
// across all concurrent callers of the same key. Every caller receives an
// independent copy of the bytes. A failed fn removes the entry and delivers
// the error to current waiters only; the next call starts fresh.
func (f *Flight) Do(ctx context.Context, key string, fn func() (json.RawMessage, error)) (json.RawMessage, error) {
	f.mu.Lock()
	if e, ok := f.entries[key]; ok {
		f.order.MoveToFront(e.elem)
		select {
		case <-e.done:
			f.hits++
		default:
			f.coalesced++
		}
		f.mu.Unlock()
		return f.wait(ctx, e)
	}

	e := &entry{key: key, done: make(chan struct{})}
	e.elem = f.order.PushFront(e)
	f.entries[key] = e
	f.misses++
	f.evictLocked()
	f.mu.Unlock()

	value, err := fn()

	f.mu.Lock()
	if err != nil {
		// No negative caching: drop the placeholder before waking waiters so
		// callers arriving later retry from scratch.
		f.removeLocked(e)
		e.err = err
	} else {
		e.value = value
	}
	close(e.done)
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return cloneBytes(e.value), nil
}

func (f *Flight) wait(ctx context.Context, e *entry) (json.RawMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
	}
	if e.err != nil {
		return nil, e.err
	}
	return cloneBytes(e.value), nil
}

// Len reports the number of live entries.
func (f *Flight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Contains reports whether key currently has an entry.
func (f *Flight) Contains(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[key]
	return ok
}

// Pending reports whether key has an entry whose generation has not
// finished yet.
func (f *Flight) Pending(key string) bool {
	f.mu.Lock()
	e, ok := f.entries[key]
	f.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

// Stats returns hit/miss/coalesced counters.
func (f *Flight) Stats() (hits, misses, coalesced uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits, f.misses, f.coalesced
}

// evictLocked drops oldest entries until the capacity holds. Waiters already
// holding an evicted entry still complete through its done channel.
func (f *Flight) evictLocked() {
	for len(f.entries) > f.capacity {
		oldest := f.order.Back()
		if oldest == nil {
			return
		}
		f.removeLocked(oldest.Value.(*entry))
	}
}

// removeLocked detaches an entry if it is still the current occupant of its
// key. A stale entry (already replaced after a failure) is left alone.
func (f *Flight) removeLocked(e *entry) {
	if cur, ok := f.entries[e.key]; ok && cur == e {
		delete(f.entries, e.key)
	}
	if e.elem != nil {
		f.order.Remove(e.elem)
		e.elem = nil
	}
}

func cloneBytes(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}
