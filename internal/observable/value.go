// Package observable provides push-based state containers: a current value
// with subscribers notified on change, and an ordered event broadcaster.
package observable

import "sync"

// Value holds a current value and notifies subscribers when it changes.
// Subscriber channels are conflating: a slow reader only ever sees the latest
// value. It is safe for concurrent use.
type Value[T comparable] struct {
	mu     sync.Mutex
	cur    T
	subs   map[chan T]struct{}
	closed bool
}

// NewValue creates a Value holding initial.
func NewValue[T comparable](initial T) *Value[T] {
	return &Value[T]{
		cur:  initial,
		subs: make(map[chan T]struct{}),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Set stores next and notifies subscribers if it differs from the current
// value. It reports whether the value changed.
func (v *Value[T]) Set(next T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed || v.cur == next {
		return false
	}
	v.cur = next
	for ch := range v.subs {
		replace(ch, next)
	}
	return true
}

// Subscribe returns a channel that immediately yields the current value and
// then every change, plus a func that unsubscribes and closes the channel.
func (v *Value[T]) Subscribe() (func(), <-chan T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan T, 1)
	if v.closed {
		close(ch)
		return func() {}, ch
	}
	ch <- v.cur
	v.subs[ch] = struct{}{}

	unsub := func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if _, ok := v.subs[ch]; !ok {
			return
		}
		delete(v.subs, ch)
		drainAndClose(ch)
	}
	return unsub, ch
}

// Close closes every subscriber channel. Later Set calls are ignored.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.closed = true
	for ch := range v.subs {
		drainAndClose(ch)
		delete(v.subs, ch)
	}
}

// replace swaps any buffered value for next. Callers hold the lock, so no
// other writer can refill the buffer between the drain and the send.
func replace[T any](ch chan T, next T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- next:
	default:
	}
}

// drainAndClose removes any buffered value before closing the channel so
// receivers observe a closed channel immediately.
func drainAndClose[T any](ch chan T) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}
