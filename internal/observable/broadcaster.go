package observable

import (
	"context"
	"sync"
)

// Broadcaster fans out published items to every subscriber in publish order.
// Publish never blocks: each subscriber has an unbounded mailbox drained by
// its own goroutine.
type Broadcaster[T any] struct {
	mu      sync.Mutex
	boxes   map[*mailbox[T]]struct{}
	replay  bool
	last    T
	hasLast bool
}

// NewBroadcaster creates a Broadcaster for discrete events.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{boxes: make(map[*mailbox[T]]struct{})}
}

// NewReplayBroadcaster creates a Broadcaster that delivers the most recent
// item (initially initial) to each new subscriber before any later item.
func NewReplayBroadcaster[T any](initial T) *Broadcaster[T] {
	return &Broadcaster[T]{
		boxes:   make(map[*mailbox[T]]struct{}),
		replay:  true,
		last:    initial,
		hasLast: true,
	}
}

// Publish delivers item to all current subscribers.
func (b *Broadcaster[T]) Publish(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.replay {
		b.last = item
		b.hasLast = true
	}
	for box := range b.boxes {
		box.push(item)
	}
}

// Subscribe returns a channel receiving items until ctx is done, after which
// the channel is closed.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) <-chan T {
	box := newMailbox[T]()
	out := make(chan T)

	b.mu.Lock()
	if b.replay && b.hasLast {
		box.push(b.last)
	}
	b.boxes[box] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			b.mu.Lock()
			delete(b.boxes, box)
			b.mu.Unlock()
		}()
		for {
			item, ok := box.pop(ctx)
			if !ok {
				return
			}
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.boxes)
}

type mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{signal: make(chan struct{}, 1)}
}

func (m *mailbox[T]) push(item T) {
	m.mu.Lock()
	m.items = append(m.items, item)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) pop(ctx context.Context) (T, bool) {
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			item := m.items[0]
			var zero T
			m.items[0] = zero
			m.items = m.items[1:]
			m.mu.Unlock()
			return item, true
		}
		m.mu.Unlock()

		select {
		case <-m.signal:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}
