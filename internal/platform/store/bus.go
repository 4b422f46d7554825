package store

import (
	"context"
	"sync"
)

// Bus fans out collection changes to subscribers. Slow subscribers miss
// events rather than block writers.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Change
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Change)}
}

// Subscribe returns a channel that is closed when ctx ends.
func (b *Bus) Subscribe(ctx context.Context) <-chan Change {
	ch := make(chan Change, 32)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

func (b *Bus) Publish(change Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
