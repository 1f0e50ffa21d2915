package events

import (
	"context"
	"log"
	"sync"
	"time"
)

type AccountAction string

const (
	AccountCreated   AccountAction = "created"
	AccountUpdated   AccountAction = "updated"
	AccountConfirmed AccountAction = "confirmed"
	AccountUnlinked  AccountAction = "unlinked"
)

// AccountEvent is published whenever the persister writes an account
type AccountEvent struct {
	AccountName string
	AccountType string
	AuthType    string
	Action      AccountAction
	OccurredAt  time.Time
}

// Bus fans account events out to subscribers. A subscription lives until
// its release func is called or its context ends, whichever comes first.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan AccountEvent
	nextID int
	buffer int
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{
		subs:   make(map[int]chan AccountEvent),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber. The returned channel is closed on release.
func (b *Bus) Subscribe(ctx context.Context) (<-chan AccountEvent, func()) {
	ch := make(chan AccountEvent, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		release()
	}()

	return ch, release
}

// Publish never blocks; a subscriber with a full buffer misses the event
func (b *Bus) Publish(ev AccountEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("events: subscriber %d is full, dropping %s event for %s", id, ev.Action, ev.AccountName)
		}
	}
}

// Subscribers returns the number of live subscriptions
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
