// Package syncbus broadcasts status and signature changes between concurrent
// sessions of the same user. Delivery is asynchronous, at-most-once and
// unordered across invoice ids; consumers must re-derive their view from the
// authoritative stores rather than patch incrementally.
package syncbus

import (
	"sync"

	"github.com/google/uuid"
)

type Kind string

const (
	KindStatus    Kind = "status"
	KindSignature Kind = "signature"
)

type Event struct {
	Kind             Kind
	InvoiceID        string
	Status           string
	SignaturePresent bool
}

type Handler func(Event)

// subscriberBuffer bounds the per-subscriber queue. A full queue drops the
// event; the activation refresh pass is the recovery path.
const subscriberBuffer = 16

type subscriber struct {
	session uuid.UUID
	ch      chan Event
}

type Bus struct {
	mu   sync.Mutex
	subs map[int]*subscriber
	next int
}

func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Session identifies one client session on the bus. Events a session
// publishes are never delivered back to its own subscriptions.
type Session struct {
	id  uuid.UUID
	bus *Bus
}

func (b *Bus) NewSession() *Session {
	return &Session{id: uuid.New(), bus: b}
}

func (s *Session) Publish(ev Event) {
	s.bus.publish(s.id, ev)
}

// Subscribe registers a handler for events published by other sessions.
// The returned cancel function must be called to release the subscription.
func (s *Session) Subscribe(h Handler) (cancel func()) {
	return s.bus.subscribe(s.id, h)
}

func (b *Bus) publish(from uuid.UUID, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.session == from {
			continue
		}

		select {
		case sub.ch <- ev:
		default:
			// Best-effort: a slow subscriber loses the event.
		}
	}
}

func (b *Bus) subscribe(session uuid.UUID, h Handler) func() {
	sub := &subscriber{session: session, ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		for ev := range sub.ch {
			h(ev)
		}
	}()

	var once sync.Once

	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
}
