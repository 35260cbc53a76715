// Package broadcast propagates "the store may have changed" to everyone who
// caches store contents.
//
// Two channels exist because a writer never hears about its own writes from
// the outside:
//
//   - Local is the same-context channel. The writer raises it right after
//     every write and every subscriber in this process runs synchronously.
//   - Bridge adds a cross-context Transport (Redis pub/sub, an AMQP fanout
//     exchange or Postgres LISTEN/NOTIFY) so other processes sharing the
//     store hear about the write too.
//
// A signal carries no payload and no ordering. Receivers treat it as "re-read
// the authoritative collections" and may coalesce bursts into one re-read.
package broadcast

import (
	"context"
	"sync"
)

// Notifier is the narrow interface the rest of the system depends on.
type Notifier interface {
	// Notify raises the change signal.
	Notify(ctx context.Context) error
	// Subscribe registers fn to run on every signal and returns a function
	// that removes it. Calling the returned function twice is harmless.
	Subscribe(fn func()) (unsubscribe func())
}

type subscriber struct {
	id int
	fn func()
}

// Local fans a signal out to in-process subscribers, synchronously and in
// subscription order, the same way a browser dispatches an event to its
// listeners before dispatchEvent returns.
type Local struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscriber
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Notify(ctx context.Context) error {
	l.mu.RLock()
	subs := make([]subscriber, len(l.subs))
	copy(subs, l.subs)
	l.mu.RUnlock()

	// Subscribers run without the lock held so they may subscribe,
	// unsubscribe or write to the store (and so notify again) themselves.
	for _, s := range subs {
		s.fn()
	}
	return nil
}

func (l *Local) Subscribe(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.subs = append(l.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *Local) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, s := range l.subs {
		if s.id == id {
			l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
			return
		}
	}
}

func (l *Local) size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}
