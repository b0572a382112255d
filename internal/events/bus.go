// Package events provides an in-process publish/subscribe bus.
//
// Publish delivers synchronously to every observer registered at the time of
// the call. There is no replay: observers registered later never see earlier
// events. A panicking observer is recovered and logged so that it can neither
// break the publisher nor starve the remaining observers.
package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type subscription[T any] struct {
	id uuid.UUID
	fn func(T)
}

// Bus fans events of type T out to observers.
type Bus[T any] struct {
	mu   sync.RWMutex
	subs []subscription[T]
	log  logrus.FieldLogger
}

// NewBus creates an empty bus. topic only labels log lines.
func NewBus[T any](topic string, logger logrus.FieldLogger) *Bus[T] {
	return &Bus[T]{
		log: logger.WithFields(logrus.Fields{
			"component": "event_bus",
			"topic":     topic,
		}),
	}
}

// Subscribe registers fn and returns a function that removes it again.
// The returned function is safe to call more than once.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	sub := subscription[T]{id: uuid.New(), fn: fn}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	b.log.WithField("subscription_id", sub.id).Debug("Observer subscribed")

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub.id) })
	}
}

func (b *Bus[T]) remove(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			b.log.WithField("subscription_id", id).Debug("Observer unsubscribed")
			return
		}
	}
}

// Len reports the number of registered observers.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers event to every current observer in subscription order.
func (b *Bus[T]) Publish(event T) {
	b.mu.RLock()
	subs := make([]subscription[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, event)
	}
}

func (b *Bus[T]) deliver(s subscription[T], event T) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logrus.Fields{
				"subscription_id": s.id,
				"panic":           r,
			}).Error("Observer panicked")
		}
	}()
	s.fn(event)
}
