// Package bridge carries cart and checkout notifications between the core
// and whatever renders it. Publishing is synchronous: every subscriber of a
// topic runs, in registration order, before Publish returns. Nothing is
// buffered, so events published with no subscriber are dropped.
//
// A dispatch pass works on the subscriber list as it was when Publish was
// called. A handler that unsubscribes itself or another handler during a
// pass does not stop that pass; the removed handler is still called once
// for the event being dispatched and never afterwards. Handlers added
// during a pass only see later events.
package bridge

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

type Topic string

const (
	ItemAdded         Topic = "item-added"
	ItemUpdated       Topic = "item-updated"
	ItemRemoved       Topic = "item-removed"
	CartCleared       Topic = "cart-cleared"
	CheckoutSucceeded Topic = "checkout-succeeded"
	CheckoutFailed    Topic = "checkout-failed"
)

type Event interface {
	Topic() Topic
}

type Handler func(Event)

type subscriber struct {
	id int64
	fn Handler
}

type Bus struct {
	log  logrus.FieldLogger
	mu   sync.Mutex
	next int64
	subs map[Topic][]subscriber
}

func New(log logrus.FieldLogger) *Bus {
	return &Bus{
		log:  log,
		subs: make(map[Topic][]subscriber),
	}
}

// Subscribe registers fn for topic and returns the function that removes it.
// Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(topic Topic, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	id := b.next
	b.subs[topic] = append(b.subs[topic], subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *Bus) remove(topic Topic, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			// Copy so that in-flight dispatch snapshots keep their view.
			rest := make([]subscriber, 0, len(subs)-1)
			rest = append(rest, subs[:i]...)
			rest = append(rest, subs[i+1:]...)
			b.subs[topic] = rest
			return
		}
	}
}

func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	snapshot := b.subs[evt.Topic()]
	b.mu.Unlock()

	for _, s := range snapshot {
		b.dispatch(evt, s)
	}
}

func (b *Bus) Subscribers(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

func (b *Bus) dispatch(evt Event, s subscriber) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.WithFields(logrus.Fields{
				"topic":   evt.Topic(),
				"message": fmt.Sprintf("%v", rec),
			}).Error("subscriber panic")
		}
	}()

	s.fn(evt)
}
