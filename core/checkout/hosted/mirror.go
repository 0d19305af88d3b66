package hosted

import (
	"context"
	"sync"

	"github.com/irsalhamdi/storefront/core/bridge"
	"github.com/sirupsen/logrus"
)

const mirrorQueue = 64

// Mirror replays local cart changes against the remote cart on a single
// worker, in publish order. A full queue drops the change; Submit reconciles
// every line before redirecting, so the remote cart still ends up correct.
type Mirror struct {
	p   *Provider
	log logrus.FieldLogger

	jobs   chan bridge.Event
	quit   chan struct{}
	unsubs []func()
	wg     sync.WaitGroup
	once   sync.Once
}

func NewMirror(p *Provider, bus *bridge.Bus, log logrus.FieldLogger) *Mirror {
	m := &Mirror{
		p:    p,
		log:  log.WithField("component", "mirror"),
		jobs: make(chan bridge.Event, mirrorQueue),
		quit: make(chan struct{}),
	}
	for _, topic := range []bridge.Topic{bridge.ItemAdded, bridge.ItemUpdated, bridge.ItemRemoved, bridge.CartCleared} {
		m.unsubs = append(m.unsubs, bus.Subscribe(topic, m.enqueue))
	}
	return m
}

// Start runs the worker until Stop is called or ctx is done.
func (m *Mirror) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.quit:
				m.drain(ctx)
				return
			case evt := <-m.jobs:
				m.run(ctx, evt)
			}
		}
	}()
}

func (m *Mirror) drain(ctx context.Context) {
	for {
		select {
		case evt := <-m.jobs:
			m.run(ctx, evt)
		default:
			return
		}
	}
}

func (m *Mirror) run(ctx context.Context, evt bridge.Event) {
	if err := m.apply(ctx, evt); err != nil {
		m.log.WithError(err).WithField("topic", evt.Topic()).Warn("mirroring cart change")
	}
}

// Stop unsubscribes, lets the worker drain queued changes and waits for it.
func (m *Mirror) Stop() {
	m.once.Do(func() {
		for _, u := range m.unsubs {
			u()
		}
		close(m.quit)
	})
	m.wg.Wait()
}

func (m *Mirror) enqueue(evt bridge.Event) {
	select {
	case m.jobs <- evt:
	default:
		m.log.WithField("topic", evt.Topic()).Warn("mirror queue full, dropping change")
	}
}

func (m *Mirror) apply(ctx context.Context, evt bridge.Event) error {
	cart, err := m.p.EnsureCart(ctx)
	if err != nil {
		return err
	}

	switch e := evt.(type) {
	case bridge.ItemAddedEvent:
		if li, ok := cart.Line(e.Item.ID); ok {
			_, err = m.p.client.UpdateLines(ctx, cart.ID, []LineInput{{ID: li.ID, Quantity: li.Quantity + e.Quantity}})
			return err
		}
		_, err = m.p.client.AddLines(ctx, cart.ID, []LineInput{{VariantID: e.Item.ID, Quantity: e.Quantity}})

	case bridge.ItemUpdatedEvent:
		if li, ok := cart.Line(e.ItemID); ok {
			_, err = m.p.client.UpdateLines(ctx, cart.ID, []LineInput{{ID: li.ID, Quantity: e.Quantity}})
			return err
		}
		_, err = m.p.client.AddLines(ctx, cart.ID, []LineInput{{VariantID: e.ItemID, Quantity: e.Quantity}})

	case bridge.ItemRemovedEvent:
		if li, ok := cart.Line(e.ItemID); ok {
			_, err = m.p.client.RemoveLines(ctx, cart.ID, []string{li.ID})
		}

	case bridge.CartClearedEvent:
		if len(cart.LineItems) == 0 {
			return nil
		}
		ids := make([]string, 0, len(cart.LineItems))
		for _, li := range cart.LineItems {
			ids = append(ids, li.ID)
		}
		_, err = m.p.client.RemoveLines(ctx, cart.ID, ids)
	}
	return err
}
