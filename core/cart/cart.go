package cart

import (
	"sync"

	"github.com/irsalhamdi/storefront/core/bridge"
	"github.com/irsalhamdi/storefront/core/catalog"
	"github.com/shopspring/decimal"
)

type Item struct {
	catalog.Item
	Quantity int `json:"quantity"`
}

func (it Item) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Cart struct {
	Items      []Item          `json:"items"`
	Open       bool            `json:"open"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// Engine is the in-memory cart. Line items keep the order in which their
// item was first added. Totals are derived on every read.
//
// Events are queued under the same lock as the change they describe and
// published by one goroutine at a time, so subscribers see changes in the
// order they were applied. A subscriber that changes the cart gets the
// resulting event after the current one has reached every subscriber.
type Engine struct {
	bus *bridge.Bus

	mu       sync.Mutex
	open     bool
	order    []string
	items    map[string]*Item
	queue    []bridge.Event
	flushing bool
}

func NewEngine(bus *bridge.Bus) *Engine {
	return &Engine{
		bus:   bus,
		items: make(map[string]*Item),
	}
}

// AddItem ignores non-positive quantities and items without an id.
func (e *Engine) AddItem(item catalog.Item, quantity int) {
	if quantity <= 0 || item.ID == "" {
		return
	}

	e.mu.Lock()
	if li, ok := e.items[item.ID]; ok {
		li.Quantity += quantity
	} else {
		e.items[item.ID] = &Item{Item: item, Quantity: quantity}
		e.order = append(e.order, item.ID)
	}
	e.open = true
	e.emit(bridge.ItemAddedEvent{Item: item, Quantity: quantity})
	e.mu.Unlock()

	e.flush()
}

func (e *Engine) SetQuantity(itemID string, quantity int) {
	if quantity <= 0 {
		e.RemoveItem(itemID)
		return
	}

	e.mu.Lock()
	if li, ok := e.items[itemID]; ok {
		li.Quantity = quantity
		e.emit(bridge.ItemUpdatedEvent{ItemID: itemID, Quantity: quantity})
	}
	e.mu.Unlock()

	e.flush()
}

func (e *Engine) RemoveItem(itemID string) {
	e.mu.Lock()
	_, ok := e.items[itemID]
	if ok {
		delete(e.items, itemID)
		for i, id := range e.order {
			if id == itemID {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
		e.emit(bridge.ItemRemovedEvent{ItemID: itemID})
	}
	e.mu.Unlock()

	e.flush()
}

// Clear drops every line item. Visibility is left alone.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.items = make(map[string]*Item)
	e.order = nil
	e.emit(bridge.CartClearedEvent{})
	e.mu.Unlock()

	e.flush()
}

func (e *Engine) Toggle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = !e.open
	return e.open
}

func (e *Engine) SetOpen(open bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = open
}

func (e *Engine) Open() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

func (e *Engine) Get(itemID string) (Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	li, ok := e.items[itemID]
	if !ok {
		return Item{}, false
	}
	return *li, true
}

func (e *Engine) Items() []Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.itemsLocked()
}

func (e *Engine) itemsLocked() []Item {
	out := make([]Item, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, *e.items[id])
	}
	return out
}

func (e *Engine) TotalItems() int {
	return TotalItems(e.Items())
}

func (e *Engine) TotalPrice() decimal.Decimal {
	return TotalPrice(e.Items())
}

// Snapshot returns the line items, visibility and totals read under a
// single lock.
func (e *Engine) Snapshot() Cart {
	e.mu.Lock()
	items := e.itemsLocked()
	open := e.open
	e.mu.Unlock()

	return Cart{
		Items:      items,
		Open:       open,
		TotalItems: TotalItems(items),
		TotalPrice: TotalPrice(items),
	}
}

// ClearOnSuccess empties the cart whenever a checkout completes.
func (e *Engine) ClearOnSuccess() (unsubscribe func()) {
	return e.bus.Subscribe(bridge.CheckoutSucceeded, func(bridge.Event) {
		e.Clear()
	})
}

// emit queues evt. e.mu must be held.
func (e *Engine) emit(evt bridge.Event) {
	if e.bus != nil {
		e.queue = append(e.queue, evt)
	}
}

// flush publishes queued events unless another call is already doing so.
func (e *Engine) flush() {
	e.mu.Lock()
	if e.flushing {
		e.mu.Unlock()
		return
	}
	e.flushing = true

	for len(e.queue) > 0 {
		evt := e.queue[0]
		e.queue = e.queue[1:]

		e.mu.Unlock()
		e.publish(evt)
		e.mu.Lock()
	}

	e.flushing = false
	e.mu.Unlock()
}

func (e *Engine) publish(evt bridge.Event) {
	e.bus.Publish(evt)
}
