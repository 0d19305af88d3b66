package bridge

import (
	"github.com/irsalhamdi/storefront/core/catalog"
	"github.com/shopspring/decimal"
)

type ItemAddedEvent struct {
	Item     catalog.Item `json:"item"`
	Quantity int          `json:"quantity"`
}

func (ItemAddedEvent) Topic() Topic { return ItemAdded }

// ItemUpdatedEvent carries the quantity now stored for the item.
type ItemUpdatedEvent struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

func (ItemUpdatedEvent) Topic() Topic { return ItemUpdated }

type ItemRemovedEvent struct {
	ItemID string `json:"itemId"`
}

func (ItemRemovedEvent) Topic() Topic { return ItemRemoved }

type CartClearedEvent struct{}

func (CartClearedEvent) Topic() Topic { return CartCleared }

type CheckoutSucceededEvent struct {
	Provider      string          `json:"provider"`
	SessionID     string          `json:"sessionId"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
}

func (CheckoutSucceededEvent) Topic() Topic { return CheckoutSucceeded }

type CheckoutFailedEvent struct {
	Provider  string `json:"provider"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error"`
	Err       error  `json:"-"`
}

func (CheckoutFailedEvent) Topic() Topic { return CheckoutFailed }
