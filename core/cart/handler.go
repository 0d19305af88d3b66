package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/storefront/api/web"
	"github.com/irsalhamdi/storefront/api/weberr"
	"github.com/irsalhamdi/storefront/core/catalog"
	"github.com/irsalhamdi/storefront/validate"
)

type ItemNew struct {
	ItemID   string `json:"itemId" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

type ItemUp struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

type VisibilityUp struct {
	Open *bool `json:"open"`
}

func HandleShow(eng *Engine) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.Respond(ctx, w, eng.Snapshot(), http.StatusOK)
	}
}

// HandleCreateItem adds one unit unless a quantity is given.
func HandleCreateItem(eng *Engine, store *catalog.Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.BadRequest(err)
		}
		if in.Quantity == 0 {
			in.Quantity = 1
		}

		it, err := store.Fetch(in.ItemID)
		if err != nil {
			return weberr.NotFound(err, weberr.WithField("item_id", in.ItemID))
		}

		eng.AddItem(it, in.Quantity)
		return web.Respond(ctx, w, eng.Snapshot(), http.StatusOK)
	}
}

// HandleUpdateItem removes the item when the quantity is zero.
func HandleUpdateItem(eng *Engine) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")

		var in ItemUp
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.BadRequest(err)
		}

		if _, ok := eng.Get(id); !ok {
			return weberr.NotFound(errors.New("item not in cart"), weberr.WithField("item_id", id))
		}

		eng.SetQuantity(id, in.Quantity)
		return web.Respond(ctx, w, eng.Snapshot(), http.StatusOK)
	}
}

func HandleDeleteItem(eng *Engine) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		eng.RemoveItem(web.Param(r, "id"))
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleDelete(eng *Engine) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		eng.Clear()
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleVisibility sets the open flag, or flips it when none is given.
func HandleVisibility(eng *Engine) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in VisibilityUp
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if in.Open == nil {
			eng.Toggle()
		} else {
			eng.SetOpen(*in.Open)
		}
		return web.Respond(ctx, w, eng.Snapshot(), http.StatusOK)
	}
}
