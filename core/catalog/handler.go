package catalog

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/irsalhamdi/storefront/api/web"
	"github.com/irsalhamdi/storefront/api/weberr"
)

func HandleList(store *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		q := r.URL.Query()

		f := Filter{Category: q.Get("category")}
		if f.Category != "" && f.Category != CategoryNew && f.Category != CategoryPopular {
			return weberr.BadRequest(errors.New("unknown category"), weberr.WithFields(map[string]interface{}{
				"category": f.Category,
			}))
		}
		if g := q.Get("generation"); g != "" {
			n, err := strconv.Atoi(g)
			if err != nil {
				return weberr.BadRequest(err)
			}
			f.Generation = n
		}
		if s := q.Get("inStock"); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return weberr.BadRequest(err)
			}
			f.InStockOnly = b
		}

		return web.Respond(ctx, w, store.List(f), http.StatusOK)
	}
}

func HandleShow(store *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")

		it, err := store.Fetch(id)
		if err != nil {
			return weberr.NotFound(err, weberr.WithField("item_id", id))
		}
		return web.Respond(ctx, w, it, http.StatusOK)
	}
}
