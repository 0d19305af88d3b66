package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/irsalhamdi/storefront/api/web"
	"github.com/irsalhamdi/storefront/metrics"
	"github.com/zenazn/goji/web/mutil"
)

// Metrics counts requests per route template and status.
func Metrics(m *metrics.Metrics) web.Middleware {
	mw := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			name := routeName(r)

			start := time.Now()
			lw := mutil.WrapWriter(w)
			err := handler(ctx, lw, r)

			m.Requests.WithLabelValues(name, strconv.Itoa(lw.Status())).Inc()
			m.LatencyMS.WithLabelValues(name).Observe(float64(time.Since(start).Milliseconds()))
			return err
		}
		return h
	}
	return mw
}
