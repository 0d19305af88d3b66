package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/irsalhamdi/storefront/core/bridge"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSink(t *testing.T) {
	w := &fakeWriter{}
	bus := bridge.New(quietLog())
	sink := NewSink(w, quietLog())
	sink.Attach(bus)

	bus.Publish(bridge.ItemAddedEvent{Quantity: 1})
	bus.Publish(bridge.CheckoutSucceededEvent{Provider: "invoice", SessionID: "ps_1", TransactionID: "tx_1", Amount: decimal.RequireFromString("35.5")})
	bus.Publish(bridge.CheckoutFailedEvent{Provider: "invoice", SessionID: "ps_2", Error: "expired", Err: errors.New("expired")})

	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 exported events, got %d", len(w.msgs))
	}

	var got struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"provider": "invoice", "sessionId": "ps_1", "transactionId": "tx_1", "amount": "35.5"}
	if got.Type != "checkout-succeeded" || string(w.msgs[0].Key) != "ps_1" {
		t.Fatalf("unexpected message %s: %s", w.msgs[0].Key, w.msgs[0].Value)
	}
	if diff := cmp.Diff(want, got.Data); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}

	if err := sink.Close(); err != nil || !w.closed {
		t.Fatalf("expected writer to be closed, err=%v", err)
	}
	bus.Publish(bridge.CheckoutFailedEvent{Provider: "invoice"})
	if len(w.msgs) != 2 {
		t.Fatal("closed sink must not export")
	}
}

func TestSinkWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	bus := bridge.New(quietLog())
	NewSink(w, quietLog()).Attach(bus)

	// A failed write is logged and does not reach the publisher.
	bus.Publish(bridge.CheckoutFailedEvent{Provider: "invoice", SessionID: "ps_1"})
	if len(w.msgs) != 1 {
		t.Fatalf("expected write attempt, got %d", len(w.msgs))
	}
}
