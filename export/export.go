// Package export forwards checkout events to kafka.
package export

import (
	"context"
	"encoding/json"
	"time"

	"github.com/irsalhamdi/storefront/core/bridge"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter returns an async writer. Delivery errors are reported through
// the logger instead of the publishing goroutine.
func NewWriter(brokers []string, topic string, log logrus.FieldLogger) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           100 * time.Millisecond,
		Async:                  true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.WithError(err).WithField("messages", len(msgs)).Error("exporting checkout events")
			}
		},
	}
}

type envelope struct {
	Type bridge.Topic `json:"type"`
	At   time.Time    `json:"at"`
	Data bridge.Event `json:"data"`
}

type Sink struct {
	w      messageWriter
	log    logrus.FieldLogger
	unsubs []func()
}

func NewSink(w messageWriter, log logrus.FieldLogger) *Sink {
	return &Sink{w: w, log: log.WithField("component", "export")}
}

// Attach subscribes the sink to checkout outcomes.
func (s *Sink) Attach(bus *bridge.Bus) {
	s.unsubs = append(s.unsubs,
		bus.Subscribe(bridge.CheckoutSucceeded, s.write),
		bus.Subscribe(bridge.CheckoutFailed, s.write),
	)
}

func (s *Sink) Close() error {
	for _, u := range s.unsubs {
		u()
	}
	s.unsubs = nil
	return s.w.Close()
}

func (s *Sink) write(evt bridge.Event) {
	var key string
	switch e := evt.(type) {
	case bridge.CheckoutSucceededEvent:
		key = e.SessionID
	case bridge.CheckoutFailedEvent:
		key = e.SessionID
	}

	now := time.Now().UTC()
	data, err := json.Marshal(envelope{Type: evt.Topic(), At: now, Data: evt})
	if err != nil {
		s.log.WithError(err).Error("encoding event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	msg := kafka.Message{Key: []byte(key), Value: data, Time: now}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		s.log.WithError(err).WithField("topic", evt.Topic()).Error("writing event")
	}
}
