package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Message headers set on every published event.
const (
	HeaderContentType = "Content-Type"
	HeaderSentAt      = "Cfgreg-Sent-At"
)

// NewPublisher returns a NATS publisher for url, or a NoopPublisher when
// url is empty.
func NewPublisher(url string, opts ...nats.Option) (Publisher, error) {
	if url == "" {
		return NoopPublisher{}, nil
	}
	return NewNATSPublisher(url, opts...)
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
func (NoopPublisher) Close() error                               { return nil }

// NATSPublisher publishes JSON-encoded events on NATS subjects named by
// their topic.
type NATSPublisher struct {
	conn *nats.Conn
	now  func() time.Time
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, append([]nats.Option{nats.Name("cfgregistry")}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc, now: time.Now}, nil
}

// Publish encodes event as JSON and sends it on topic, stamped with the
// send time.
func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := nats.NewMsg(topic)
	msg.Data = data
	msg.Header.Set(HeaderContentType, "application/json")
	msg.Header.Set(HeaderSentAt, p.now().UTC().Format(time.RFC3339Nano))
	return p.conn.PublishMsg(msg)
}

// Close flushes pending publishes and closes the connection.
func (p *NATSPublisher) Close() error {
	err := p.conn.FlushTimeout(2 * time.Second)
	p.conn.Close()
	return err
}
