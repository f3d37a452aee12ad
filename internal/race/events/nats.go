package events

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATSPublisher forwards events to a NATS server so out-of-process observers
// can follow race state. Core NATS publish semantics match the bus contract:
// fire-and-forget, no delivery guarantee.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("coderace"))
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn}, nil
}

// Publish marshals the payload as JSON and publishes it on the topic's
// subject. Failures are logged and dropped.
func (p *NATSPublisher) Publish(topic Topic, payload any) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(Event{Topic: topic, Payload: payload})
	if err != nil {
		log.Printf("events: marshal %s payload: %v", topic, err)
		return
	}
	if err := p.conn.Publish(SubjectFor(topic), data); err != nil {
		log.Printf("events: publish %s: %v", topic, err)
	}
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// SubjectFor maps a topic to its NATS subject. Colons are not valid in
// subject tokens, so "games:update" publishes as "coderace.games.update".
func SubjectFor(topic Topic) string {
	return "coderace." + strings.ReplaceAll(string(topic), ":", ".")
}

// Fanout publishes every event to each wrapped publisher in order.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(topic Topic, payload any) {
	for _, p := range f {
		if p != nil {
			p.Publish(topic, payload)
		}
	}
}
