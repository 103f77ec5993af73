// Package event provides a pluggable pub/sub bus (in-process or
// NATS-backed) and a host.EventSink adapter publishing log_event and
// log_message emissions onto it.
package event

import (
	"context"
	"fmt"

	"github.com/wyrdbound/grimoire/config"
	"github.com/wyrdbound/grimoire/host"
)

type EventBus interface {
	Publish(topic string, payload any) error
	Subscribe(ctx context.Context, topic string, handler func(payload any))
}

// topicEvent and topicMessage are the well-known topics LogEvent and
// LogMessage publish to. A caller wanting per-flow isolation can
// Subscribe to these and filter on the flow_id field in the payload.
const (
	topicEvent   = "grimoire.event"
	topicMessage = "grimoire.message"
)

// BusSink adapts an EventBus to host.EventSink, publishing every
// LogEvent/LogMessage call onto the bus so a caller (CLI, MCP server,
// test harness) can Subscribe and observe flow progress without the
// engine knowing anything about the transport.
type BusSink struct {
	Bus EventBus
}

var _ host.EventSink = (*BusSink)(nil)

func (s *BusSink) LogEvent(_ context.Context, eventType string, data map[string]any) {
	payload := map[string]any{"type": eventType}
	for k, v := range data {
		payload[k] = v
	}
	_ = s.Bus.Publish(topicEvent, payload)
}

func (s *BusSink) LogMessage(_ context.Context, message string) {
	_ = s.Bus.Publish(topicMessage, message)
}

// NewInProcEventBus returns a new in-memory event bus. Used when event config driver=="memory" or omitted.
func NewInProcEventBus() *WatermillEventBus {
	return NewWatermillInMemBus()
}

// NewEventBusFromConfig returns an EventBus based on config. Supported: memory (default), nats (with url).
// Unknown drivers fail cleanly. See docs/config.schema.json for config schema.
func NewEventBusFromConfig(cfg *config.EventConfig) (EventBus, error) {
	if cfg == nil || cfg.Driver == "" || cfg.Driver == "memory" {
		return NewWatermillInMemBus(), nil
	}
	switch cfg.Driver {
	case "nats":
		if cfg.URL == "" {
			return nil, fmt.Errorf("NATS driver requires url")
		}
		bus, err := NewWatermillNATSBUS("grimoire", "grimoire-client", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS event bus: %w", err)
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("unsupported event bus driver: %s", cfg.Driver)
	}
}
