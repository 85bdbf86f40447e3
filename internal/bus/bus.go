// Package bus carries claim and policy events between the services and the worker.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/opensource-finance/heron/internal/domain"
	"go.opentelemetry.io/otel/trace"
)

var (
	errNoTopic = errors.New("topic is required")
	errClosed  = errors.New("bus is closed")
)

// New creates the event bus named by cfg.Type: "channel" or "nats".
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil
	case "nats":
		return NewNATSBus(cfg)
	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// newMessage builds the envelope for payload. The trace id of the span in ctx,
// if any, rides along in the metadata so audit entries can be tied to requests.
func newMessage(ctx context.Context, topic string, payload []byte) (*domain.Message, error) {
	if topic == "" {
		return nil, errNoTopic
	}
	msg := &domain.Message{
		ID:        strings.ToLower(ulid.Make().String()),
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		msg.Metadata[domain.MetaTraceID] = sc.TraceID().String()
	}
	return msg, nil
}

// PublishJSON encodes v and publishes it on topic.
func PublishJSON(ctx context.Context, b domain.EventBus, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}
	return b.Publish(ctx, topic, payload)
}

// Decode unmarshals a message payload into v.
func Decode(msg *domain.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s message %s: %w", msg.Topic, msg.ID, err)
	}
	return nil
}
