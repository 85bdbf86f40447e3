package domain

import (
	"context"
)

// EventBus carries claim, policy and notification events between the services
// and the worker. Community tier uses in-process channels, Pro tier uses NATS.
type EventBus interface {
	// Publish sends payload to every subscriber of topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the envelope every event travels in. IDs are lowercase ULIDs.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// MetaTraceID is the metadata key carrying the publisher's trace id.
const MetaTraceID = "trace_id"

// Subscription represents an active subscription.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `toml:"type"`

	// Channel settings (Community tier)
	ChannelBufferSize int `toml:"channel_buffer_size" split_words:"true"`

	// NATS settings (Pro tier)
	NATSUrl           string `toml:"nats_url" envconfig:"NATS_URL"`
	NATSToken         string `toml:"nats_token" envconfig:"NATS_TOKEN"`
	NATSMaxReconnects int    `toml:"nats_max_reconnects" envconfig:"NATS_MAX_RECONNECTS"`
	NATSReconnectWait int    `toml:"nats_reconnect_wait" envconfig:"NATS_RECONNECT_WAIT"` // seconds

	// NATSQueueGroup, when set, delivers each event to one subscriber of the
	// group across all replicas.
	NATSQueueGroup string `toml:"nats_queue_group" envconfig:"NATS_QUEUE_GROUP"`
}

// Topic names published by the claim and policy services.
const (
	TopicClaimSubmitted = "heron.claim.submitted"
	TopicClaimFlagged   = "heron.claim.flagged"
	TopicClaimDecided   = "heron.claim.decided"
	TopicPolicyApplied  = "heron.policy.applied"
	TopicPolicyDecided  = "heron.policy.decided"
	TopicNotification   = "heron.notification"
)

// ClaimEvent is the payload of claim topics.
type ClaimEvent struct {
	ClaimID      string      `json:"claimId"`
	ClaimNumber  string      `json:"claimNumber"`
	PolicyNumber string      `json:"policyNumber"`
	CustomerID   string      `json:"customerId"`
	Status       ClaimStatus `json:"status"`
	FraudScore   int         `json:"fraudScore"`
	Flagged      bool        `json:"flagged"`
	AssignedTo   string      `json:"assignedTo,omitempty"`
	Actor        string      `json:"actor,omitempty"`
	Action       string      `json:"action"`
}

// PolicyEvent is the payload of policy topics.
type PolicyEvent struct {
	PolicyID     string       `json:"policyId"`
	PolicyNumber string       `json:"policyNumber"`
	CustomerID   string       `json:"customerId"`
	Status       PolicyStatus `json:"status"`
	AssignedTo   string       `json:"assignedTo,omitempty"`
	Actor        string       `json:"actor,omitempty"`
	Action       string       `json:"action"`
}
