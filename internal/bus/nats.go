package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/opensource-finance/heron/internal/domain"
)

// subjectRoot prefixes every NATS subject Heron publishes on.
const subjectRoot = "heron."

// NATSBus is the Pro tier event bus. Events are JSON envelopes on subjects
// under "heron.". With a queue group configured, each event reaches one
// subscriber of the group, so replicas share the audit work.
type NATSBus struct {
	conn       *nats.Conn
	queueGroup string
}

type natsSubscription struct {
	topic string
	sub   *nats.Subscription
}

// NewNATSBus connects to cfg.NATSUrl, retrying up to NATSMaxReconnects times.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = nats.DefaultURL
	}
	if cfg.NATSMaxReconnects <= 0 {
		cfg.NATSMaxReconnects = 10
	}
	if cfg.NATSReconnectWait <= 0 {
		cfg.NATSReconnectWait = 5
	}
	wait := time.Duration(cfg.NATSReconnectWait) * time.Second

	conn, err := connect(cfg.NATSUrl, wait, cfg.NATSMaxReconnects, natsOptions(cfg, wait))
	if err != nil {
		return nil, err
	}

	slog.Info("NATS connected",
		"url", conn.ConnectedUrl(),
		"server_id", conn.ConnectedServerId(),
		"queue_group", cfg.NATSQueueGroup,
	)

	return &NATSBus{
		conn:       conn,
		queueGroup: cfg.NATSQueueGroup,
	}, nil
}

func natsOptions(cfg domain.EventBusConfig, wait time.Duration) []nats.Option {
	opts := []nats.Option{
		nats.Name("heron"),
		nats.MaxReconnects(cfg.NATSMaxReconnects),
		nats.ReconnectWait(wait),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err, "will_reconnect", !nc.IsClosed())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			slog.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			slog.Error("NATS error", "error", err, "subject", subject)
		}),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}
	return opts
}

func connect(url string, wait time.Duration, attempts int, opts []nats.Option) (*nats.Conn, error) {
	var err error
	for i := 1; i <= attempts; i++ {
		var conn *nats.Conn
		if conn, err = nats.Connect(url, opts...); err == nil {
			return conn, nil
		}
		slog.Warn("NATS connection attempt failed",
			"attempt", i,
			"max_attempts", attempts,
			"error", err,
		)
		if i < attempts {
			time.Sleep(wait)
		}
	}
	return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", attempts, err)
}

// Publish sends the event on the topic's subject.
func (b *NATSBus) Publish(ctx context.Context, topic string, payload []byte) error {
	msg, err := newMessage(ctx, topic, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return b.conn.Publish(subjectFor(topic), data)
}

// Subscribe registers handler on the topic's subject, joining the queue group when one is configured.
func (b *NATSBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if topic == "" {
		return nil, errNoTopic
	}

	deliver := func(m *nats.Msg) {
		var msg domain.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			slog.Error("failed to unmarshal NATS message", "subject", m.Subject, "error", err)
			return
		}
		if err := handler(ctx, &msg); err != nil {
			slog.Error("event handler failed",
				"subject", m.Subject,
				"message_id", msg.ID,
				"error", err,
			)
		}
	}

	var (
		natsSub *nats.Subscription
		err     error
	)
	if b.queueGroup != "" {
		natsSub, err = b.conn.QueueSubscribe(subjectFor(topic), b.queueGroup, deliver)
	} else {
		natsSub, err = b.conn.Subscribe(subjectFor(topic), deliver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	return &natsSubscription{topic: topic, sub: natsSub}, nil
}

// Ping flushes the connection to confirm the server is reachable.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return errors.New("NATS not connected")
	}
	return b.conn.FlushWithContext(ctx)
}

// Close drains the subscriptions so in-flight events finish, then closes the connection.
func (b *NATSBus) Close() error {
	if b.conn.IsClosed() {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}

// subjectFor maps a topic to its NATS subject under subjectRoot.
func subjectFor(topic string) string {
	if strings.HasPrefix(topic, subjectRoot) {
		return topic
	}
	return subjectRoot + topic
}

// Unsubscribe removes the subscription.
func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

// Topic returns the subscribed topic.
func (s *natsSubscription) Topic() string {
	return s.topic
}
