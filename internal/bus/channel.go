package bus

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/opensource-finance/heron/internal/domain"
)

// ChannelBus is the in-process event bus of the Community tier. Each
// subscription owns a buffered channel drained by one goroutine, so a
// subscriber sees its topic's events in publish order. Delivery is best
// effort: when a subscriber's buffer is full the event is dropped for it.
type ChannelBus struct {
	mu         sync.RWMutex
	bufferSize int
	topics     map[string][]*channelSubscription
	closed     bool

	// handlers tracks subscription goroutines so Close can wait for in-flight events.
	handlers sync.WaitGroup
}

type channelSubscription struct {
	id      string
	topic   string
	handler domain.MessageHandler
	inbox   chan *domain.Message
	ctx     context.Context
	cancel  context.CancelFunc
	bus     *ChannelBus
}

// NewChannelBus creates a channel bus. bufferSize is per subscriber; zero means 1000.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		bufferSize: bufferSize,
		topics:     make(map[string][]*channelSubscription),
	}
}

// Publish fans the event out to the topic's subscribers without blocking.
func (b *ChannelBus) Publish(ctx context.Context, topic string, payload []byte) error {
	msg, err := newMessage(ctx, topic, payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errClosed
	}

	for _, sub := range b.topics[topic] {
		select {
		case sub.inbox <- msg:
		default:
			slog.Warn("event dropped, subscriber buffer full",
				"topic", topic,
				"message_id", msg.ID,
				"subscription_id", sub.id,
			)
		}
	}
	return nil
}

// Subscribe registers handler for topic. The handler runs until ctx is done,
// the subscription is removed, or the bus is closed.
func (b *ChannelBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if topic == "" {
		return nil, errNoTopic
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &channelSubscription{
		id:      strings.ToLower(ulid.Make().String()),
		topic:   topic,
		handler: handler,
		inbox:   make(chan *domain.Message, b.bufferSize),
		ctx:     subCtx,
		cancel:  cancel,
		bus:     b,
	}
	b.topics[topic] = append(b.topics[topic], sub)

	b.handlers.Add(1)
	go sub.run()

	return sub, nil
}

func (s *channelSubscription) run() {
	defer s.bus.handlers.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.inbox:
			if err := s.handler(s.ctx, msg); err != nil {
				slog.Error("event handler failed",
					"topic", msg.Topic,
					"message_id", msg.ID,
					"error", err,
				)
			}
		}
	}
}

// Ping reports whether the bus still accepts events.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errClosed
	}
	return nil
}

// Close stops every subscription and waits for running handlers to return.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, subs := range b.topics {
		for _, sub := range subs {
			sub.cancel()
		}
	}
	b.topics = make(map[string][]*channelSubscription)
	b.mu.Unlock()

	b.handlers.Wait()
	return nil
}

func (b *ChannelBus) remove(sub *channelSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[sub.topic]
	for i, s := range subs {
		if s == sub {
			b.topics[sub.topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[sub.topic]) == 0 {
		delete(b.topics, sub.topic)
	}
}

// Unsubscribe stops delivery to this subscription.
func (s *channelSubscription) Unsubscribe() error {
	s.cancel()
	s.bus.remove(s)
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSubscription) Topic() string {
	return s.topic
}
