package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// RedisBus is a Bus over Redis pub/sub, so events published by a worker in
// one process reach websocket subscribers in another.
type RedisBus struct {
	client goredis.UniversalClient
	prefix string
	buffer int
	logger *slog.Logger
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus creates a bus on client. Topics are namespaced under
// "inkwell:events:".
func NewRedisBus(client goredis.UniversalClient, buffer int, logger *slog.Logger) *RedisBus {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{
		client: client,
		prefix: "inkwell:events:",
		buffer: buffer,
		logger: logger.With(slog.String("component", "redis_event_bus")),
	}
}

func (b *RedisBus) channel(topic string) string { return b.prefix + topic }

// Publish implements Bus.Publish.
func (b *RedisBus) Publish(ctx context.Context, topic string, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events/redis: encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(topic), data).Err(); err != nil {
		return fmt.Errorf("events/redis: publish: %w", err)
	}
	return nil
}

// Subscribe implements Bus.Subscribe. It returns once Redis has confirmed
// the subscription.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, b.channel(topic))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("events/redis: subscribe: %w", err)
	}

	out := make(chan Event, b.buffer)
	done := make(chan struct{})
	var once sync.Once
	closer := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				closer()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					b.logger.Warn("ignoring malformed event",
						slog.String("topic", topic),
						slog.String("error", err.Error()))
					continue
				}
				select {
				case out <- e:
				default:
					b.logger.Warn("dropping event for slow subscriber",
						slog.String("topic", topic),
						slog.String("job_id", e.JobID.String()))
				}
			}
		}
	}()

	return &Subscription{events: out, closer: closer}, nil
}
