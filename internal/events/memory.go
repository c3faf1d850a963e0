package events

import (
	"context"
	"log/slog"
	"sync"
)

type memorySub struct {
	topic string
	ch    chan Event
	done  chan struct{}
	once  sync.Once
}

// MemoryBus is an in-process Bus.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
	buffer int
	logger *slog.Logger
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus creates an in-process bus whose subscriptions buffer up to
// buffer events. A non-positive buffer uses DefaultBufferSize.
func NewMemoryBus(buffer int, logger *slog.Logger) *MemoryBus {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBus{
		subs:   make(map[string]map[*memorySub]struct{}),
		buffer: buffer,
		logger: logger.With(slog.String("component", "memory_event_bus")),
	}
}

// Publish implements Bus.Publish. Subscribers with a full buffer miss e.
func (b *MemoryBus) Publish(_ context.Context, topic string, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	for sub := range b.subs[topic] {
		select {
		case sub.ch <- e:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				slog.String("topic", topic),
				slog.String("job_id", e.JobID.String()))
		}
	}
	return nil
}

// Subscribe implements Bus.Subscribe.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	sub := &memorySub{
		topic: topic,
		ch:    make(chan Event, b.buffer),
		done:  make(chan struct{}),
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySub]struct{})
	}
	b.subs[topic][sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			b.remove(sub)
		case <-sub.done:
		}
	}()

	return &Subscription{events: sub.ch, closer: func() { b.remove(sub) }}, nil
}

func (b *MemoryBus) remove(sub *memorySub) {
	sub.once.Do(func() {
		close(sub.done)
		b.mu.Lock()
		delete(b.subs[sub.topic], sub)
		close(sub.ch)
		b.mu.Unlock()
	})
}

// Close ends every subscription and rejects further use.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	var all []*memorySub
	for _, subs := range b.subs {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range all {
		b.remove(sub)
	}
	return nil
}
