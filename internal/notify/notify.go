// Package notify publishes email and SMS notifications to the message bus.
// Sending never blocks the HTTP response and never fails it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/config"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/obs"
)

// TypeEmail is the only message type the events processor accepts from here.
const TypeEmail = "email"

// Message is the bus payload consumed by the events processor.
type Message struct {
	Type     string         `json:"type"`
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
	SentAt   time.Time      `json:"sentAt"`
}

// Publisher delivers one message.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

const defaultSendTimeout = 10 * time.Second

// Bus sends messages in the background.
type Bus struct {
	pub     Publisher
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewBus wraps pub. A nil publisher logs messages instead.
func NewBus(pub Publisher) *Bus {
	if pub == nil {
		pub = LogPublisher{}
	}
	return &Bus{pub: pub, timeout: defaultSendTimeout, now: time.Now}
}

// Send publishes msg on a goroutine detached from the request's
// cancellation. Failures are logged.
func (b *Bus) Send(ctx context.Context, msg Message) {
	if msg.SentAt.IsZero() {
		msg.SentAt = b.now().UTC()
	}
	ctx = context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		if err := b.pub.Publish(ctx, msg); err != nil {
			obs.Warn("notification_failed", map[string]any{
				"request_id": obs.RequestIDFromContext(ctx),
				"type":       msg.Type,
				"template":   msg.Template,
				"error":      err.Error(),
			})
		}
	}()
}

// Wait blocks until in-flight sends finish. Used on shutdown.
func (b *Bus) Wait() { b.wg.Wait() }

// RedisPublisher publishes JSON messages on a Redis pub/sub channel.
type RedisPublisher struct {
	client *redis.Client
	topic  string
}

// NewRedisPublisher connects lazily to cfg.RedisAddr.
func NewRedisPublisher(cfg config.Notify) *RedisPublisher {
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}),
		topic: cfg.Topic,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode: %w", err)
	}
	if err := p.client.Publish(ctx, p.topic, payload).Err(); err != nil {
		return fmt.Errorf("notify: publish %s: %w", p.topic, err)
	}
	return nil
}

// Ping checks the connection; used by readiness.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Close() error { return p.client.Close() }

// LogPublisher writes messages to the log. Used when no bus is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, msg Message) error {
	obs.Info("notification", map[string]any{
		"request_id": obs.RequestIDFromContext(ctx),
		"type":       msg.Type,
		"to":         msg.To,
		"template":   msg.Template,
	})
	return nil
}

// Recorder keeps published messages in memory.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
	Err  error
}

func (r *Recorder) Publish(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.Err
}

// Messages returns a copy of what was published.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}
