// Package events is the in-process signal bus between the client stores.
// Logout publishes SessionEnded once; every store that caches per-user state
// subscribes to it instead of relying on call sites to clear each cache.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventSessionStarted = "SessionStarted"
	EventSessionEnded   = "SessionEnded"
)

// Session end reasons
const (
	ReasonLogout       = "logout"
	ReasonExpired      = "expired"
	ReasonInvalidToken = "invalid_token"
)

// Event is the envelope delivered to handlers and sinks
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"event_type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type SessionStarted struct {
	UserID    string    `json:"user_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

type SessionEnded struct {
	UserID  string    `json:"user_id,omitempty"`
	Reason  string    `json:"reason"`
	EndedAt time.Time `json:"ended_at"`
}

// Handler reacts to one event. Returned errors are logged, never propagated
// to the publisher.
type Handler func(ctx context.Context, event Event) error

// Sink receives every published event after local dispatch (e.g. Kafka)
type Sink interface {
	Publish(ctx context.Context, key string, event any) error
}

// Publisher is what stores depend on
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any)
}

// Bus dispatches events synchronously, in subscription order
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	sinks    []Sink
	logger   *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers handler for eventType
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("handler subscribed", zap.String("event_type", eventType))
}

// AddSink forwards every event to sink
func (b *Bus) AddSink(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, sink)
}

// Publish delivers the event to all handlers before returning
func (b *Bus) Publish(ctx context.Context, eventType string, data any) {
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[eventType]...)
	sinks := append([]Sink(nil), b.sinks...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := b.dispatch(ctx, h, event); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", eventType),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
	}

	for _, sink := range sinks {
		if err := sink.Publish(ctx, eventType, event); err != nil {
			b.logger.Warn("failed to forward event to sink",
				zap.String("event_type", eventType),
				zap.Error(err),
			)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, event)
}

// Nop discards events
type Nop struct{}

func (Nop) Publish(context.Context, string, any) {}

var _ Publisher = (*Bus)(nil)
