package mocks

import (
	"context"
	"sync"
)

// MockPublisher records published events
type MockPublisher struct {
	mu           sync.Mutex
	PublishCalls []PublishCall
}

// PublishCall records parameters passed to Publish
type PublishCall struct {
	EventType string
	Data      any
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, eventType string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishCalls = append(m.PublishCalls, PublishCall{EventType: eventType, Data: data})
}

// Types returns the published event types in order
func (m *MockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.PublishCalls))
	for _, c := range m.PublishCalls {
		types = append(types, c.EventType)
	}
	return types
}

// Last returns the most recent call
func (m *MockPublisher) Last() (PublishCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.PublishCalls) == 0 {
		return PublishCall{}, false
	}
	return m.PublishCalls[len(m.PublishCalls)-1], true
}
