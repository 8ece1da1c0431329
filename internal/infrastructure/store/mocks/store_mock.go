package mocks

import (
	"context"
	"sync"
	"time"
)

// MockStore is an in-memory store.Store that records every call for assertions
type MockStore struct {
	mu      sync.Mutex
	entries map[string]MockEntry

	// For tracking calls in tests
	GetCalls    []string
	SetCalls    []SetCall
	DeleteCalls []string

	GetErr    error
	SetErr    error
	DeleteErr error
}

// MockEntry is a stored value with its expiry
type MockEntry struct {
	Value     []byte
	ExpiresAt time.Time
}

// SetCall records parameters passed to Set
type SetCall struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
}

// NewMockStore creates a new MockStore
func NewMockStore() *MockStore {
	return &MockStore{entries: make(map[string]MockEntry)}
}

// Get returns the stored value; expiry is not evaluated so tests stay clock-free
func (m *MockStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls = append(m.GetCalls, key)
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (m *MockStore) Set(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCalls = append(m.SetCalls, SetCall{Key: key, Value: value, ExpiresAt: expiresAt})
	if m.SetErr != nil {
		return m.SetErr
	}
	m.entries[key] = MockEntry{Value: value, ExpiresAt: expiresAt}
	return nil
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, key)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.entries, key)
	return nil
}

// Put seeds an entry without recording a call
func (m *MockStore) Put(key string, value []byte, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = MockEntry{Value: value, ExpiresAt: expiresAt}
}

// Entry returns the raw entry for key
func (m *MockStore) Entry(key string) (MockEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok
}

// LastSet returns the most recent Set call
func (m *MockStore) LastSet() (SetCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SetCalls) == 0 {
		return SetCall{}, false
	}
	return m.SetCalls[len(m.SetCalls)-1], true
}

// Reset clears entries and recorded calls
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]MockEntry)
	m.GetCalls = nil
	m.SetCalls = nil
	m.DeleteCalls = nil
	m.GetErr = nil
	m.SetErr = nil
	m.DeleteErr = nil
}
