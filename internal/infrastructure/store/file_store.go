package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type fileEntry struct {
	Value     json.RawMessage `json:"value,omitempty"`
	Text      *string         `json:"text,omitempty"` // non-JSON payloads
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

func (e fileEntry) bytes() []byte {
	if e.Text != nil {
		return []byte(*e.Text)
	}
	return []byte(e.Value)
}

// FileStore persists entries as a single JSON document on disk. It plays the
// role browser local storage plays for the web storefront: one profile, one
// writer, last write wins.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  Clock
}

func NewFileStore(path string) (*FileStore, error) {
	return NewFileStoreWithClock(path, time.Now)
}

func NewFileStoreWithClock(path string, now Clock) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{path: path, now: now}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, false, err
	}
	entry, ok := entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.ExpiresAt != nil && expired(*entry.ExpiresAt, s.now()) {
		delete(entries, key)
		return nil, false, s.save(entries)
	}
	return entry.bytes(), true, nil
}

func (s *FileStore) Set(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	var entry fileEntry
	if json.Valid(value) {
		entry.Value = append(json.RawMessage(nil), value...)
	} else {
		text := string(value)
		entry.Text = &text
	}
	if !expiresAt.IsZero() {
		exp := expiresAt.UTC()
		entry.ExpiresAt = &exp
	}
	entries[key] = entry
	return s.save(entries)
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.save(entries)
}

func (s *FileStore) load() (map[string]fileEntry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]fileEntry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	entries := make(map[string]fileEntry)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode store file: %w", err)
	}
	return entries, nil
}

// save writes through a temp file and rename so a crash never leaves a
// truncated document behind.
func (s *FileStore) save(entries map[string]fileEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".store-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
