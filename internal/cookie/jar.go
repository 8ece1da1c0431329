// Package cookie persists client cookies (name, value, path, absolute expiry)
// in a store.Store so a terminal session behaves like a browser tab.
package cookie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/internal/infrastructure/store"
)

const keyPrefix = "cookie:"

var ErrEmptyName = errors.New("cookie name is required")

// Cookie is one persisted cookie. A zero Expires makes it a session cookie.
type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires,omitempty"`
}

// Expired reports whether the cookie is past its absolute expiry
func (c Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}

// Jar reads and writes cookies
type Jar interface {
	Get(ctx context.Context, name string) (Cookie, bool, error)
	Set(ctx context.Context, c Cookie) error
	Remove(ctx context.Context, name string) error
}

// StoreJar is a Jar backed by a store.Store
type StoreJar struct {
	store store.Store
	now   store.Clock
}

func NewStoreJar(st store.Store) *StoreJar {
	return NewStoreJarWithClock(st, time.Now)
}

func NewStoreJarWithClock(st store.Store, now store.Clock) *StoreJar {
	return &StoreJar{store: st, now: now}
}

// Get returns the cookie unless it is missing or expired
func (j *StoreJar) Get(ctx context.Context, name string) (Cookie, bool, error) {
	if name == "" {
		return Cookie{}, false, ErrEmptyName
	}

	raw, ok, err := j.store.Get(ctx, keyPrefix+name)
	if err != nil {
		return Cookie{}, false, fmt.Errorf("failed to read cookie %s: %w", name, err)
	}
	if !ok {
		return Cookie{}, false, nil
	}

	var c Cookie
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cookie{}, false, fmt.Errorf("failed to decode cookie %s: %w", name, err)
	}
	if c.Expired(j.now()) {
		return Cookie{}, false, nil
	}
	return c, true, nil
}

// Set writes the cookie; the storage entry expires with it
func (j *StoreJar) Set(ctx context.Context, c Cookie) error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if c.Path == "" {
		c.Path = "/"
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode cookie %s: %w", c.Name, err)
	}
	if err := j.store.Set(ctx, keyPrefix+c.Name, raw, c.Expires); err != nil {
		return fmt.Errorf("failed to write cookie %s: %w", c.Name, err)
	}
	return nil
}

func (j *StoreJar) Remove(ctx context.Context, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if err := j.store.Delete(ctx, keyPrefix+name); err != nil {
		return fmt.Errorf("failed to remove cookie %s: %w", name, err)
	}
	return nil
}

var _ Jar = (*StoreJar)(nil)
