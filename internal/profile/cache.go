// Package profile caches the current user's profile. The query only runs
// while a bearer token is held and a result stays fresh for five minutes.
package profile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/example/storefront/internal/apiclient"
	"github.com/example/storefront/internal/events"
	"github.com/example/storefront/internal/infrastructure/store"
)

const (
	CacheKey          = "current-user"
	DefaultStaleAfter = 5 * time.Minute
)

var (
	ErrDisabled        = errors.New("profile query disabled: not signed in")
	ErrUnauthenticated = errors.New("session is no longer valid, please sign in again")
)

// Fetcher loads the profile of the token holder
type Fetcher interface {
	Me(ctx context.Context) (*apiclient.User, error)
}

// Session is the slice of the session store the cache drives
type Session interface {
	Token() string
	SetCurrentUser(user *apiclient.User)
	HandleAuthFailure(ctx context.Context) error
}

type entry struct {
	User      apiclient.User `json:"user"`
	FetchedAt time.Time      `json:"fetchedAt"`
	TokenHash string         `json:"tokenHash"`
}

// Cache is the "current user" query
type Cache struct {
	mu      sync.Mutex
	current *entry

	api        Fetcher
	session    Session
	storage    store.Store
	group      singleflight.Group
	now        store.Clock
	staleAfter time.Duration
	logger     *zap.Logger
}

type Option func(*Cache)

func WithClock(now store.Clock) Option {
	return func(c *Cache) { c.now = now }
}

func WithStaleAfter(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.staleAfter = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache creates the cache. storage may be nil for an in-memory only cache.
func NewCache(api Fetcher, session Session, storage store.Store, opts ...Option) *Cache {
	c := &Cache{
		api:        api,
		session:    session,
		storage:    storage,
		now:        time.Now,
		staleAfter: DefaultStaleAfter,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the current user. Without a token it returns ErrDisabled and
// makes no request. A failed fetch while a token is held ends the session
// and returns ErrUnauthenticated.
func (c *Cache) Get(ctx context.Context) (*apiclient.User, error) {
	token := c.session.Token()
	if token == "" {
		return nil, ErrDisabled
	}
	hash := tokenHash(token)

	if e := c.fresh(ctx, hash); e != nil {
		u := e.User
		c.session.SetCurrentUser(&u)
		return &u, nil
	}

	v, err, shared := c.group.Do(CacheKey, func() (any, error) {
		return c.fetch(ctx, hash)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("profile fetch shared with concurrent caller")
	}
	u := *v.(*apiclient.User)
	return &u, nil
}

func (c *Cache) fetch(ctx context.Context, hash string) (*apiclient.User, error) {
	user, err := c.api.Me(ctx)
	if err != nil {
		if c.session.Token() != "" {
			c.logger.Warn("profile fetch failed with a token present", zap.Error(err))
			if lerr := c.session.HandleAuthFailure(ctx); lerr != nil {
				c.logger.Error("failed to end session", zap.Error(lerr))
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	e := &entry{User: *user, FetchedAt: c.now(), TokenHash: hash}
	c.mu.Lock()
	c.current = e
	c.mu.Unlock()
	c.save(ctx, e)

	c.session.SetCurrentUser(user)
	return user, nil
}

// fresh returns a cached entry for the token that is younger than staleAfter
func (c *Cache) fresh(ctx context.Context, hash string) *entry {
	c.mu.Lock()
	e := c.current
	c.mu.Unlock()

	if e == nil {
		e = c.load(ctx)
	}
	if e == nil || e.TokenHash != hash || c.now().Sub(e.FetchedAt) >= c.staleAfter {
		return nil
	}

	c.mu.Lock()
	c.current = e
	c.mu.Unlock()
	return e
}

func (c *Cache) load(ctx context.Context) *entry {
	if c.storage == nil {
		return nil
	}
	raw, ok, err := c.storage.Get(ctx, CacheKey)
	if err != nil {
		c.logger.Warn("failed to read profile cache", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("discarding unreadable profile cache", zap.Error(err))
		return nil
	}
	return &e
}

func (c *Cache) save(ctx context.Context, e *entry) {
	if c.storage == nil {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn("failed to encode profile cache", zap.Error(err))
		return
	}
	if err := c.storage.Set(ctx, CacheKey, raw, e.FetchedAt.Add(c.staleAfter)); err != nil {
		c.logger.Warn("failed to write profile cache", zap.Error(err))
	}
}

// Invalidate evicts the cached profile
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()

	if c.storage == nil {
		return nil
	}
	if err := c.storage.Delete(ctx, CacheKey); err != nil {
		return fmt.Errorf("failed to evict profile cache: %w", err)
	}
	return nil
}

// HandleSessionEnded evicts the cache when the session ends
func (c *Cache) HandleSessionEnded(ctx context.Context, _ events.Event) error {
	return c.Invalidate(ctx)
}

// SubscribeTo registers the cache for SessionEnded on bus
func (c *Cache) SubscribeTo(bus *events.Bus) {
	bus.Subscribe(events.EventSessionEnded, c.HandleSessionEnded)
}

func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
