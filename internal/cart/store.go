// Package cart is the client-side shopping cart: line items plus a derived
// total, persisted under the "cart" key and discarded one TTL after the last write.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/events"
	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/money"
)

const (
	StorageKey = "cart"
	DefaultTTL = time.Hour
)

// expiryGrace keeps the storage entry alive past the TTL so that hydrate,
// which keeps a cart aged exactly TTL, makes the boundary decision.
const expiryGrace = time.Second

// persisted is the storage document: {"cartItems":[...],"timestamp":<epoch-ms>}
type persisted struct {
	CartItems []LineItem `json:"cartItems"`
	Timestamp int64      `json:"timestamp"`
}

// Store holds the authoritative cart. Every mutation is written to storage
// before the call returns.
type Store struct {
	mu      sync.Mutex
	storage store.Store
	items   []LineItem
	total   money.Amount

	now       store.Clock
	ttl       time.Duration
	logger    *zap.Logger
	publisher events.Publisher
	metrics   metrics.Recorder
}

type Option func(*Store)

func WithClock(now store.Clock) Option {
	return func(s *Store) { s.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.metrics = r
		}
	}
}

// NewStore hydrates the cart from storage. A missing, undecodable or stale
// entry yields an empty cart; the last two are also removed from storage.
func NewStore(ctx context.Context, st store.Store, opts ...Option) (*Store, error) {
	s := &Store{
		storage:   st,
		total:     money.Zero(),
		now:       time.Now,
		ttl:       DefaultTTL,
		logger:    zap.NewNop(),
		publisher: events.Nop{},
		metrics:   metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) hydrate(ctx context.Context) error {
	raw, ok, err := s.storage.Get(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("failed to read cart: %w", err)
	}
	if !ok {
		return nil
	}

	var doc persisted
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.Warn("discarding unreadable cart", zap.Error(err))
		return s.discard(ctx)
	}

	age := s.now().Sub(time.UnixMilli(doc.Timestamp))
	if age > s.ttl {
		s.logger.Info("discarding expired cart",
			zap.Duration("age", age),
			zap.Int("items", len(doc.CartItems)),
		)
		return s.discard(ctx)
	}

	s.items = doc.CartItems
	s.total = computeTotal(s.items)
	s.logger.Debug("cart hydrated", zap.Int("items", len(s.items)), zap.Stringer("total", s.total))
	return nil
}

func (s *Store) discard(ctx context.Context) error {
	if err := s.storage.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("failed to remove stale cart: %w", err)
	}
	return nil
}

// persist writes the current items; caller holds s.mu
func (s *Store) persist(ctx context.Context) error {
	now := s.now()
	doc := persisted{CartItems: s.items, Timestamp: now.UnixMilli()}
	if doc.CartItems == nil {
		doc.CartItems = []LineItem{}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.storage.Set(ctx, StorageKey, raw, now.Add(s.ttl+expiryGrace)); err != nil {
		s.logger.Error("failed to persist cart", zap.Error(err))
		return fmt.Errorf("failed to persist cart: %w", err)
	}
	return nil
}

// AddToCart appends item. Items with an id already in the cart are not merged.
func (s *Store) AddToCart(ctx context.Context, item LineItem) error {
	s.mu.Lock()
	s.items = append(s.items, item)
	s.total = computeTotal(s.items)
	err := s.persist(ctx)
	s.mu.Unlock()

	s.metrics.RecordCartMutation("add")
	s.publisher.Publish(ctx, EventItemAdded, ItemAddedToCart{
		ProductID: item.ID,
		Name:      item.Name,
		Price:     item.Price,
		Quantity:  item.Quantity,
		AddedAt:   s.now(),
	})
	return err
}

// RemoveFromCart removes every entry with id
func (s *Store) RemoveFromCart(ctx context.Context, id string) error {
	s.mu.Lock()
	kept := make([]LineItem, 0, len(s.items))
	for _, item := range s.items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	removed := len(s.items) - len(kept)
	s.items = kept
	s.total = computeTotal(s.items)
	err := s.persist(ctx)
	s.mu.Unlock()

	s.metrics.RecordCartMutation("remove")
	s.publisher.Publish(ctx, EventItemRemoved, ItemRemovedFromCart{
		ProductID: id,
		Removed:   removed,
		RemovedAt: s.now(),
	})
	return err
}

// UpdateQuantity sets the quantity of the first entry with id. The value is
// not validated here; see ValidateQuantity.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	s.mu.Lock()
	matched := false
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Quantity = quantity
			matched = true
			break
		}
	}
	s.total = computeTotal(s.items)
	err := s.persist(ctx)
	s.mu.Unlock()

	s.metrics.RecordCartMutation("update_quantity")
	s.publisher.Publish(ctx, EventQuantityUpdated, CartQuantityUpdated{
		ProductID: id,
		Quantity:  quantity,
		Matched:   matched,
		UpdatedAt: s.now(),
	})
	return err
}

// ClearCart empties the cart and deletes the storage entry
func (s *Store) ClearCart(ctx context.Context) error {
	return s.clear(ctx, "")
}

func (s *Store) clear(ctx context.Context, reason string) error {
	s.mu.Lock()
	s.items = nil
	s.total = money.Zero()
	err := s.storage.Delete(ctx, StorageKey)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("failed to delete cart", zap.Error(err))
		err = fmt.Errorf("failed to delete cart: %w", err)
	}

	s.metrics.RecordCartMutation("clear")
	s.publisher.Publish(ctx, EventCartCleared, CartCleared{Reason: reason, ClearedAt: s.now()})
	return err
}

// HandleSessionEnded clears the cart when the session ends
func (s *Store) HandleSessionEnded(ctx context.Context, event events.Event) error {
	reason := ""
	if ended, ok := event.Data.(events.SessionEnded); ok {
		reason = ended.Reason
	}
	s.logger.Info("clearing cart after session end", zap.String("reason", reason))
	return s.clear(ctx, reason)
}

// SubscribeTo registers the cart for SessionEnded on bus
func (s *Store) SubscribeTo(bus *events.Bus) {
	bus.Subscribe(events.EventSessionEnded, s.HandleSessionEnded)
}

// State returns a copy of the current cart
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]LineItem, len(s.items))
	copy(items, s.items)
	return State{CartItems: items, TotalAmount: s.total}
}

func (s *Store) Items() []LineItem {
	return s.State().CartItems
}

func (s *Store) TotalAmount() money.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// ItemCount is the sum of quantities
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, item := range s.items {
		n += item.Quantity
	}
	return n
}

func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
}
