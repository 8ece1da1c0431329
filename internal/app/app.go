// Package app wires the client stores from configuration. It owns every
// long-lived resource and releases them in Close.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/apiclient"
	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/cookie"
	"github.com/example/storefront/internal/events"
	"github.com/example/storefront/internal/infrastructure/kafka"
	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/profile"
	"github.com/example/storefront/internal/session"
)

// App is one storefront client: session, cart, profile cache and checkout
// sharing a storage backend and an event bus.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Bus      *events.Bus
	Storage  store.Store
	Jar      *cookie.StoreJar
	API      *apiclient.Client
	Session  *session.Store
	Cart     *cart.Store
	Profile  *profile.Cache
	Checkout *checkout.Orchestrator

	closers []func() error
}

type options struct {
	logger    *zap.Logger
	storage   store.Store
	navigator checkout.Navigator
	sink      events.Sink
	apiOpts   []apiclient.Option
}

type Option func(*options)

// WithLogger overrides the logger built from cfg.Log
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStorage overrides the backend selected by cfg.Storage
func WithStorage(st store.Store) Option {
	return func(o *options) { o.storage = st }
}

// WithNavigator sets where checkout redirects go (stdout by default)
func WithNavigator(nav checkout.Navigator) Option {
	return func(o *options) { o.navigator = nav }
}

// WithSink overrides the Kafka activity sink
func WithSink(sink events.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// WithAPIOptions appends client options after the configured ones
func WithAPIOptions(opts ...apiclient.Option) Option {
	return func(o *options) { o.apiOpts = append(o.apiOpts, opts...) }
}

// New builds the client. The token cookie is restored and checked for
// expiry before New returns, and the cart is hydrated from storage.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	a.Logger = o.logger
	if a.Logger == nil {
		l, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		a.Logger = l
		a.closers = append(a.closers, func() error { _ = l.Sync(); return nil })
	}

	a.Registry = prometheus.NewRegistry()
	collector := metrics.NewCollector(a.Registry)

	a.Bus = events.NewBus(a.Logger.Named("events"))
	sink := o.sink
	if sink == nil && cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, producer.Close)
		sink = producer
		a.Logger.Info("forwarding activity to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	if sink != nil {
		a.Bus.AddSink(sink)
	}

	a.Storage = o.storage
	if a.Storage == nil {
		st, closeFn, err := OpenStorage(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		a.Storage = st
		if closeFn != nil {
			a.closers = append(a.closers, closeFn)
		}
	}

	a.Jar = cookie.NewStoreJar(a.Storage)

	apiOpts := []apiclient.Option{
		apiclient.WithTimeout(cfg.API.Timeout),
		apiclient.WithTokenSource(apiclient.CookieTokenSource(a.Jar, session.CookieName)),
		apiclient.WithLogger(a.Logger.Named("api")),
		apiclient.WithMetrics(collector),
	}
	if cfg.API.RateLimit > 0 {
		apiOpts = append(apiOpts, apiclient.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst))
	}
	if cfg.API.BreakerEnabled {
		apiOpts = append(apiOpts, apiclient.WithCircuitBreaker(cfg.API.BreakerMaxFailures, cfg.API.BreakerOpenTimeout))
	}
	a.API = apiclient.New(cfg.API.BaseURL, append(apiOpts, o.apiOpts...)...)

	a.Session = session.NewStore(a.API, a.Jar,
		session.WithCookieTTL(cfg.Session.CookieTTL),
		session.WithLogger(a.Logger.Named("session")),
		session.WithPublisher(a.Bus),
		session.WithMetrics(collector),
	)

	c, err := cart.NewStore(ctx, a.Storage,
		cart.WithTTL(cfg.Cart.TTL),
		cart.WithLogger(a.Logger.Named("cart")),
		cart.WithPublisher(a.Bus),
		cart.WithMetrics(collector),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	a.Cart = c
	a.Cart.SubscribeTo(a.Bus)

	a.Profile = profile.NewCache(a.API, a.Session, a.Storage,
		profile.WithStaleAfter(cfg.Profile.StaleAfter),
		profile.WithLogger(a.Logger.Named("profile")),
	)
	a.Profile.SubscribeTo(a.Bus)

	nav := o.navigator
	if nav == nil {
		nav = checkout.WriterNavigator{W: os.Stdout}
	}
	a.Checkout = checkout.NewOrchestrator(a.Cart, a.API, nav,
		checkout.WithLogger(a.Logger.Named("checkout")),
		checkout.WithPublisher(a.Bus),
		checkout.WithMetrics(collector),
	)

	if _, err := a.Session.Restore(ctx); err != nil {
		return nil, err
	}
	if _, err := a.Session.CheckExpiration(ctx); err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

// WriteMetrics dumps the registry in the Prometheus text format
func (a *App) WriteMetrics(path string) error {
	return metrics.WriteFile(path, a.Registry)
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenStorage connects the configured backend. The returned close func is
// nil for backends that hold no connection.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (store.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil, nil
	case config.BackendFile:
		st, err := store.NewFileStore(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open state file: %w", err)
		}
		return st, nil, nil
	case config.BackendRedis:
		client, err := store.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisStore(client, cfg.RedisPrefix), client.Close, nil
	case config.BackendPostgres:
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		st := store.NewPostgresStore(db)
		if err := st.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return st, db.Close, nil
	case config.BackendDynamo:
		client, err := store.NewDynamoClient(ctx, cfg.DynamoRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, nil, err
		}
		return store.NewDynamoStore(client, cfg.DynamoTable), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
