package app

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/storefront/internal/apiclient"
	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/devapi"
	"github.com/example/storefront/internal/events"
	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/money"
	"github.com/example/storefront/internal/session"
)

type recordingSink struct {
	mu   sync.Mutex
	keys []string
}

func (s *recordingSink) Publish(_ context.Context, key string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return nil
}

func (s *recordingSink) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		API:     config.APIConfig{BaseURL: baseURL, Timeout: 5 * time.Second},
		Storage: config.StorageConfig{Backend: config.BackendMemory},
		Cart:    config.CartConfig{TTL: time.Hour},
		Session: config.SessionConfig{CookieTTL: time.Hour},
		Profile: config.ProfileConfig{StaleAfter: 5 * time.Minute},
		Log:     config.LogConfig{Level: "error", Format: "console", Output: "stderr"},
	}
}

func newBackend(t *testing.T) string {
	t.Helper()
	server, err := devapi.NewServer(devapi.Config{
		JWTSecret:  "app-test-secret",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
		PaymentURL: "http://pay.invalid/pay/session",
	}, devapi.NewCatalog(devapi.SeedProducts()), nil)
	require.NoError(t, err)
	srv := httptest.NewServer(server.Router())
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

func newApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	a, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func vase() cart.LineItem {
	return cart.LineItem{ID: "p1", Name: "Ceramic Vase", Price: money.MustParsePrice("$25.00"), Quantity: 1}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("not a url")

	_, err := New(context.Background(), cfg)

	assert.Error(t, err)
}

func TestNew_WiresStores(t *testing.T) {
	a := newApp(t, testConfig(newBackend(t)))

	assert.Equal(t, session.Anonymous, a.Session.State())
	assert.True(t, a.Cart.IsEmpty())
	assert.False(t, a.Checkout.InFlight())
}

func TestApp_LogoutClearsCartAndProfile(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	a := newApp(t, testConfig(newBackend(t)), WithSink(sink))

	require.NoError(t, a.Session.SignUp(ctx, apiclient.SignUpRequest{Name: "Ada", Email: "ada@example.com", Password: "secret-123"}))
	user, err := a.Profile.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	require.NoError(t, a.Cart.AddToCart(ctx, vase()))

	require.NoError(t, a.Session.Logout(ctx))

	assert.True(t, a.Cart.IsEmpty())
	_, ok, err := a.Storage.Get(ctx, cart.StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, sink.Keys(), events.EventSessionEnded)
	assert.Contains(t, sink.Keys(), cart.EventItemAdded)
}

func TestApp_RestoresSessionFromSharedStorage(t *testing.T) {
	ctx := context.Background()
	baseURL := newBackend(t)
	shared := store.NewMemoryStore()

	first := newApp(t, testConfig(baseURL), WithStorage(shared))
	require.NoError(t, first.Session.SignUp(ctx, apiclient.SignUpRequest{Name: "Ada", Email: "ada@example.com", Password: "secret-123"}))
	require.NoError(t, first.Cart.AddToCart(ctx, vase()))

	second := newApp(t, testConfig(baseURL), WithStorage(shared))

	assert.True(t, second.Session.IsAuthenticated())
	assert.Equal(t, first.Session.Token(), second.Session.Token())
	assert.Equal(t, 1, second.Cart.ItemCount())
	user, err := second.Profile.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	require.NotNil(t, second.Session.User())
	assert.Equal(t, user.ID, second.Session.User().ID)
}

func TestApp_CheckoutAndMetrics(t *testing.T) {
	ctx := context.Background()
	var nav bytes.Buffer
	a := newApp(t, testConfig(newBackend(t)), WithNavigator(checkout.WriterNavigator{W: &nav}))

	_, err := a.Checkout.Checkout(ctx)
	assert.ErrorIs(t, err, checkout.ErrEmptyCart)

	require.NoError(t, a.Cart.AddToCart(ctx, vase()))
	url, err := a.Checkout.Checkout(ctx)
	require.NoError(t, err)
	assert.Contains(t, nav.String(), url)

	path := filepath.Join(t.TempDir(), "storefront.prom")
	require.NoError(t, a.WriteMetrics(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `storefront_checkout_total{outcome="empty_cart"} 1`)
	assert.Contains(t, text, `storefront_cart_mutations_total{op="add"} 1`)
	assert.Contains(t, text, "storefront_api_request_duration_seconds")
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	st, closeFn, err := OpenStorage(ctx, config.StorageConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, st)
	assert.Nil(t, closeFn)

	path := filepath.Join(t.TempDir(), "state.json")
	st, _, err = OpenStorage(ctx, config.StorageConfig{Backend: config.BackendFile, Path: path})
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "k", []byte("v"), time.Now().Add(time.Minute)))
	_, err = os.Stat(path)
	assert.NoError(t, err)

	_, _, err = OpenStorage(ctx, config.StorageConfig{Backend: "floppy"})
	assert.EqualError(t, err, `unknown storage backend "floppy"`)
}
