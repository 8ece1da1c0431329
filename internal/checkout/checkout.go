// Package checkout turns the cart into a payment-provider session and hands
// the shopper over to the returned URL.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/apiclient"
	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/events"
	"github.com/example/storefront/internal/metrics"
)

const (
	EventCheckoutStarted = "CheckoutStarted"
	EventCheckoutFailed  = "CheckoutFailed"
	EventOrderCompleted  = "OrderCompleted"
)

type CheckoutStarted struct {
	Lines     int       `json:"lines"`
	URL       string    `json:"url"`
	StartedAt time.Time `json:"started_at"`
}

type CheckoutFailed struct {
	Kind     string    `json:"kind"`
	Message  string    `json:"message"`
	FailedAt time.Time `json:"failed_at"`
}

type OrderCompleted struct {
	CompletedAt time.Time `json:"completed_at"`
}

// Navigator performs the top-level navigation to the payment page
type Navigator interface {
	Redirect(ctx context.Context, url string) error
}

// WriterNavigator prints the URL; a terminal has no location bar to replace
type WriterNavigator struct {
	W io.Writer
}

func (n WriterNavigator) Redirect(_ context.Context, url string) error {
	_, err := fmt.Fprintf(n.W, "Continue to payment: %s\n", url)
	return err
}

// Cart is the part of the cart store checkout reads and clears
type Cart interface {
	Items() []cart.LineItem
	ClearCart(ctx context.Context) error
}

// SessionCreator creates the payment session on the backend
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, products []apiclient.CheckoutProduct) (*apiclient.CheckoutSession, error)
}

type Orchestrator struct {
	cart      Cart
	api       SessionCreator
	navigator Navigator
	inFlight  atomic.Bool

	logger    *zap.Logger
	publisher events.Publisher
	metrics   metrics.Recorder
}

type Option func(*Orchestrator)

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.metrics = r
		}
	}
}

func NewOrchestrator(c Cart, api SessionCreator, nav Navigator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cart:      c,
		api:       api,
		navigator: nav,
		logger:    zap.NewNop(),
		publisher: events.Nop{},
		metrics:   metrics.Nop{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BuildPayload converts cart lines to the checkout-session payload with numeric prices
func BuildPayload(items []cart.LineItem) []apiclient.CheckoutProduct {
	products := make([]apiclient.CheckoutProduct, 0, len(items))
	for _, item := range items {
		products = append(products, apiclient.CheckoutProduct{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.Price.Float64(),
			Quantity: item.Quantity,
			Image:    item.Image,
		})
	}
	return products
}

// Checkout creates a payment session for the current cart and redirects to
// it. An empty cart fails with ErrEmptyCart before any request. The cart is
// left untouched; see CompleteOrder.
func (o *Orchestrator) Checkout(ctx context.Context) (string, error) {
	items := o.cart.Items()
	if len(items) == 0 {
		o.metrics.RecordCheckout(metrics.CheckoutEmptyCart)
		return "", ErrEmptyCart
	}

	o.inFlight.Store(true)
	defer o.inFlight.Store(false)

	session, err := o.api.CreateCheckoutSession(ctx, BuildPayload(items))
	if err != nil {
		cerr := o.classify(err)
		o.publisher.Publish(ctx, EventCheckoutFailed, CheckoutFailed{
			Kind:     cerr.Kind.String(),
			Message:  cerr.Message,
			FailedAt: time.Now(),
		})
		return "", cerr
	}

	if err := o.navigator.Redirect(ctx, session.URL); err != nil {
		return "", fmt.Errorf("failed to redirect to payment page: %w", err)
	}

	o.metrics.RecordCheckout(metrics.CheckoutRedirected)
	o.logger.Info("checkout handed off", zap.Int("lines", len(items)))
	o.publisher.Publish(ctx, EventCheckoutStarted, CheckoutStarted{
		Lines:     len(items),
		URL:       session.URL,
		StartedAt: time.Now(),
	})
	return session.URL, nil
}

func (o *Orchestrator) classify(err error) *Error {
	if errors.Is(err, apiclient.ErrMalformedResponse) {
		o.logger.Error("checkout session response without url", zap.Error(err))
		o.metrics.RecordCheckout(metrics.CheckoutMalformed)
		return &Error{Kind: KindMalformedResponse, Message: MalformedMessage, Err: err}
	}

	o.logger.Warn("checkout session request failed", zap.Error(err))
	o.metrics.RecordCheckout(metrics.CheckoutFailed)
	return &Error{Kind: KindTransport, Message: apiclient.MessageFrom(err, FallbackMessage), Err: err}
}

// InFlight reports whether a checkout request is running. It is advisory:
// Checkout does not refuse concurrent calls.
func (o *Orchestrator) InFlight() bool {
	return o.inFlight.Load()
}

// CompleteOrder is called from the order-success landing and clears the cart
func (o *Orchestrator) CompleteOrder(ctx context.Context) error {
	if err := o.cart.ClearCart(ctx); err != nil {
		return fmt.Errorf("failed to clear cart after order: %w", err)
	}
	o.publisher.Publish(ctx, EventOrderCompleted, OrderCompleted{CompletedAt: time.Now()})
	return nil
}
