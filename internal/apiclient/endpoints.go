package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// SignUp registers an account; the backend logs the new user in
func (c *Client) SignUp(ctx context.Context, in SignUpRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/signup", route: "/signup", body: in}, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: signup response without token", ErrMalformedResponse)
	}
	return &out, nil
}

func (c *Client) SignIn(ctx context.Context, in Credentials) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/login", route: "/login", body: in}, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: login response without token", ErrMalformedResponse)
	}
	return &out, nil
}

// Me fetches the profile of the token holder
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/users/me", route: "/users/me", auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCheckoutSession asks the backend for a payment-provider session.
// A 2xx response without url is reported as ErrMalformedResponse.
func (c *Client) CreateCheckoutSession(ctx context.Context, products []CheckoutProduct) (*CheckoutSession, error) {
	var out CheckoutSession
	r := request{
		method: http.MethodPost,
		path:   "/orders/checkout-session",
		route:  "/orders/checkout-session",
		body:   CheckoutRequest{Products: products},
		auth:   true,
	}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	if out.URL == "" {
		return nil, fmt.Errorf("%w: checkout session without url", ErrMalformedResponse)
	}
	return &out, nil
}

func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	var out ProductPage
	r := request{method: http.MethodGet, path: "/products", route: "/products", query: q.values()}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	var out Product
	r := request{method: http.MethodGet, path: "/products/" + url.PathEscape(id), route: "/products/{id}"}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Wishlist(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := c.do(ctx, request{method: http.MethodGet, path: "/wishlist", route: "/wishlist", auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddToWishlist returns the updated wishlist
func (c *Client) AddToWishlist(ctx context.Context, productID string) ([]Product, error) {
	var out []Product
	r := request{
		method: http.MethodPost,
		path:   "/wishlist",
		route:  "/wishlist",
		body:   map[string]string{"productId": productID},
		auth:   true,
	}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveFromWishlist returns the updated wishlist
func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) ([]Product, error) {
	var out []Product
	r := request{method: http.MethodDelete, path: "/wishlist/" + url.PathEscape(productID), route: "/wishlist/{id}", auth: true}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListReviews(ctx context.Context, productID string) ([]Review, error) {
	var out []Review
	r := request{method: http.MethodGet, path: "/products/" + url.PathEscape(productID) + "/reviews", route: "/products/{id}/reviews"}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateReview(ctx context.Context, productID string, in ReviewInput) (*Review, error) {
	var out Review
	r := request{
		method: http.MethodPost,
		path:   "/products/" + url.PathEscape(productID) + "/reviews",
		route:  "/products/{id}/reviews",
		body:   in,
		auth:   true,
	}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MyOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := c.do(ctx, request{method: http.MethodGet, path: "/orders/my", route: "/orders/my", auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	var out Order
	r := request{method: http.MethodGet, path: "/orders/" + url.PathEscape(id), route: "/orders/{id}", auth: true}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendContactMessage(ctx context.Context, msg ContactMessage) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/contact", route: "/contact", body: msg}, nil)
}
