// Package session tracks the signed-in identity: the bearer token, a user
// snapshot and the "token" cookie that mirrors it.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/apiclient"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/cookie"
	"github.com/example/storefront/internal/events"
	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/metrics"
)

const (
	CookieName       = "token"
	CookiePath       = "/"
	DefaultCookieTTL = time.Hour

	FallbackLoginMessage  = "Login failed"
	FallbackSignupMessage = "Signup failed"
)

type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Error is a failed sign-in or sign-up, normalized for display
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Authenticator is the part of the backend the session needs
type Authenticator interface {
	SignIn(ctx context.Context, in apiclient.Credentials) (*apiclient.AuthResponse, error)
	SignUp(ctx context.Context, in apiclient.SignUpRequest) (*apiclient.AuthResponse, error)
}

// Store owns the bearer token. It does not clear other caches itself;
// Logout publishes SessionEnded and dependents subscribe.
type Store struct {
	mu    sync.Mutex
	state State
	token string
	user  *apiclient.User

	api       Authenticator
	jar       cookie.Jar
	now       store.Clock
	cookieTTL time.Duration
	logger    *zap.Logger
	publisher events.Publisher
	metrics   metrics.Recorder
}

type Option func(*Store)

func WithClock(now store.Clock) Option {
	return func(s *Store) { s.now = now }
}

func WithCookieTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.cookieTTL = ttl
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

func NewStore(api Authenticator, jar cookie.Jar, opts ...Option) *Store {
	s := &Store{
		api:       api,
		jar:       jar,
		now:       time.Now,
		cookieTTL: DefaultCookieTTL,
		logger:    zap.NewNop(),
		publisher: events.Nop{},
		metrics:   metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignIn authenticates with the backend and stores the session
func (s *Store) SignIn(ctx context.Context, creds apiclient.Credentials) error {
	return s.authenticate(ctx, FallbackLoginMessage, func() (*apiclient.AuthResponse, error) {
		return s.api.SignIn(ctx, creds)
	})
}

// SignUp registers an account; success signs the new user in
func (s *Store) SignUp(ctx context.Context, req apiclient.SignUpRequest) error {
	return s.authenticate(ctx, FallbackSignupMessage, func() (*apiclient.AuthResponse, error) {
		return s.api.SignUp(ctx, req)
	})
}

func (s *Store) authenticate(ctx context.Context, fallback string, call func() (*apiclient.AuthResponse, error)) error {
	s.mu.Lock()
	prev := s.state
	s.state = Authenticating
	s.mu.Unlock()

	resp, err := call()
	if err != nil {
		s.setState(prev)
		s.logger.Info("authentication failed", zap.Error(err))
		return &Error{Message: apiclient.MessageFrom(err, fallback), Err: err}
	}

	err = s.jar.Set(ctx, cookie.Cookie{
		Name:    CookieName,
		Value:   resp.Token,
		Path:    CookiePath,
		Expires: s.now().Add(s.cookieTTL),
	})
	if err != nil {
		s.setState(prev)
		s.logger.Error("failed to store token cookie", zap.Error(err))
		return &Error{Message: fallback, Err: err}
	}

	user := resp.User
	s.mu.Lock()
	s.token = resp.Token
	s.user = &user
	s.state = Authenticated
	s.mu.Unlock()

	s.logger.Info("signed in", zap.String("user_id", user.ID), zap.String("role", user.Role))
	s.publisher.Publish(ctx, events.EventSessionStarted, events.SessionStarted{
		UserID:    user.ID,
		StartedAt: s.now(),
	})
	return nil
}

func (s *Store) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Logout clears the session and removes the cookie. SessionEnded is only
// published when a token or user was held, so a guest keeps their cart.
func (s *Store) Logout(ctx context.Context) error {
	return s.end(ctx, events.ReasonLogout)
}

func (s *Store) end(ctx context.Context, reason string) error {
	s.mu.Lock()
	held := s.token != "" || s.user != nil
	userID := ""
	if s.user != nil {
		userID = s.user.ID
	}
	s.token = ""
	s.user = nil
	s.state = Anonymous
	s.mu.Unlock()

	err := s.jar.Remove(ctx, CookieName)
	if err != nil {
		s.logger.Error("failed to remove token cookie", zap.Error(err))
	}
	if !held {
		return err
	}

	s.logger.Info("session ended", zap.String("reason", reason), zap.String("user_id", userID))
	s.metrics.RecordSessionEnded(reason)
	s.publisher.Publish(ctx, events.EventSessionEnded, events.SessionEnded{
		UserID:  userID,
		Reason:  reason,
		EndedAt: s.now(),
	})
	return err
}

// CheckExpiration logs out when a token is held in memory but its cookie
// is gone or expired, or when the token is a JWT past its exp claim.
// It reports whether a logout happened.
func (s *Store) CheckExpiration(ctx context.Context) (bool, error) {
	token := s.Token()
	if token == "" {
		return false, nil
	}

	c, ok, err := s.jar.Get(ctx, CookieName)
	if err != nil {
		return false, fmt.Errorf("failed to read token cookie: %w", err)
	}

	if ok && c.Value == token && !auth.TokenExpired(token, s.now()) {
		return false, nil
	}
	return true, s.end(ctx, events.ReasonExpired)
}

// Restore loads the token from the cookie at startup. The user snapshot is
// filled in later by the profile cache.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	c, ok, err := s.jar.Get(ctx, CookieName)
	if err != nil {
		return false, fmt.Errorf("failed to read token cookie: %w", err)
	}
	if !ok || c.Value == "" {
		return false, nil
	}
	if auth.TokenExpired(c.Value, s.now()) {
		s.logger.Info("discarding expired token cookie")
		if err := s.jar.Remove(ctx, CookieName); err != nil {
			return false, fmt.Errorf("failed to remove token cookie: %w", err)
		}
		return false, nil
	}

	s.mu.Lock()
	s.token = c.Value
	s.state = Authenticated
	s.mu.Unlock()
	return true, nil
}

// HandleAuthFailure ends the session after the backend rejected the token.
// Without a token there is nothing to invalidate.
func (s *Store) HandleAuthFailure(ctx context.Context) error {
	if s.Token() == "" {
		return nil
	}
	s.logger.Warn("backend rejected token, logging out")
	return s.end(ctx, events.ReasonInvalidToken)
}

// SetCurrentUser replaces the user snapshot
func (s *Store) SetCurrentUser(user *apiclient.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.user = nil
		return
	}
	u := *user
	s.user = &u
}

func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// User returns a copy of the snapshot, or nil
func (s *Store) User() *apiclient.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) IsAuthenticated() bool {
	return s.State() == Authenticated
}

func (s *Store) IsAdmin() bool {
	return s.User().IsAdmin()
}
