// Package devapi is a development stand-in for the storefront backend. It
// serves the same REST contract the client consumes from in-memory data.
package devapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/metrics"
)

// Config for the development API
type Config struct {
	JWTSecret  string
	TokenTTL   time.Duration
	PaymentURL string
	BcryptCost int
	// Seeded admin account; skipped when AdminEmail is empty
	AdminEmail    string
	AdminPassword string
}

type Server struct {
	catalog    *Catalog
	jwt        *auth.JWTService
	hasher     *auth.Hasher
	paymentURL string
	logger     *zap.Logger
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
}

func NewServer(cfg Config, catalog *Catalog, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "storefront-dev-secret"
		logger.Warn("no JWT secret configured, using the development default")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	reg := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_devapi_requests_total",
		Help: "Requests served by the development API",
	}, []string{"method", "route", "status_code"})
	reg.MustRegister(requests)

	s := &Server{
		catalog:    catalog,
		jwt:        auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL),
		hasher:     auth.NewHasher(cfg.BcryptCost),
		paymentURL: strings.TrimRight(cfg.PaymentURL, "/"),
		logger:     logger,
		registry:   reg,
		requests:   requests,
	}

	if cfg.AdminEmail != "" {
		hash, err := s.hasher.Hash(cfg.AdminPassword)
		if err != nil {
			return nil, err
		}
		if _, err := catalog.CreateUser("Admin", cfg.AdminEmail, hash, "admin"); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Router mounts the API under /api, the fake payment page under /pay and /metrics
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler(s.registry))
	r.Get("/pay/session/{sessionID}", s.PaySession)

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", s.SignUp)
		r.Post("/login", s.Login)
		r.Get("/products", s.ListProducts)
		r.Get("/products/{id}", s.GetProduct)
		r.Get("/products/{id}/reviews", s.ListReviews)
		r.Post("/contact", s.Contact)

		r.Group(func(r chi.Router) {
			r.Use(OptionalAuthMiddleware(s.jwt))
			r.Post("/orders/checkout-session", s.CreateCheckoutSession)
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(s.jwt))
			r.Get("/users/me", s.Me)
			r.Get("/wishlist", s.Wishlist)
			r.Post("/wishlist", s.AddToWishlist)
			r.Delete("/wishlist/{id}", s.RemoveFromWishlist)
			r.Post("/products/{id}/reviews", s.CreateReview)
			r.Get("/orders/my", s.MyOrders)
			r.Get("/orders/{id}", s.GetOrder)

			r.With(RequireRole("admin")).Get("/contact", s.ListMessages)
		})
	})
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes {"message": ...}, the shape the storefront reads
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}
