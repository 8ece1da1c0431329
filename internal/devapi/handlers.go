package devapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/apiclient"
)

// Catalog handlers

func (s *Server) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	respondJSON(w, http.StatusOK, s.catalog.ListProducts(apiclient.ProductQuery{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Page:     page,
		Limit:    limit,
	}))
}

func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.catalog.Product(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Product not found")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// Review handlers

func (s *Server) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.catalog.Reviews(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Product not found")
		return
	}
	respondJSON(w, http.StatusOK, reviews)
}

func (s *Server) CreateReview(w http.ResponseWriter, r *http.Request) {
	var in apiclient.ReviewInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.Rating < 1 || in.Rating > 5 {
		respondError(w, http.StatusBadRequest, "Rating must be between 1 and 5")
		return
	}

	user, err := s.catalog.User(userIDFrom(r.Context()))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	review, err := s.catalog.AddReview(chi.URLParam(r, "id"), user, in)
	switch {
	case errors.Is(err, ErrProductNotFound):
		respondError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, ErrAlreadyReviewed):
		respondError(w, http.StatusBadRequest, "Product already reviewed")
	case err != nil:
		respondError(w, http.StatusInternalServerError, "Could not save review")
	default:
		respondJSON(w, http.StatusCreated, review)
	}
}

// Wishlist handlers

func (s *Server) Wishlist(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.Wishlist(userIDFrom(r.Context())))
}

func (s *Server) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "productId is required")
		return
	}

	list, err := s.catalog.AddToWishlist(userIDFrom(r.Context()), req.ProductID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Product not found")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.RemoveFromWishlist(userIDFrom(r.Context()), chi.URLParam(r, "id")))
}

// Order handlers

// CreateCheckoutSession records a pending order and returns the payment URL.
// Prices must be JSON numbers; a display string fails decoding.
func (s *Server) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req apiclient.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid checkout payload")
		return
	}
	if len(req.Products) == 0 {
		respondError(w, http.StatusBadRequest, "No products provided")
		return
	}
	for _, p := range req.Products {
		if p.ID == "" || p.Quantity < 1 || p.Price < 0 {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid line item %q", p.ID))
			return
		}
		product, err := s.catalog.Product(p.ID)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Unknown product %q", p.ID))
			return
		}
		if product.Stock < p.Quantity {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("%s is out of stock", product.Name))
			return
		}
	}

	sessionID, order := s.catalog.CreatePendingOrder(userIDFrom(r.Context()), req.Products)
	s.logger.Info("checkout session created",
		zap.String("session_id", sessionID),
		zap.String("order_id", order.ID),
		zap.Stringer("total", order.Total),
	)
	respondJSON(w, http.StatusOK, apiclient.CheckoutSession{
		ID:  sessionID,
		URL: s.paymentURL + "/" + sessionID,
	})
}

func (s *Server) MyOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.OrdersFor(userIDFrom(r.Context())))
}

func (s *Server) GetOrder(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	order, err := s.catalog.Order(chi.URLParam(r, "id"), claims.UserID, claims.Role == "admin")
	if err != nil {
		respondError(w, http.StatusNotFound, "Order not found")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PaySession stands in for the hosted payment page: visiting it pays the order
func (s *Server) PaySession(w http.ResponseWriter, r *http.Request) {
	order, err := s.catalog.MarkPaid(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "Unknown checkout session", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "Payment received for order %s (%s). Return to the storefront to finish.\n", order.ID, order.Total)
}

// Contact handlers

func (s *Server) Contact(w http.ResponseWriter, r *http.Request) {
	var msg apiclient.ContactMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(msg.Email) == "" || strings.TrimSpace(msg.Message) == "" {
		respondError(w, http.StatusBadRequest, "Email and message are required")
		return
	}
	s.catalog.AddMessage(msg)
	respondJSON(w, http.StatusCreated, map[string]string{"message": "Message sent"})
}

func (s *Server) ListMessages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.Messages())
}
