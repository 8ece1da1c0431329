package devapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/apiclient"
	"github.com/example/storefront/internal/auth"
)

const roleCustomer = "customer"

// SignUp registers a customer and logs them in
func (s *Server) SignUp(w http.ResponseWriter, r *http.Request) {
	var req apiclient.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		respondError(w, http.StatusBadRequest, "Name and email are required")
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			respondError(w, http.StatusBadRequest, "Password must be at least 8 characters")
			return
		}
		respondError(w, http.StatusInternalServerError, "Signup failed")
		return
	}

	user, err := s.catalog.CreateUser(req.Name, req.Email, hash, roleCustomer)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			respondError(w, http.StatusConflict, "User already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "Signup failed")
		return
	}

	s.respondWithToken(w, http.StatusCreated, user)
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req apiclient.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, hash, err := s.catalog.Credentials(req.Email)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err := s.hasher.Verify(req.Password, hash); err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	s.respondWithToken(w, http.StatusOK, user)
}

func (s *Server) respondWithToken(w http.ResponseWriter, status int, user apiclient.User) {
	token, _, err := s.jwt.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to sign token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	respondJSON(w, status, apiclient.AuthResponse{Token: token, User: user})
}

// Me returns the token holder's profile
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	user, err := s.catalog.User(userIDFrom(r.Context()))
	if err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	respondJSON(w, http.StatusOK, user)
}
