package handlers

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-control/internal/auth"
	"github.com/ukydev/fleet-control/internal/middleware"
	"github.com/ukydev/fleet-control/internal/models"
)

// Authenticator checks operator credentials.
type Authenticator interface {
	Authenticate(username, password string) (models.Operator, error)
}

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *auth.Service
	operators   Authenticator
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, operators Authenticator) *AuthHandler {
	return &AuthHandler{authService: authService, operators: operators}
}

// Login exchanges operator credentials for a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.LoginRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	op, err := h.operators.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrOperatorInactive) {
			http.Error(w, "Account is deactivated", http.StatusUnauthorized)
			return
		}
		log.WithField("username", req.Username).Warn("Failed login")
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.authService.GenerateToken(&op)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		http.Error(w, "Failed to generate refresh token", http.StatusInternalServerError)
		return
	}

	log.WithFields(log.Fields{"username": op.Username, "role": op.Role}).Info("Operator logged in")
	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		Operator:     op,
	})
}

// Me returns the claims of the calling operator.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	claims, ok := middleware.OperatorFromContext(r.Context())
	if !ok {
		http.Error(w, "Operator context not found", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}
