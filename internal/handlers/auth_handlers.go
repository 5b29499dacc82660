package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"farmfresh-backend/internal/models"
	"farmfresh-backend/internal/services"
	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

// AuthHandler handles registration and login
type AuthHandler struct {
	responder
	auth *services.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AuthHandler {
	return &AuthHandler{
		responder: responder{logger: logger, metrics: metricsCollector},
		auth:      auth,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string             `json:"message"`
	User    models.UserSummary `json:"user"`
}

// Register handles POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reg models.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		h.sendError(w, r, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if _, err := h.auth.Register(ctx, reg); err != nil {
		var ve *models.ValidationError
		switch {
		case errors.As(err, &ve):
			h.sendError(w, r, ve.Message, http.StatusBadRequest)
		case errors.Is(err, models.ErrUserExists):
			h.sendError(w, r, "User already exists", http.StatusBadRequest)
		default:
			h.logger.Error(ctx, "[API_REGISTER_ERROR] Registration failed", logging.Fields{}, err)
			h.sendError(w, r, "registration failed", http.StatusInternalServerError)
		}
		return
	}

	h.sendJSON(w, MessageResponse{Message: "User registered successfully"}, http.StatusCreated)
}

// Login handles POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, "invalid JSON body", http.StatusBadRequest)
		return
	}

	user, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			h.sendError(w, r, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		h.logger.Error(ctx, "[API_LOGIN_ERROR] Login failed", logging.Fields{}, err)
		h.sendError(w, r, "login failed", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, loginResponse{Message: "Login successful", User: user.Summary()}, http.StatusOK)
}

// RegisterRoutes registers the auth routes
func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/register", h.Register).Methods("POST")
	router.HandleFunc("/api/login", h.Login).Methods("POST")
}
