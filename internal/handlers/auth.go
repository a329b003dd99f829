package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/weatherkeep/apiserver/internal/auth"
	"github.com/weatherkeep/apiserver/internal/services"
)

// TokenVerifier resolves a bearer token to a user ID.
type TokenVerifier interface {
	Verify(token string) (int, error)
}

// AuthHandler provides registration and login endpoints.
type AuthHandler struct {
	authService *services.AuthService
	logger      *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, logger *zap.Logger) {
	handler := NewAuthHandler(authService, logger)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
}

// RequireAuth rejects requests without a verifiable bearer token and injects
// the token's user ID into the request context.
func RequireAuth(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			var userID int
			if err == nil {
				userID, err = verifier.Verify(token)
			}
			if err != nil {
				if errors.Is(err, auth.ErrMissingToken) {
					writeError(w, http.StatusUnauthorized, "Unauthorized")
					return
				}
				requestLogger(logger, r).Debug("token rejected", zap.Error(err))
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}

			requestLogger(logger, r).Debug("authenticated request", zap.Int("user_id", userID))
			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
		})
	}
}

// Register creates a new user account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if _, err := h.authService.Register(r.Context(), req.Username, req.Password); err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			writeError(w, http.StatusBadRequest, "username and password are required")
		case errors.Is(err, services.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "username already exists")
		default:
			requestLogger(h.logger, r).Error("registration failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Registration failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "User registered successfully"})
}

// Login verifies credentials and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		requestLogger(h.logger, r).Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

type CredentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
// A missing header or token is ErrMissingToken; any other scheme is
// ErrInvalidToken.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
		return "", auth.ErrMissingToken
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", auth.ErrInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}
