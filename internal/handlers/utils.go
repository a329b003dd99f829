package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type contextKey string

const contextUserIDKey contextKey = "userId"

var validate = validator.New()

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the body of successful writes.
type MessageResponse struct {
	Message string `json:"message"`
}

func withUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, contextUserIDKey, userID)
}

func userIDFromContext(ctx context.Context) (int, error) {
	userID, ok := ctx.Value(contextUserIDKey).(int)
	if !ok || userID < 1 {
		return 0, errors.New("missing subject")
	}
	return userID, nil
}

// decodeBody decodes the JSON request body into dst and validates its tags.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

func requestLogger(logger *zap.Logger, r *http.Request) *zap.Logger {
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		return logger.With(zap.String("request_id", reqID))
	}
	return logger
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
