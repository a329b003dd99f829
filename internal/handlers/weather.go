package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/weatherkeep/apiserver/internal/services"
)

// WeatherHandler serves weather lookups and the caller's saved history.
type WeatherHandler struct {
	historyService *services.HistoryService
	logger         *zap.Logger
}

// NewWeatherHandler constructs a WeatherHandler with the provided service.
func NewWeatherHandler(historyService *services.HistoryService, logger *zap.Logger) *WeatherHandler {
	return &WeatherHandler{
		historyService: historyService,
		logger:         logger,
	}
}

// WeatherRouter registers weather routes on the given router. The history
// routes sit behind authMiddleware.
func WeatherRouter(
	r chi.Router,
	historyService *services.HistoryService,
	authMiddleware func(http.Handler) http.Handler,
	logger *zap.Logger,
) {
	handler := NewWeatherHandler(historyService, logger)

	r.Get("/weather/{city}", handler.GetWeather)
	r.With(authMiddleware).Post("/save-weather", handler.SaveWeather)
	r.With(authMiddleware).Get("/saved-weather", handler.SavedWeather)
}

// GetWeather proxies the provider's current conditions for a city.
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")

	current, err := h.historyService.Fetch(r.Context(), city)
	if err != nil {
		requestLogger(h.logger, r).Error("weather fetch failed", zap.String("city", city), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch weather data")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(current.Raw)
}

// SaveWeather appends the current weather for the requested city to the
// caller's history.
func (h *WeatherHandler) SaveWeather(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req SaveWeatherRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "city is required")
		return
	}

	if _, err := h.historyService.SaveForUser(r.Context(), userID, req.City); err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, services.ErrValidation):
			writeError(w, http.StatusBadRequest, "city is required")
		default:
			requestLogger(h.logger, r).Error("save weather failed",
				zap.Int("user_id", userID), zap.String("city", req.City), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to save weather")
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Weather saved successfully"})
}

// SavedWeather returns the caller's history in the order it was saved.
func (h *WeatherHandler) SavedWeather(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	records, err := h.historyService.ListForUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		requestLogger(h.logger, r).Error("fetch saved weather failed", zap.Int("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch saved weather data")
		return
	}

	writeJSON(w, http.StatusOK, records)
}

type SaveWeatherRequest struct {
	City string `json:"city" validate:"required"`
}
