package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/weatherkeep/apiserver/internal/auth"
	"github.com/weatherkeep/apiserver/internal/handlers"
	"github.com/weatherkeep/apiserver/internal/observability"
	"github.com/weatherkeep/apiserver/internal/services"
)

// Dependencies are the collaborators the HTTP surface is assembled from.
// Events and Archive are optional.
type Dependencies struct {
	Users   services.UserRepository
	Tokens  *auth.TokenManager
	Gateway services.WeatherGateway
	Events  services.EventPublisher
	Archive services.SnapshotArchiver
	Logger  *zap.Logger
}

// NewRouter wires services and handlers onto a chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var historyOpts []services.HistoryOption
	if deps.Events != nil {
		historyOpts = append(historyOpts, services.WithEvents(deps.Events))
	}
	if deps.Archive != nil {
		historyOpts = append(historyOpts, services.WithArchive(deps.Archive))
	}

	authService := services.NewAuthService(deps.Users, deps.Tokens)
	historyService := services.NewHistoryService(deps.Users, deps.Gateway, logger, historyOpts...)
	authMiddleware := handlers.RequireAuth(deps.Tokens, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(logger),
		handlers.Recoverer(logger),
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}),
		middleware.Timeout(60*time.Second),
	)
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)

	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", observability.MetricsHandler())
	router.Group(func(r chi.Router) {
		handlers.AuthRouter(r, authService, logger)
	})
	router.Group(func(r chi.Router) {
		handlers.WeatherRouter(r, historyService, authMiddleware, logger)
	})

	return router
}
