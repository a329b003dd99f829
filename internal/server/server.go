package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/weatherkeep/apiserver/config"
	"github.com/weatherkeep/apiserver/internal/auth"
	"github.com/weatherkeep/apiserver/internal/db"
	"github.com/weatherkeep/apiserver/internal/events"
	"github.com/weatherkeep/apiserver/internal/mq"
	"github.com/weatherkeep/apiserver/internal/storage"
	"github.com/weatherkeep/apiserver/internal/store"
	"github.com/weatherkeep/apiserver/internal/weather"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	logger     *zap.Logger
}

// New connects the configured backends and constructs a Server.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gateway, err := weather.NewOpenWeatherClient(cfg.Weather)
	if err != nil {
		return nil, err
	}

	s := &Server{logger: logger}
	deps := Dependencies{
		Tokens:  auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Gateway: gateway,
		Logger:  logger,
	}

	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		logger.Warn("using in-memory user store; data is lost on restart")
		deps.Users = store.NewMemoryUserRepository()
	default:
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s.db = dbConn
		deps.Users = store.NewUserRepository(dbConn)
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.closeBackends()
		return nil, err
	}
	if queue != nil {
		s.queue = queue
		deps.Events = events.NewPublisher(queue, cfg.MQ.Channel)
		logger.Info("publishing history events", zap.String("backend", cfg.MQ.Backend), zap.String("channel", cfg.MQ.Channel))
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		s.closeBackends()
		return nil, err
	}
	if objects != nil {
		deps.Archive = objects
		logger.Info("archiving provider snapshots", zap.String("backend", cfg.Storage.Backend), zap.String("bucket", objects.Bucket()))
	}

	s.router = NewRouter(deps)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.closeBackends()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests and releases backends.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.closeBackends()
	return err
}

func (s *Server) closeBackends() {
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.logger.Warn("close message queue", zap.Error(err))
		}
		s.queue = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("close database", zap.Error(err))
		}
		s.db = nil
	}
}
