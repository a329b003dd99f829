package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/weatherkeep/apiserver/internal/observability"
	"github.com/weatherkeep/apiserver/internal/store"
	"github.com/weatherkeep/apiserver/internal/weather"
	"github.com/weatherkeep/apiserver/types"
)

// WeatherGateway resolves a city name against the upstream provider.
type WeatherGateway interface {
	FetchCurrent(ctx context.Context, city string) (types.CurrentWeather, error)
}

// EventPublisher announces appended records.
type EventPublisher interface {
	WeatherSaved(ctx context.Context, userID int, record types.WeatherRecord) (string, error)
}

// SnapshotArchiver keeps a copy of the raw provider payload behind a record.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, userID int, payload []byte) (string, error)
}

// HistoryService appends to and reads users' saved weather.
type HistoryService struct {
	repo    UserRepository
	gateway WeatherGateway
	logger  *zap.Logger
	now     func() time.Time

	events  EventPublisher
	archive SnapshotArchiver
}

// HistoryOption configures optional HistoryService collaborators.
type HistoryOption func(*HistoryService)

// WithEvents publishes a weather.saved event after each append.
func WithEvents(p EventPublisher) HistoryOption {
	return func(s *HistoryService) { s.events = p }
}

// WithArchive stores the raw provider payload after each append.
func WithArchive(a SnapshotArchiver) HistoryOption {
	return func(s *HistoryService) { s.archive = a }
}

// WithClock overrides the save timestamp source.
func WithClock(now func() time.Time) HistoryOption {
	return func(s *HistoryService) { s.now = now }
}

func NewHistoryService(repo UserRepository, gateway WeatherGateway, logger *zap.Logger, opts ...HistoryOption) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &HistoryService{
		repo:    repo,
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns current weather for city straight from the provider.
func (s *HistoryService) Fetch(ctx context.Context, city string) (types.CurrentWeather, error) {
	current, err := s.gateway.FetchCurrent(ctx, city)
	if err != nil {
		if errors.Is(err, weather.ErrEmptyCity) {
			return types.CurrentWeather{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return types.CurrentWeather{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return current, nil
}

// SaveForUser resolves city and appends the resulting record to the user's
// history. Nothing is appended when the provider lookup fails.
func (s *HistoryService) SaveForUser(ctx context.Context, userID int, city string) (types.WeatherRecord, error) {
	current, err := s.Fetch(ctx, city)
	if err != nil {
		return types.WeatherRecord{}, err
	}

	record := current.Record(s.now())
	if err := s.repo.AppendWeather(ctx, userID, record); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.WeatherRecord{}, ErrNotFound
		}
		return types.WeatherRecord{}, fmt.Errorf("%w: append weather: %v", ErrPersistence, err)
	}
	observability.WeatherRecordsSavedTotal.Inc()

	s.afterSave(ctx, userID, record, current.Raw)
	return record, nil
}

// ListForUser returns the user's history in insertion order.
func (s *HistoryService) ListForUser(ctx context.Context, userID int) ([]types.WeatherRecord, error) {
	records, err := s.repo.ListWeather(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: list weather: %v", ErrPersistence, err)
	}
	if records == nil {
		records = []types.WeatherRecord{}
	}
	return records, nil
}

// afterSave runs the optional side effects. Their failures never undo or
// fail the append.
func (s *HistoryService) afterSave(ctx context.Context, userID int, record types.WeatherRecord, raw []byte) {
	logger := s.logger.With(zap.Int("user_id", userID), zap.String("city", record.City))

	if s.events != nil {
		if id, err := s.events.WeatherSaved(ctx, userID, record); err != nil {
			logger.Warn("publish weather saved event failed", zap.Error(err))
		} else {
			logger.Debug("published weather saved event", zap.String("message_id", id))
		}
	}

	if s.archive != nil && len(raw) > 0 {
		if key, err := s.archive.ArchiveSnapshot(ctx, userID, raw); err != nil {
			logger.Warn("archive weather snapshot failed", zap.Error(err))
		} else {
			logger.Debug("archived weather snapshot", zap.String("key", key))
		}
	}
}
