package store

import (
	"context"
	"sync"
	"time"

	"github.com/weatherkeep/apiserver/types"
)

// MemoryUserRepository keeps users in process memory. It backs tests and the
// "memory" store backend; data does not survive a restart.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	nextID int
	byID   map[int]*types.User
	byName map[string]int
	now    func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		nextID: 1,
		byID:   make(map[int]*types.User),
		byName: make(map[string]int),
		now:    time.Now,
	}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[username]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[user.Username]; exists {
		return types.User{}, ErrDuplicate
	}

	now := r.now()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.SavedWeather == nil {
		user.SavedWeather = []types.WeatherRecord{}
	}
	r.nextID++

	stored := cloneUser(&user)
	r.byID[user.ID] = &stored
	r.byName[user.Username] = user.ID
	return cloneUser(&stored), nil
}

func (r *MemoryUserRepository) AppendWeather(_ context.Context, userID int, record types.WeatherRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[userID]
	if !ok {
		return ErrNotFound
	}
	user.SavedWeather = append(user.SavedWeather, record)
	user.UpdatedAt = r.now()
	return nil
}

func (r *MemoryUserRepository) ListWeather(_ context.Context, userID int) ([]types.WeatherRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[userID]
	if !ok {
		return nil, ErrNotFound
	}
	records := make([]types.WeatherRecord, len(user.SavedWeather))
	copy(records, user.SavedWeather)
	return records, nil
}

func cloneUser(user *types.User) types.User {
	clone := *user
	clone.SavedWeather = make([]types.WeatherRecord, len(user.SavedWeather))
	copy(clone.SavedWeather, user.SavedWeather)
	return clone
}
