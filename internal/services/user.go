package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/weatherkeep/apiserver/internal/auth"
	"github.com/weatherkeep/apiserver/internal/store"
	"github.com/weatherkeep/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	AppendWeather(ctx context.Context, userID int, record types.WeatherRecord) error
	ListWeather(ctx context.Context, userID int) ([]types.WeatherRecord, error)
}

// TokenIssuer signs bearer tokens for a user ID.
type TokenIssuer interface {
	Issue(userID int) (string, error)
}

// AuthService registers users and exchanges credentials for tokens.
type AuthService struct {
	repo   UserRepository
	tokens TokenIssuer
}

func NewAuthService(repo UserRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{repo: repo, tokens: tokens}
}

// Register creates a user with an empty history.
func (s *AuthService) Register(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return types.User{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("%w: check username: %v", ErrPersistence, err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		PasswordHash: hashed,
		SavedWeather: []types.WeatherRecord{},
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrUsernameTaken
		}
		return types.User{}, fmt.Errorf("%w: create user: %v", ErrPersistence, err)
	}
	return user, nil
}

// Login verifies the credentials and issues a token for the user.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("%w: load user: %v", ErrPersistence, err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}
