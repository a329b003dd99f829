package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/weatherkeep/apiserver/types"
)

const uniqueViolation = "23505"

// UserRepository persists users as documents: account columns plus a JSONB
// array holding the saved weather history.
type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT id, username, password_hash, saved_weather, created_at, updated_at
		FROM users
		WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `
		SELECT id, username, password_hash, saved_weather, created_at, updated_at
		FROM users
		WHERE username = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := r.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.SavedWeather == nil {
		user.SavedWeather = []types.WeatherRecord{}
	}

	history, err := json.Marshal(user.SavedWeather)
	if err != nil {
		return types.User{}, fmt.Errorf("encode saved weather: %w", err)
	}

	const query = `
		INSERT INTO users (username, password_hash, saved_weather, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.PasswordHash,
		history,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return types.User{}, ErrDuplicate
		}
		return types.User{}, err
	}
	return user, nil
}

// AppendWeather pushes record onto the user's history in a single UPDATE so
// concurrent appends for the same user cannot overwrite each other.
func (r *UserRepository) AppendWeather(ctx context.Context, userID int, record types.WeatherRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode weather record: %w", err)
	}

	const query = `
		UPDATE users
		SET saved_weather = saved_weather || jsonb_build_array($1::jsonb),
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, payload, r.now(), userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWeather loads only the history column for the user.
func (r *UserRepository) ListWeather(ctx context.Context, userID int) ([]types.WeatherRecord, error) {
	const query = `SELECT saved_weather FROM users WHERE id = $1`
	var raw []byte
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeHistory(raw)
}

func (r *UserRepository) scanUser(row *sql.Row) (types.User, error) {
	var (
		user types.User
		raw  []byte
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&raw,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.SavedWeather, err = decodeHistory(raw)
	if err != nil {
		return types.User{}, err
	}
	return user, nil
}

func decodeHistory(raw []byte) ([]types.WeatherRecord, error) {
	records := []types.WeatherRecord{}
	if len(raw) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode saved weather: %w", err)
	}
	if records == nil {
		records = []types.WeatherRecord{}
	}
	return records, nil
}
