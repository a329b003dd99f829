package types

import "time"

// User represents a registered account and its saved weather history.
type User struct {
	// ID is the store-assigned identifier carried in issued tokens.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// SavedWeather is the user's history in insertion order. It only grows.
	SavedWeather []WeatherRecord `json:"saved_weather" db:"saved_weather"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent history append.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
