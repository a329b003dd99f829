package types

import (
	"encoding/json"
	"time"
)

// WeatherRecord is one saved weather snapshot. Records are immutable once
// appended to a user's history.
type WeatherRecord struct {
	// City is the provider's normalized display name, not the raw query.
	City string `json:"city"`

	// Temperature is in degrees Celsius.
	Temperature float64 `json:"temperature"`

	// Description is the provider's short condition text.
	Description string `json:"description"`

	// Date is the server time at which the record was saved.
	Date time.Time `json:"date"`
}

// CurrentWeather is a provider response for a city lookup.
type CurrentWeather struct {
	// Raw is the provider body as received.
	Raw json.RawMessage

	Name        string
	Temperature float64
	Description string
}

// Record builds a WeatherRecord stamped with the given save time.
func (c CurrentWeather) Record(savedAt time.Time) WeatherRecord {
	return WeatherRecord{
		City:        c.Name,
		Temperature: c.Temperature,
		Description: c.Description,
		Date:        savedAt.UTC(),
	}
}

// WeatherSavedEvent is published after a record is appended to a user's history.
type WeatherSavedEvent struct {
	UserID int           `json:"user_id"`
	Record WeatherRecord `json:"record"`
}
