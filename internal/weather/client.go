package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/weatherkeep/apiserver/config"
	"github.com/weatherkeep/apiserver/internal/observability"
	"github.com/weatherkeep/apiserver/types"
)

const currentWeatherPath = "/data/2.5/weather"

var (
	// ErrUpstream covers every provider failure: transport errors, unknown
	// cities, bad keys and undecodable bodies.
	ErrUpstream = errors.New("weather provider failure")
	// ErrEmptyCity is returned before any request when no city is given.
	ErrEmptyCity = errors.New("city is required")
)

// OpenWeatherClient fetches current conditions from OpenWeatherMap.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewOpenWeatherClient(cfg config.WeatherConfig) (*OpenWeatherClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openweathermap api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("openweathermap url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid openweathermap url: %w", err)
	}

	return &OpenWeatherClient{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type openWeatherResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// FetchCurrent looks up city in metric units. The provider body is returned
// unmodified alongside the fields a saved record needs.
func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, city string) (types.CurrentWeather, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return types.CurrentWeather{}, ErrEmptyCity
	}

	start := time.Now()
	status := "error"
	defer func() {
		observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
		observability.WeatherAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	req, err := c.buildRequest(ctx, city)
	if err != nil {
		return types.CurrentWeather{}, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return types.CurrentWeather{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	status = observability.StatusLabel(resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.CurrentWeather{}, fmt.Errorf("%w: read response body: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.CurrentWeather{}, fmt.Errorf("%w: HTTP %d", ErrUpstream, resp.StatusCode)
	}

	var parsed openWeatherResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		status = "error"
		return types.CurrentWeather{}, fmt.Errorf("%w: parse response: %v", ErrUpstream, err)
	}
	if parsed.Name == "" || parsed.Main.Temp == nil || len(parsed.Weather) == 0 {
		status = "error"
		return types.CurrentWeather{}, fmt.Errorf("%w: incomplete response", ErrUpstream)
	}

	return types.CurrentWeather{
		Raw:         json.RawMessage(body),
		Name:        parsed.Name,
		Temperature: *parsed.Main.Temp,
		Description: parsed.Weather[0].Description,
	}, nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, city string) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + currentWeatherPath)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
