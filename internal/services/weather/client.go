package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"firesmoke-api/internal/config"
	"firesmoke-api/internal/models"
)

// defaultVisibility is used when the provider omits visibility
const defaultVisibility = 10000

// Provider fetches current weather for a city
type Provider interface {
	Current(ctx context.Context, city string) (*models.WeatherContext, error)
}

// Client fetches current conditions from OpenWeatherMap
type Client struct {
	baseURL     string
	apiKey      string
	defaultCity string
	httpClient  *http.Client
}

// NewClient creates a weather client from config
func NewClient(cfg *config.Config) *Client {
	timeout := cfg.WeatherTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:     cfg.WeatherBaseURL,
		apiKey:      cfg.WeatherAPIKey,
		defaultCity: cfg.WeatherCity,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type owmResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Visibility *float64 `json:"visibility"`
}

// Current returns the weather for city, or the configured default city when
// empty. It returns ErrNotConfigured when no API key is set.
func (c *Client) Current(ctx context.Context, city string) (*models.WeatherContext, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openweather api key: %w", models.ErrNotConfigured)
	}
	if city == "" {
		city = c.defaultCity
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.ProviderError{Provider: "openweather", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.ProviderError{
			Provider:   "openweather",
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	var data owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse weather response: %w", err)
	}
	if len(data.Weather) == 0 {
		return nil, fmt.Errorf("weather response has no conditions")
	}

	visibility := float64(defaultVisibility)
	if data.Visibility != nil {
		visibility = *data.Visibility
	}

	return &models.WeatherContext{
		Condition:   data.Weather[0].Main,
		Description: data.Weather[0].Description,
		Temperature: data.Main.Temp,
		Humidity:    data.Main.Humidity,
		Visibility:  visibility,
		City:        data.Name,
	}, nil
}

// Lookup fetches weather and degrades any failure to an absent context.
// Missing credentials are logged at debug level only.
func Lookup(ctx context.Context, p Provider, city string) *models.WeatherContext {
	if p == nil {
		return nil
	}
	w, err := p.Current(ctx, city)
	if err != nil {
		if errors.Is(err, models.ErrNotConfigured) {
			log.Debug().Msg("Weather context skipped, provider not configured")
		} else {
			log.Warn().Err(err).Str("city", city).Msg("Weather lookup failed, continuing without context")
		}
		return nil
	}
	return w
}
