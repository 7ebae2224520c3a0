package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	ErrLocationNotFound = errors.New("location not found")
	ErrInvalidResponse  = errors.New("invalid response from OpenWeatherMap API")
)

// Conditions is a normalized current-weather result
type Conditions struct {
	City        string
	Description string
	Icon        string
	Temperature float64
	FeelsLike   float64
	Humidity    int
	WindSpeed   float64
}

// OpenWeatherClient handles requests to the OpenWeatherMap API
type OpenWeatherClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenWeatherClient creates a new OpenWeatherMap API client
func NewOpenWeatherClient(baseURL, apiKey string) *OpenWeatherClient {
	return &OpenWeatherClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Current fetches the current weather at a latitude/longitude pair.
// Temperatures are in Celsius.
func (c *OpenWeatherClient) Current(ctx context.Context, lat, lon float64) (*Conditions, error) {
	url := fmt.Sprintf("%s/data/2.5/weather?lat=%.6f&lon=%.6f&appid=%s&units=metric", c.baseURL, lat, lon, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Retry logic with exponential backoff
	var resp *http.Response
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, lastErr = c.httpClient.Do(req)
		if lastErr == nil && resp.StatusCode == http.StatusOK {
			break
		}
		if resp != nil {
			resp.Body.Close()
		}
		if attempt < 3 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("failed to fetch weather after 3 attempts: %w", lastErr)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrLocationNotFound
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp.Body)
}

type currentWeatherResponse struct {
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Name string `json:"name"`
}

func (c *OpenWeatherClient) parseResponse(body io.Reader) (*Conditions, error) {
	var payload currentWeatherResponse
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(payload.Weather) == 0 {
		return nil, ErrInvalidResponse
	}

	return &Conditions{
		City:        payload.Name,
		Description: payload.Weather[0].Description,
		Icon:        payload.Weather[0].Icon,
		Temperature: payload.Main.Temp,
		FeelsLike:   payload.Main.FeelsLike,
		Humidity:    payload.Main.Humidity,
		WindSpeed:   payload.Wind.Speed,
	}, nil
}
