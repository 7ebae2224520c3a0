package geo

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
	ErrAddressNotFound = errors.New("address not found")
	ErrInvalidResponse = errors.New("invalid response from AMap API")
)

// Address is a normalized reverse-geocode result
type Address struct {
	FormattedAddress string
	Province         string
	City             string
	District         string
	Street           string
}

// AMapClient handles requests to the AMap reverse-geocode API
type AMapClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewAMapClient creates a new AMap API client
func NewAMapClient(baseURL, apiKey string) *AMapClient {
	return &AMapClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ReverseGeocode resolves a longitude/latitude pair into an address
func (c *AMapClient) ReverseGeocode(ctx context.Context, lng, lat float64) (*Address, error) {
	url := fmt.Sprintf("%s/v3/geocode/regeo?key=%s&location=%.6f,%.6f", c.baseURL, c.apiKey, lng, lat)

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
		return nil, fmt.Errorf("failed to fetch address after 3 attempts: %w", lastErr)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp.Body)
}

// regeoResponse mirrors the AMap regeo payload. Address component fields
// come back as empty arrays instead of strings when the value is absent.
type regeoResponse struct {
	Status    string `json:"status"`
	Info      string `json:"info"`
	Regeocode struct {
		FormattedAddress flexString `json:"formatted_address"`
		AddressComponent struct {
			Province     flexString `json:"province"`
			City         flexString `json:"city"`
			District     flexString `json:"district"`
			StreetNumber struct {
				Street flexString `json:"street"`
			} `json:"streetNumber"`
		} `json:"addressComponent"`
	} `json:"regeocode"`
}

func (c *AMapClient) parseResponse(body io.Reader) (*Address, error) {
	var payload regeoResponse
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// AMap signals success with status "1"
	if payload.Status != "1" {
		if payload.Info != "" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, payload.Info)
		}
		return nil, ErrInvalidResponse
	}

	if payload.Regeocode.FormattedAddress == "" {
		return nil, ErrAddressNotFound
	}

	component := payload.Regeocode.AddressComponent
	return &Address{
		FormattedAddress: string(payload.Regeocode.FormattedAddress),
		Province:         string(component.Province),
		City:             string(component.City),
		District:         string(component.District),
		Street:           string(component.StreetNumber.Street),
	}, nil
}

// flexString accepts either a JSON string or the empty array AMap emits
// for missing values.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*s = flexString(value)
	}
	return nil
}
