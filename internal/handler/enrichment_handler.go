package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"littlejoys/internal/geo"
	"littlejoys/internal/weather"
)

// GeocodeProvider resolves coordinates into an address.
type GeocodeProvider interface {
	ReverseGeocode(ctx context.Context, lng, lat float64) (*geo.Address, error)
}

// WeatherProvider fetches the current weather at coordinates.
type WeatherProvider interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Conditions, error)
}

// EnrichmentHandler serves the location and weather lookups used when
// composing a post. Provider API keys stay on the server.
type EnrichmentHandler struct {
	geocoder GeocodeProvider
	weather  WeatherProvider
}

// NewEnrichmentHandler creates a new EnrichmentHandler
func NewEnrichmentHandler(geocoder GeocodeProvider, weatherProvider WeatherProvider) *EnrichmentHandler {
	return &EnrichmentHandler{
		geocoder: geocoder,
		weather:  weatherProvider,
	}
}

// AddressResponse is the reverse-geocode payload
type AddressResponse struct {
	FormattedAddress string `json:"formatted_address"`
	Province         string `json:"province"`
	City             string `json:"city"`
	District         string `json:"district"`
	Street           string `json:"street"`
}

// WeatherResponse is the current-weather payload
type WeatherResponse struct {
	City        string  `json:"city"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

// ReverseGeocode handles GET /api/v1/location/reverse-geocode
func (h *EnrichmentHandler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat, lng, ok := coordinates(w, r)
	if !ok {
		return
	}

	address, err := h.geocoder.ReverseGeocode(r.Context(), lng, lat)
	if err != nil {
		if errors.Is(err, geo.ErrAddressNotFound) {
			writeError(w, http.StatusNotFound, "No address at this location")
			return
		}
		slog.Error("Reverse geocode failed", "error", err)
		writeError(w, http.StatusBadGateway, "Location service unavailable")
		return
	}

	writeSuccess(w, http.StatusOK, AddressResponse{
		FormattedAddress: address.FormattedAddress,
		Province:         address.Province,
		City:             address.City,
		District:         address.District,
		Street:           address.Street,
	}, "")
}

// CurrentWeather handles GET /api/v1/weather/current
func (h *EnrichmentHandler) CurrentWeather(w http.ResponseWriter, r *http.Request) {
	lat, lng, ok := coordinates(w, r)
	if !ok {
		return
	}

	conditions, err := h.weather.Current(r.Context(), lat, lng)
	if err != nil {
		if errors.Is(err, weather.ErrLocationNotFound) {
			writeError(w, http.StatusNotFound, "No weather data for this location")
			return
		}
		slog.Error("Weather lookup failed", "error", err)
		writeError(w, http.StatusBadGateway, "Weather service unavailable")
		return
	}

	writeSuccess(w, http.StatusOK, WeatherResponse{
		City:        conditions.City,
		Description: conditions.Description,
		Icon:        conditions.Icon,
		Temperature: conditions.Temperature,
		FeelsLike:   conditions.FeelsLike,
		Humidity:    conditions.Humidity,
		WindSpeed:   conditions.WindSpeed,
	}, "")
}

// coordinates parses and range-checks the lat/lng query parameters.
// It writes a 400 response and returns ok=false on invalid input.
func coordinates(w http.ResponseWriter, r *http.Request) (lat, lng float64, ok bool) {
	var err error
	lat, err = strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		writeError(w, http.StatusBadRequest, "Invalid latitude")
		return 0, 0, false
	}

	lng, err = strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err != nil || lng < -180 || lng > 180 {
		writeError(w, http.StatusBadRequest, "Invalid longitude")
		return 0, 0, false
	}

	return lat, lng, true
}
