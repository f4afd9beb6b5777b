// Package weather proxies the Open-Meteo geocoding and forecast APIs and
// reshapes the result for the school dashboard.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrLocationNotFound is returned when geocoding resolves no results.
var ErrLocationNotFound = errors.New("location not found")

const (
	defaultGeocodeURL  = "https://geocoding-api.open-meteo.com"
	defaultForecastURL = "https://api.open-meteo.com"
)

// Report is the reshaped weather response.
type Report struct {
	Location      string  `json:"location"`
	Temperature   float64 `json:"temperature"`
	FeelsLike     float64 `json:"feels_like"`
	Humidity      int     `json:"humidity"`
	Conditions    string  `json:"conditions"`
	WindSpeed     float64 `json:"wind_speed"`
	Precipitation float64 `json:"precipitation"`
	Time          string  `json:"time"`
}

// Client fetches weather data. Base URLs are overridable for tests.
type Client struct {
	GeocodeURL  string
	ForecastURL string
	HTTP        *http.Client
}

// NewClient returns a Client against the public Open-Meteo endpoints with
// a 10 second timeout.
func NewClient() *Client {
	return &Client{
		GeocodeURL:  defaultGeocodeURL,
		ForecastURL: defaultForecastURL,
		HTTP:        &http.Client{Timeout: 10 * time.Second},
	}
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Temperature         float64 `json:"temperature_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		RelativeHumidity    int     `json:"relative_humidity_2m"`
		WeatherCode         int     `json:"weather_code"`
		WindSpeed           float64 `json:"wind_speed_10m"`
		Precipitation       float64 `json:"precipitation"`
		Time                string  `json:"time"`
	} `json:"current"`
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Current geocodes the location and fetches the current conditions.
// Returns ErrLocationNotFound when geocoding yields no match; transport
// failures are returned wrapped for the caller to surface as 503.
func (c *Client) Current(ctx context.Context, location string) (*Report, error) {
	geocodeURL := fmt.Sprintf("%s/v1/search?name=%s&count=1",
		c.GeocodeURL, url.QueryEscape(location))

	var geo geocodeResponse
	if err := c.getJSON(ctx, geocodeURL, &geo); err != nil {
		return nil, fmt.Errorf("geocode %q: %w", location, err)
	}
	if len(geo.Results) == 0 {
		return nil, ErrLocationNotFound
	}
	place := geo.Results[0]

	forecastURL := fmt.Sprintf(
		"%s/v1/forecast?latitude=%g&longitude=%g&current=temperature_2m,apparent_temperature,relative_humidity_2m,weather_code,wind_speed_10m,precipitation&temperature_unit=fahrenheit&wind_speed_unit=mph",
		c.ForecastURL, place.Latitude, place.Longitude)

	var fc forecastResponse
	if err := c.getJSON(ctx, forecastURL, &fc); err != nil {
		return nil, fmt.Errorf("forecast for %q: %w", location, err)
	}

	return &Report{
		Location:      fmt.Sprintf("%s, %s", place.Name, place.Country),
		Temperature:   fc.Current.Temperature,
		FeelsLike:     fc.Current.ApparentTemperature,
		Humidity:      fc.Current.RelativeHumidity,
		Conditions:    ConditionFromCode(fc.Current.WeatherCode),
		WindSpeed:     fc.Current.WindSpeed,
		Precipitation: fc.Current.Precipitation,
		Time:          fc.Current.Time,
	}, nil
}

// wmoConditions maps WMO weather interpretation codes to display strings.
var wmoConditions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// ConditionFromCode returns a display string for a WMO weather code.
func ConditionFromCode(code int) string {
	if s, ok := wmoConditions[code]; ok {
		return s
	}
	return "Unknown"
}
