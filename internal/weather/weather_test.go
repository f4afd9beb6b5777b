package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, geocodeBody, forecastBody string) *Client {
	t.Helper()

	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(geocodeBody))
	}))
	t.Cleanup(geo.Close)

	fc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(forecastBody))
	}))
	t.Cleanup(fc.Close)

	c := NewClient()
	c.GeocodeURL = geo.URL
	c.ForecastURL = fc.URL
	return c
}

const geocodeNYC = `{"results":[{"name":"New York","country":"United States","latitude":40.71,"longitude":-74.01}]}`

const forecastClear = `{"current":{
	"temperature_2m": 72.5,
	"apparent_temperature": 70.1,
	"relative_humidity_2m": 45,
	"weather_code": 0,
	"wind_speed_10m": 8.3,
	"precipitation": 0.0,
	"time": "2026-08-27T14:00"
}}`

func TestCurrent(t *testing.T) {
	c := newTestClient(t, geocodeNYC, forecastClear)

	report, err := c.Current(context.Background(), "New York")
	require.NoError(t, err)

	assert.Equal(t, "New York, United States", report.Location)
	assert.Equal(t, 72.5, report.Temperature)
	assert.Equal(t, 70.1, report.FeelsLike)
	assert.Equal(t, 45, report.Humidity)
	assert.Equal(t, "Clear sky", report.Conditions)
	assert.Equal(t, 8.3, report.WindSpeed)
	assert.Equal(t, 0.0, report.Precipitation)
	assert.Equal(t, "2026-08-27T14:00", report.Time)
}

func TestCurrent_LocationNotFound(t *testing.T) {
	c := newTestClient(t, `{"results":[]}`, forecastClear)

	_, err := c.Current(context.Background(), "Nowhereville")
	assert.ErrorIs(t, err, ErrLocationNotFound)
}

func TestCurrent_GeocodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewClient()
	c.GeocodeURL = srv.URL
	c.ForecastURL = srv.URL

	_, err := c.Current(context.Background(), "New York")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocationNotFound)
}

func TestConditionFromCode(t *testing.T) {
	assert.Equal(t, "Clear sky", ConditionFromCode(0))
	assert.Equal(t, "Partly cloudy", ConditionFromCode(2))
	assert.Equal(t, "Thunderstorm", ConditionFromCode(95))
	assert.Equal(t, "Unknown", ConditionFromCode(42))
}
