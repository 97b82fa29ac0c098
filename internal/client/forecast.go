package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/kjstillabower/weather-cli/internal/models"
)

// WeatherFetcher retrieves current conditions for a resolved location.
type WeatherFetcher interface {
	GetCurrentWeather(ctx context.Context, loc models.Location) (models.WeatherRecord, error)
}

// ForecastClient implements WeatherFetcher against the Open-Meteo forecast endpoint.
type ForecastClient struct {
	http   httpGetter
	apiURL string
}

// NewForecastClient creates a ForecastClient; timeout bounds each request.
func NewForecastClient(apiURL string, timeout time.Duration, userAgent string) *ForecastClient {
	return &ForecastClient{
		http:   newHTTPGetter(timeout, userAgent),
		apiURL: apiURL,
	}
}

type forecastResponse struct {
	CurrentWeather *struct {
		Temperature   float64 `json:"temperature"`
		WindSpeed     float64 `json:"windspeed"`
		WindDirection float64 `json:"winddirection"`
		Time          string  `json:"time"`
	} `json:"current_weather"`
}

// GetCurrentWeather fetches current conditions at loc. The record carries loc's name and
// coordinates, not the grid point Open-Meteo reports. Every failure is wrapped in ErrFetch.
func (c *ForecastClient) GetCurrentWeather(ctx context.Context, loc models.Location) (models.WeatherRecord, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	params.Set("current_weather", "true")

	var resp forecastResponse
	if err := c.http.getJSON(ctx, "forecast", c.apiURL, params, &resp); err != nil {
		return models.WeatherRecord{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if resp.CurrentWeather == nil {
		return models.WeatherRecord{}, fmt.Errorf("%w: %w", ErrFetch, errors.New("parse response: current_weather missing"))
	}

	cw := resp.CurrentWeather
	return models.WeatherRecord{
		City:      loc.Name,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Current: models.CurrentConditions{
			Temperature:   cw.Temperature,
			WindSpeed:     cw.WindSpeed,
			WindDirection: int(math.Round(cw.WindDirection)),
			Time:          cw.Time,
		},
	}, nil
}
