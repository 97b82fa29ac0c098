package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-cli/internal/models"
)

// UnknownPlace is the name used when reverse geocoding finds no settlement or region.
const UnknownPlace = "Unknown"

// LocationResolver turns a query into a named location with coordinates.
type LocationResolver interface {
	Resolve(ctx context.Context, q models.Query) (models.Location, error)
}

// GeocoderConfig addresses the forward (Open-Meteo) and reverse (Nominatim) geocoding services.
type GeocoderConfig struct {
	ForwardURL string
	ReverseURL string
	Timeout    time.Duration
	Language   string
	UserAgent  string
	// ReverseRatePerSec paces reverse lookups; Nominatim allows one per second. <= 0 disables pacing.
	ReverseRatePerSec float64
}

// Geocoder implements LocationResolver over HTTP.
type Geocoder struct {
	http       httpGetter
	forwardURL string
	reverseURL string
	language   string
	limiter    *rate.Limiter
}

// NewGeocoder creates a Geocoder.
func NewGeocoder(cfg GeocoderConfig) *Geocoder {
	limit := rate.Inf
	if cfg.ReverseRatePerSec > 0 {
		limit = rate.Limit(cfg.ReverseRatePerSec)
	}
	return &Geocoder{
		http:       newHTTPGetter(cfg.Timeout, cfg.UserAgent),
		forwardURL: cfg.ForwardURL,
		reverseURL: cfg.ReverseURL,
		language:   cfg.Language,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type forwardResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type reverseResponse struct {
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
	} `json:"address"`
}

// Resolve picks forward mode when a city is given, reverse mode when only coordinates are,
// and returns ErrInvalidInput when there is neither.
func (g *Geocoder) Resolve(ctx context.Context, q models.Query) (models.Location, error) {
	switch {
	case q.HasCity():
		return g.Forward(ctx, q.City)
	case q.HasCoordinates():
		return g.Reverse(ctx, *q.Lat, *q.Lon)
	default:
		return models.Location{}, ErrInvalidInput
	}
}

// Forward looks up a city name and returns the first match.
func (g *Geocoder) Forward(ctx context.Context, city string) (models.Location, error) {
	params := url.Values{}
	params.Set("name", city)
	params.Set("count", "1")
	params.Set("language", g.language)
	params.Set("format", "json")

	var resp forwardResponse
	if err := g.http.getJSON(ctx, "geocode", g.forwardURL, params, &resp); err != nil {
		return models.Location{}, fmt.Errorf("%w: geocode %q: %w", ErrResolution, city, err)
	}
	if len(resp.Results) == 0 {
		return models.Location{}, fmt.Errorf("%w: %q", ErrLocationNotFound, city)
	}

	first := resp.Results[0]
	name := first.Name
	if name == "" {
		name = city
	}
	return models.Location{Name: name, Latitude: first.Latitude, Longitude: first.Longitude}, nil
}

// Reverse names the place at lat/lon: city, then town, village, state, else UnknownPlace.
// The input coordinates are echoed back unchanged.
func (g *Geocoder) Reverse(ctx context.Context, lat, lon float64) (models.Location, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return models.Location{}, fmt.Errorf("%w: reverse geocode: %w", ErrResolution, err)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("format", "json")
	params.Set("accept-language", g.language)

	var resp reverseResponse
	if err := g.http.getJSON(ctx, "reverse_geocode", g.reverseURL, params, &resp); err != nil {
		return models.Location{}, fmt.Errorf("%w: reverse geocode %s,%s: %w", ErrResolution,
			models.FormatCoordinate(lat), models.FormatCoordinate(lon), err)
	}

	return models.Location{Name: placeName(resp), Latitude: lat, Longitude: lon}, nil
}

func placeName(resp reverseResponse) string {
	for _, name := range []string{resp.Address.City, resp.Address.Town, resp.Address.Village, resp.Address.State} {
		if name != "" {
			return name
		}
	}
	return UnknownPlace
}
