package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/weather-cli/internal/models"
)

func f64(v float64) *float64 { return &v }

func newTestGeocoder(forwardURL, reverseURL string) *Geocoder {
	return NewGeocoder(GeocoderConfig{
		ForwardURL: forwardURL,
		ReverseURL: reverseURL,
		Timeout:    2 * time.Second,
		Language:   "en",
		UserAgent:  "weather-cli-test/1.0",
	})
}

func jsonHandler(t *testing.T, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("encode: %v", err)
		}
	}
}

// TestGeocoder_Forward_Success verifies the request parameters and that the first result is used.
func TestGeocoder_Forward_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("name") != "Moscow" {
			t.Errorf("name = %q, want Moscow", q.Get("name"))
		}
		if q.Get("count") != "1" {
			t.Errorf("count = %q, want 1", q.Get("count"))
		}
		if q.Get("language") != "en" {
			t.Errorf("language = %q, want en", q.Get("language"))
		}
		jsonHandler(t, map[string]any{
			"results": []map[string]any{
				{"name": "Moscow", "latitude": 55.75, "longitude": 37.61},
				{"name": "Moscow, Idaho", "latitude": 46.73, "longitude": -117.0},
			},
		})(w, r)
	}))
	defer server.Close()

	g := newTestGeocoder(server.URL, "")
	got, err := g.Forward(context.Background(), "Moscow")
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	want := models.Location{Name: "Moscow", Latitude: 55.75, Longitude: 37.61}
	if got != want {
		t.Errorf("Forward() = %+v, want %+v", got, want)
	}
}

// TestGeocoder_Forward_NotFound verifies that an empty or absent result set is a not-found error,
// not a resolution error.
func TestGeocoder_Forward_NotFound(t *testing.T) {
	bodies := map[string]any{
		"empty results":  map[string]any{"results": []any{}},
		"absent results": map[string]any{"generationtime_ms": 0.5},
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(jsonHandler(t, body))
			defer server.Close()

			_, err := newTestGeocoder(server.URL, "").Forward(context.Background(), "Atlantis")
			if !errors.Is(err, ErrLocationNotFound) {
				t.Fatalf("Forward() error = %v, want ErrLocationNotFound", err)
			}
			if errors.Is(err, ErrResolution) {
				t.Errorf("not-found should not be reported as ErrResolution: %v", err)
			}
		})
	}
}

// TestGeocoder_Forward_Failures verifies that status, parse and network failures are resolution errors.
func TestGeocoder_Forward_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name:    "500",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			wantErr: ErrUpstreamFailure,
		},
		{
			name:    "429",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			wantErr: ErrRateLimited,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"results": [`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := newTestGeocoder(server.URL, "").Forward(context.Background(), "Moscow")
			if !errors.Is(err, ErrResolution) {
				t.Fatalf("Forward() error = %v, want ErrResolution", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Forward() error = %v, want wrapping %v", err, tt.wantErr)
			}
		})
	}
}

// TestGeocoder_Forward_NetworkError verifies that an unreachable service is a resolution error.
func TestGeocoder_Forward_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestGeocoder(url, "").Forward(context.Background(), "Moscow")
	if !errors.Is(err, ErrResolution) {
		t.Fatalf("Forward() error = %v, want ErrResolution", err)
	}
	if CategorizeError(err) != ErrorCategoryNetwork {
		t.Errorf("CategorizeError() = %v, want network", CategorizeError(err))
	}
}

// TestGeocoder_Reverse_NamePriority verifies city > town > village > state > "Unknown", and that
// the input coordinates are echoed back.
func TestGeocoder_Reverse_NamePriority(t *testing.T) {
	tests := []struct {
		name    string
		address map[string]string
		want    string
	}{
		{"city", map[string]string{"city": "Moscow", "town": "T", "village": "V", "state": "S"}, "Moscow"},
		{"town", map[string]string{"town": "Khimki", "village": "V", "state": "S"}, "Khimki"},
		{"village", map[string]string{"village": "Gorki", "state": "S"}, "Gorki"},
		{"state", map[string]string{"state": "Moscow Oblast"}, "Moscow Oblast"},
		{"nothing", map[string]string{"road": "Tverskaya"}, UnknownPlace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(jsonHandler(t, map[string]any{"address": tt.address}))
			defer server.Close()

			got, err := newTestGeocoder("", server.URL).Reverse(context.Background(), 55.75, 37.61)
			if err != nil {
				t.Fatalf("Reverse() error = %v", err)
			}
			want := models.Location{Name: tt.want, Latitude: 55.75, Longitude: 37.61}
			if got != want {
				t.Errorf("Reverse() = %+v, want %+v", got, want)
			}
		})
	}
}

// TestGeocoder_Reverse_NoAddress verifies that a response without any address block yields "Unknown".
func TestGeocoder_Reverse_NoAddress(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, map[string]any{"error": "Unable to geocode"}))
	defer server.Close()

	got, err := newTestGeocoder("", server.URL).Reverse(context.Background(), 0, -140)
	if err != nil {
		t.Fatalf("Reverse() error = %v", err)
	}
	if got.Name != UnknownPlace {
		t.Errorf("Name = %q, want %q", got.Name, UnknownPlace)
	}
}

// TestGeocoder_Reverse_Request verifies query parameters and the User-Agent header Nominatim requires.
func TestGeocoder_Reverse_Request(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("lat") != "55.75" || q.Get("lon") != "37.61" {
			t.Errorf("lat/lon = %q/%q, want 55.75/37.61", q.Get("lat"), q.Get("lon"))
		}
		if q.Get("format") != "json" {
			t.Errorf("format = %q, want json", q.Get("format"))
		}
		if q.Get("accept-language") != "en" {
			t.Errorf("accept-language = %q, want en", q.Get("accept-language"))
		}
		if ua := r.Header.Get("User-Agent"); ua != "weather-cli-test/1.0" {
			t.Errorf("User-Agent = %q", ua)
		}
		jsonHandler(t, map[string]any{"address": map[string]string{"city": "Moscow"}})(w, r)
	}))
	defer server.Close()

	if _, err := newTestGeocoder("", server.URL).Reverse(context.Background(), 55.75, 37.61); err != nil {
		t.Fatalf("Reverse() error = %v", err)
	}
}

// TestGeocoder_Reverse_Failure verifies that a failing reverse service is a resolution error.
func TestGeocoder_Reverse_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestGeocoder("", server.URL).Reverse(context.Background(), 55.75, 37.61)
	if !errors.Is(err, ErrResolution) || !errors.Is(err, ErrUpstreamFailure) {
		t.Errorf("Reverse() error = %v, want ErrResolution wrapping ErrUpstreamFailure", err)
	}
}

// TestGeocoder_Resolve_ModeSelection verifies forward precedence, reverse for coordinates only,
// and ErrInvalidInput with no network call when neither is given.
func TestGeocoder_Resolve_ModeSelection(t *testing.T) {
	var forwardCalls, reverseCalls atomic.Int32
	forward := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwardCalls.Add(1)
		jsonHandler(t, map[string]any{"results": []map[string]any{{"name": "Paris", "latitude": 48.85, "longitude": 2.35}}})(w, r)
	}))
	defer forward.Close()
	reverse := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reverseCalls.Add(1)
		jsonHandler(t, map[string]any{"address": map[string]string{"town": "Khimki"}})(w, r)
	}))
	defer reverse.Close()
	g := newTestGeocoder(forward.URL, reverse.URL)
	ctx := context.Background()

	loc, err := g.Resolve(ctx, models.Query{City: "Paris", Lat: f64(1), Lon: f64(2)})
	if err != nil || loc.Name != "Paris" {
		t.Errorf("Resolve(city+coords) = %+v, %v; want Paris via forward", loc, err)
	}
	if forwardCalls.Load() != 1 || reverseCalls.Load() != 0 {
		t.Errorf("calls forward=%d reverse=%d, want 1/0", forwardCalls.Load(), reverseCalls.Load())
	}

	loc, err = g.Resolve(ctx, models.Query{Lat: f64(55.9), Lon: f64(37.4)})
	if err != nil || loc.Name != "Khimki" {
		t.Errorf("Resolve(coords) = %+v, %v; want Khimki via reverse", loc, err)
	}

	_, err = g.Resolve(ctx, models.Query{Lat: f64(55.9)})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Resolve(half pair) error = %v, want ErrInvalidInput", err)
	}
	_, err = g.Resolve(ctx, models.Query{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Resolve(empty) error = %v, want ErrInvalidInput", err)
	}
	if forwardCalls.Load() != 1 || reverseCalls.Load() != 1 {
		t.Errorf("invalid input must not call upstream; forward=%d reverse=%d", forwardCalls.Load(), reverseCalls.Load())
	}
}

// TestGeocoder_Reverse_RateLimited verifies that back-to-back reverse lookups are paced.
func TestGeocoder_Reverse_RateLimited(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, map[string]any{"address": map[string]string{"city": "X"}}))
	defer server.Close()
	g := NewGeocoder(GeocoderConfig{ReverseURL: server.URL, Timeout: 2 * time.Second, ReverseRatePerSec: 10})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := g.Reverse(context.Background(), 1, 2); err != nil {
			t.Fatalf("Reverse() error = %v", err)
		}
	}
	// burst 1 at 10/s: the 2nd and 3rd calls each wait ~100ms
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("3 reverse calls took %v, want paced to >= 150ms", elapsed)
	}
}

// TestGeocoder_CorrelationID verifies that the invocation id is forwarded upstream.
func TestGeocoder_CorrelationID(t *testing.T) {
	var captured string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Get("X-Correlation-ID")
		jsonHandler(t, map[string]any{"results": []map[string]any{{"name": "Moscow"}}})(w, r)
	}))
	defer server.Close()

	ctx := WithCorrelationID(context.Background(), "run-123")
	if _, err := newTestGeocoder(server.URL, "").Forward(ctx, "Moscow"); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if captured != "run-123" {
		t.Errorf("X-Correlation-ID = %q, want run-123", captured)
	}
}
