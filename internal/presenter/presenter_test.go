package presenter

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/weather-cli/internal/models"
)

var moscow = models.WeatherRecord{
	City:      "Moscow",
	Latitude:  55.75,
	Longitude: 37.61,
	Current: models.CurrentConditions{
		Temperature:   20,
		WindSpeed:     10.5,
		WindDirection: 180,
		Time:          "2023-10-01T12:00",
	},
}

// TestWeather verifies the full block for a fetched and a cached record.
func TestWeather(t *testing.T) {
	body := "City: Moscow\n" +
		"Coordinates: 55.75°, 37.61°\n" +
		separator + "\n" +
		"Temperature: 20 °C\n" +
		"Wind speed: 10.5 km/h\n" +
		"Wind direction: 180°\n" +
		"Observed at: 2023-10-01T12:00\n"

	tests := []struct {
		name   string
		cached bool
		header string
	}{
		{"fetched", false, "Weather for Moscow:\n"},
		{"cached", true, "Weather for Moscow (cached):\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Weather(&buf, "Moscow", moscow, tt.cached); err != nil {
				t.Fatalf("Weather() error = %v", err)
			}
			if got, want := buf.String(), tt.header+body; got != want {
				t.Errorf("Weather() output:\n%s\nwant:\n%s", got, want)
			}
		})
	}
}

// TestWeather_CoordinateKey verifies the header uses the lookup key, not the resolved name.
func TestWeather_CoordinateKey(t *testing.T) {
	var buf bytes.Buffer
	if err := Weather(&buf, "55.75,37.61", moscow, false); err != nil {
		t.Fatalf("Weather() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "Weather for 55.75,37.61:\n") {
		t.Errorf("header = %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

// TestWeather_WriteError verifies that a write failure is reported.
func TestWeather_WriteError(t *testing.T) {
	if err := Weather(failingWriter{}, "Moscow", moscow, false); err == nil {
		t.Error("Weather() error = nil, want write error")
	}
}

// TestHistory verifies one line per record and the empty message.
func TestHistory(t *testing.T) {
	var buf bytes.Buffer
	records := []models.HistoryRecord{
		{City: "Moscow", Temperature: 20, WindSpeed: 10, WindDirection: 180, WeatherTime: time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC)},
		{City: "Moscow", Temperature: 18.5, WindSpeed: 7.2, WindDirection: 90, WeatherTime: time.Date(2023, 10, 1, 11, 0, 0, 0, time.UTC)},
	}
	if err := History(&buf, "Moscow", records); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	want := "Recent weather for Moscow:\n" + separator + "\n" +
		"2023-10-01 12:00  20 °C  wind 10 km/h 180°\n" +
		"2023-10-01 11:00  18.5 °C  wind 7.2 km/h 90°\n"
	if buf.String() != want {
		t.Errorf("History() output:\n%s\nwant:\n%s", buf.String(), want)
	}

	buf.Reset()
	if err := History(&buf, "Atlantis", nil); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if buf.String() != "No history for Atlantis.\n" {
		t.Errorf("History(empty) = %q", buf.String())
	}
}

// TestStats verifies aggregate rendering and the zero-count message.
func TestStats(t *testing.T) {
	var buf bytes.Buffer
	s := models.Stats{Count: 2, AvgTemperature: 17, MinTemperature: 14, MaxTemperature: 20, AvgWindSpeed: 8.5}
	if err := Stats(&buf, "Moscow", 7, s); err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := "Weather stats for Moscow (last 7 days):\n" + separator + "\n" +
		"Records: 2\n" +
		"Temperature: avg 17.0 °C, min 14 °C, max 20 °C\n" +
		"Average wind speed: 8.5 km/h\n"
	if buf.String() != want {
		t.Errorf("Stats() output:\n%s\nwant:\n%s", buf.String(), want)
	}

	buf.Reset()
	if err := Stats(&buf, "Atlantis", 3, models.Stats{}); err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if buf.String() != "No records for Atlantis in the last 3 days.\n" {
		t.Errorf("Stats(empty) = %q", buf.String())
	}
}
