//go:build integration
// +build integration

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/kjstillabower/weather-cli/internal/models"
	"github.com/kjstillabower/weather-cli/internal/testhelpers"
)

// TestIntegration_LiveLookup resolves and fetches Moscow from the live services, then checks the
// second lookup is a cache hit.
func TestIntegration_LiveLookup(t *testing.T) {
	cfg := testhelpers.GetIntegrationConfig(t)
	svc, _, cleanup := testhelpers.SetupIntegrationService(t, cfg)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	first, err := svc.Lookup(ctx, models.Query{City: "Moscow", Refresh: true})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if first.Record.City == "" || first.Record.Current.Time == "" {
		t.Errorf("Lookup() = %+v, want a named record with an observation time", first.Record)
	}
	if first.Record.Latitude < 55 || first.Record.Latitude > 57 {
		t.Errorf("Moscow latitude = %v, want ~55.75", first.Record.Latitude)
	}

	second, err := svc.Lookup(ctx, models.Query{City: "Moscow"})
	if err != nil {
		t.Fatalf("second Lookup() error = %v", err)
	}
	if !second.Cached {
		t.Error("second Lookup() was not served from the cache")
	}
}

// TestIntegration_LiveReverse checks reverse geocoding names a place for known coordinates.
func TestIntegration_LiveReverse(t *testing.T) {
	cfg := testhelpers.GetIntegrationConfig(t)
	svc, _, cleanup := testhelpers.SetupIntegrationService(t, cfg)
	defer cleanup()

	lat, lon := 48.8566, 2.3522
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := svc.Lookup(ctx, models.Query{Lat: &lat, Lon: &lon})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if res.Key != "48.8566,2.3522" {
		t.Errorf("Key = %q", res.Key)
	}
	if res.Record.City == "" {
		t.Error("reverse lookup returned an empty name")
	}
}
