package models

import "time"

// Location is a resolved place: display name plus coordinates.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CurrentConditions mirrors the forecast API's current_weather block.
type CurrentConditions struct {
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windspeed"`
	WindDirection int     `json:"winddirection"`
	Time          string  `json:"time"` // ISO-8601 without offset, GMT
}

// WeatherRecord is what gets cached, persisted and printed.
type WeatherRecord struct {
	City      string            `json:"city"`
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
	Current   CurrentConditions `json:"current_weather"`
}

// HistoryRecord is one stored observation returned by history queries.
type HistoryRecord struct {
	City          string    `json:"city"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Temperature   float64   `json:"temperature"`
	WindSpeed     float64   `json:"windspeed"`
	WindDirection int       `json:"winddirection"`
	WeatherTime   time.Time `json:"weather_time"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Stats aggregates history for one city over a time window.
type Stats struct {
	Count          int     `json:"count"`
	AvgTemperature float64 `json:"avg_temperature"`
	MinTemperature float64 `json:"min_temperature"`
	MaxTemperature float64 `json:"max_temperature"`
	AvgWindSpeed   float64 `json:"avg_windspeed"`
}
