package models

import "strconv"

// Query is one lookup request: a city name, a coordinate pair, or (invalidly) neither.
type Query struct {
	City    string
	Lat     *float64
	Lon     *float64
	Refresh bool
}

// HasCity reports whether a city name was given.
func (q Query) HasCity() bool {
	return q.City != ""
}

// HasCoordinates reports whether a complete coordinate pair was given.
func (q Query) HasCoordinates() bool {
	return q.Lat != nil && q.Lon != nil
}

// CacheKey is the city name when present, else "<lat>,<lon>" in shortest decimal form.
func (q Query) CacheKey() string {
	if q.HasCity() {
		return q.City
	}
	return FormatCoordinate(deref(q.Lat)) + "," + FormatCoordinate(deref(q.Lon))
}

// FormatCoordinate renders a coordinate without trailing zeros, e.g. 55.75 -> "55.75".
func FormatCoordinate(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
