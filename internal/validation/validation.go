package validation

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/weather-cli/internal/models"
)

// City name bounds in runes.
const (
	MinCityLen = 1
	MaxCityLen = 100
)

// ErrLocationEmpty is returned when location is empty or whitespace-only after trim.
var ErrLocationEmpty = errors.New("location is required")

// ErrLocationTooShort is returned when location length is below the minimum.
var ErrLocationTooShort = errors.New("location too short")

// ErrLocationTooLong is returned when location length exceeds the maximum.
var ErrLocationTooLong = errors.New("location too long")

// ErrLocationInvalidChars is returned when location contains disallowed characters.
var ErrLocationInvalidChars = errors.New("location contains invalid characters")

var (
	// ErrNoInput is returned when neither a city nor any coordinate was given.
	ErrNoInput = errors.New("provide a city name or coordinates (--lat and --lon)")
	// ErrIncompleteCoordinates is returned when only one of latitude/longitude was given.
	ErrIncompleteCoordinates = errors.New("both --lat and --lon are required")
	// ErrCoordinatesOutOfRange is returned when latitude is outside [-90, 90] or longitude outside [-180, 180].
	ErrCoordinatesOutOfRange = errors.New("coordinates out of range")
	// ErrAmbiguousInput is returned when both a city and coordinates were given.
	ErrAmbiguousInput = errors.New("give either a city name or coordinates, not both")
)

type coordinates struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}

var coordValidator = validator.New()

// ValidateLocation trims the input, enforces length bounds (minLen, maxLen in runes),
// and restricts to allowed characters: letters (Unicode), digits, space, comma, hyphen,
// period and apostrophe. Returns the trimmed string.
func ValidateLocation(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrLocationEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrLocationTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrLocationTooLong
	}
	for _, c := range r {
		if !isAllowedLocationRune(c) {
			return "", ErrLocationInvalidChars
		}
	}
	return s, nil
}

// ValidateQuery checks that q names exactly one of a city or a complete, in-range
// coordinate pair. It returns q with the city trimmed.
func ValidateQuery(q models.Query) (models.Query, error) {
	q.City = strings.TrimSpace(q.City)
	hasLat, hasLon := q.Lat != nil, q.Lon != nil

	if q.City == "" && !hasLat && !hasLon {
		return q, ErrNoInput
	}
	if q.City != "" && (hasLat || hasLon) {
		return q, ErrAmbiguousInput
	}
	if q.City != "" {
		city, err := ValidateLocation(q.City, MinCityLen, MaxCityLen)
		if err != nil {
			return q, err
		}
		q.City = city
		return q, nil
	}
	if hasLat != hasLon {
		return q, ErrIncompleteCoordinates
	}
	if err := coordValidator.Struct(coordinates{Lat: *q.Lat, Lon: *q.Lon}); err != nil {
		return q, ErrCoordinatesOutOfRange
	}
	return q, nil
}

// isAllowedLocationRune returns true for letters (Unicode), digits, space, comma, hyphen, period, apostrophe.
func isAllowedLocationRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}
