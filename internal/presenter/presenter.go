package presenter

import (
	"fmt"
	"io"
	"strconv"

	"github.com/kjstillabower/weather-cli/internal/models"
)

const separator = "────────────────────────────"

// historyTimeLayout renders stored observation times.
const historyTimeLayout = "2006-01-02 15:04"

// printer remembers the first write error so callers can print line by line.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// Weather prints one weather record under a header naming the lookup key.
func Weather(w io.Writer, key string, rec models.WeatherRecord, cached bool) error {
	p := &printer{w: w}
	if cached {
		p.printf("Weather for %s (cached):\n", key)
	} else {
		p.printf("Weather for %s:\n", key)
	}
	p.printf("City: %s\n", orDash(rec.City))
	p.printf("Coordinates: %s°, %s°\n", num(rec.Latitude), num(rec.Longitude))
	p.printf("%s\n", separator)
	p.printf("Temperature: %s °C\n", num(rec.Current.Temperature))
	p.printf("Wind speed: %s km/h\n", num(rec.Current.WindSpeed))
	p.printf("Wind direction: %d°\n", rec.Current.WindDirection)
	p.printf("Observed at: %s\n", orDash(rec.Current.Time))
	return p.err
}

// History prints stored records, newest first, one per line.
func History(w io.Writer, city string, records []models.HistoryRecord) error {
	p := &printer{w: w}
	if len(records) == 0 {
		p.printf("No history for %s.\n", city)
		return p.err
	}
	p.printf("Recent weather for %s:\n", city)
	p.printf("%s\n", separator)
	for _, r := range records {
		p.printf("%s  %s °C  wind %s km/h %d°\n",
			r.WeatherTime.UTC().Format(historyTimeLayout), num(r.Temperature), num(r.WindSpeed), r.WindDirection)
	}
	return p.err
}

// Stats prints aggregate statistics for city over the last days days.
func Stats(w io.Writer, city string, days int, s models.Stats) error {
	p := &printer{w: w}
	if s.Count == 0 {
		p.printf("No records for %s in the last %d days.\n", city, days)
		return p.err
	}
	p.printf("Weather stats for %s (last %d days):\n", city, days)
	p.printf("%s\n", separator)
	p.printf("Records: %d\n", s.Count)
	p.printf("Temperature: avg %s °C, min %s °C, max %s °C\n",
		fixed(s.AvgTemperature), num(s.MinTemperature), num(s.MaxTemperature))
	p.printf("Average wind speed: %s km/h\n", fixed(s.AvgWindSpeed))
	return p.err
}

// num renders a float in its shortest form: 20 -> "20", 55.75 -> "55.75".
func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// fixed renders averages with one decimal.
func fixed(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
