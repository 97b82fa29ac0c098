package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/weather-cli/internal/client"
	"github.com/kjstillabower/weather-cli/internal/models"
	"github.com/kjstillabower/weather-cli/internal/presenter"
	"github.com/kjstillabower/weather-cli/internal/validation"
)

type lookupOptions struct {
	lat     float64
	lon     float64
	refresh bool
}

func newLookupCmd(root *rootOptions) *cobra.Command {
	opts := &lookupOptions{}
	cmd := &cobra.Command{
		Use:   "weather [city] [--lat LAT --lon LON] [--refresh]",
		Short: "Show current weather for a city or coordinates",
		Long: "Show current weather from Open-Meteo for a city name or a latitude/longitude pair.\n" +
			"Results are cached (30 minutes by default); --refresh bypasses the cache.",
		Example: "  weather Moscow\n  weather --lat 55.75 --lon 37.61\n  weather Moscow --refresh",
		Args:    argsRange(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := opts.query(cmd, args)
			// input errors must not open the cache or the history database
			if _, err := validation.ValidateQuery(q); err != nil {
				return fmt.Errorf("%w: %w", client.ErrInvalidInput, err)
			}
			return withApp(root, historyOptional, func(cmd *cobra.Command, args []string, app *App) error {
				res, err := app.Service.Lookup(cmd.Context(), q)
				if err != nil {
					return err
				}
				return presenter.Weather(cmd.OutOrStdout(), res.Key, res.Record, res.Cached)
			})(cmd, args)
		},
	}

	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "latitude, -90..90 (requires --lon)")
	cmd.Flags().Float64Var(&opts.lon, "lon", 0, "longitude, -180..180 (requires --lat)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore the cache and fetch fresh data")
	return cmd
}

func (o *lookupOptions) query(cmd *cobra.Command, args []string) models.Query {
	q := models.Query{Refresh: o.refresh}
	if len(args) == 1 {
		q.City = args[0]
	}
	if cmd.Flags().Changed("lat") {
		q.Lat = &o.lat
	}
	if cmd.Flags().Changed("lon") {
		q.Lon = &o.lon
	}
	return q
}
