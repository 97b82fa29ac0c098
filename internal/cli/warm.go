package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/weather-cli/internal/cache"
)

// ErrNoWarmLocations is returned by warm when cache.warm_locations is empty.
var ErrNoWarmLocations = errors.New("no cities configured in cache.warm_locations")

func newWarmCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Fetch and cache weather for every city in cache.warm_locations",
		Args:  argsRange(0, 0),
		RunE: withApp(root, historyOptional, func(cmd *cobra.Command, args []string, app *App) error {
			cities := app.Config.WarmLocations
			if len(cities) == 0 {
				return ErrNoWarmLocations
			}
			warmer := cache.NewCacheWarmer(app.Service, app.Logger)
			if err := warmer.Warm(cmd.Context(), cities); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Warmed %d cities.\n", len(cities))
			return err
		}),
	}
}
