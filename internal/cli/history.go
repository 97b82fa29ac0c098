package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/weather-cli/internal/history"
	"github.com/kjstillabower/weather-cli/internal/presenter"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <city>",
		Short: "Show recently recorded weather for a city",
		Args:  argsRange(1, 1),
		RunE: withApp(root, historyRequired, func(cmd *cobra.Command, args []string, app *App) error {
			city := strings.TrimSpace(args[0])
			records, err := app.History.Recent(cmd.Context(), city, limit)
			if err != nil {
				return fmt.Errorf("history for %s: %w", city, err)
			}
			return presenter.History(cmd.OutOrStdout(), city, records)
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", history.DefaultRecentLimit, "number of records to show")
	return cmd
}

func newStatsCmd(root *rootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats <city>",
		Short: "Show temperature and wind statistics for a city",
		Args:  argsRange(1, 1),
		RunE: withApp(root, historyRequired, func(cmd *cobra.Command, args []string, app *App) error {
			city := strings.TrimSpace(args[0])
			if days <= 0 {
				days = history.DefaultStatsDays
			}
			stats, err := app.History.Stats(cmd.Context(), city, days)
			if err != nil {
				return fmt.Errorf("stats for %s: %w", city, err)
			}
			return presenter.Stats(cmd.OutOrStdout(), city, days, stats)
		}),
	}
	cmd.Flags().IntVar(&days, "days", history.DefaultStatsDays, "window in days")
	return cmd
}
