package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/weather-cli/internal/client"
	"github.com/kjstillabower/weather-cli/internal/config"
	"github.com/kjstillabower/weather-cli/internal/exitcode"
)

// configError marks failures to load or apply configuration.
type configError struct{ err error }

func (e *configError) Error() string { return "config: " + e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// usageError marks bad flags or arguments caught by cobra before a command runs.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

type rootOptions struct {
	configPath string
}

// Run executes the CLI with args (without the program name) and returns the process exit code.
// Results go to stdout; errors are printed to stderr as a single "Error: ..." line.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCodeFor(err)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := newLookupCmd(opts)
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (default "+config.DefaultPath+")")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.AddCommand(
		newHistoryCmd(opts),
		newStatsCmd(opts),
		newWarmCmd(opts),
	)
	return root
}

// exitCodeFor maps a command error to a process exit code.
func exitCodeFor(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return exitcode.Success
	case errors.As(err, &usage), errors.Is(err, client.ErrInvalidInput):
		return exitcode.InputError
	case errors.Is(err, client.ErrLocationNotFound),
		errors.Is(err, client.ErrResolution),
		errors.Is(err, client.ErrFetch):
		return exitcode.UpstreamError
	default:
		return exitcode.ConfigError
	}
}

// argsRange is cobra.RangeArgs with the error marked as a usage error.
func argsRange(lo, hi int) cobra.PositionalArgs {
	check := cobra.RangeArgs(lo, hi)
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}
