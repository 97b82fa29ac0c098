package exitcode

// Exit codes for the weather CLI.
// Scripts can branch on these to tell bad input from an unreachable API.
const (
	// Success - weather printed (or history/stats/warm completed)
	Success = 0

	// ConfigError - invalid configuration, history database unavailable for
	// history/stats, or any other internal failure
	ConfigError = 1

	// InputError - no city and no coordinates, half a coordinate pair,
	// out-of-range coordinates, or a city together with coordinates
	// Don't retry: fix the arguments
	InputError = 2

	// UpstreamError - location not found, geocoding failed, or the forecast
	// fetch failed (network, timeout, bad status, unparseable body)
	UpstreamError = 3
)
