package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// FlushTelemetry runs before process exit: writes the metrics textfile when a path is
// configured and flushes buffered logs. A CLI has no scrape endpoint, so metrics are
// handed to node_exporter's textfile collector instead.
func FlushTelemetry(textfile string, logger *zap.Logger) error {
	var firstErr error
	if textfile != "" {
		if err := prometheus.WriteToTextfile(textfile, registry); err != nil {
			firstErr = fmt.Errorf("write metrics textfile: %w", err)
		}
	}
	if logger != nil {
		// Sync on stderr returns EINVAL/ENOTTY on some platforms; not worth failing the exit path for.
		_ = logger.Sync()
	}
	return firstErr
}
