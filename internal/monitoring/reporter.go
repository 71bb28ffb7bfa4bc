// Package monitoring provides the operational alerting sink for anomalies that
// should page or notify an operator, as opposed to routine conditions that are
// only logged. Callers depend on the Reporter interface so tests can substitute
// a recording fake and so components never reach for a process-global client.
package monitoring

import (
	"fmt"
	"log/slog"
	"time"

	sentry "github.com/getsentry/sentry-go"
)

// Reporter delivers a single operator-visible message to the monitoring
// backend. Implementations must be safe for concurrent use.
type Reporter interface {
	Report(message string)
}

// SentryReporter ships messages to Sentry as capture events.
type SentryReporter struct{}

// NewSentryReporter initialises the global Sentry client and returns a
// Reporter backed by it. The DSN comes from configuration; environment names
// the deployment (e.g. "production", "staging").
func NewSentryReporter(dsn, environment string) (*SentryReporter, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise sentry: %w", err)
	}
	return &SentryReporter{}, nil
}

// Report captures the message as a Sentry event.
func (r *SentryReporter) Report(message string) {
	sentry.CaptureMessage(message)
}

// Close flushes buffered events. Call during graceful shutdown.
func (r *SentryReporter) Close() {
	sentry.Flush(2 * time.Second)
}

// NopReporter logs messages at warn level instead of shipping them anywhere.
// Used when Sentry is disabled in configuration and in tests.
type NopReporter struct{}

// Report logs the message locally.
func (NopReporter) Report(message string) {
	slog.Warn("monitoring report (sentry disabled)", "message", message)
}
