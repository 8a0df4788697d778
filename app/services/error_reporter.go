package services

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// ErrorReporter forwards soft failures to an error tracker
type ErrorReporter interface {
	Report(err error, tags map[string]string, extras map[string]any)
	Flush(timeout time.Duration)
}

// SentryReporter reports through the global sentry hub
type SentryReporter struct{}

// NewErrorReporter returns a sentry reporter when dsn is set, otherwise a no-op one
func NewErrorReporter(dsn string) ErrorReporter {
	if dsn == "" {
		return NoopReporter{}
	}
	return SentryReporter{}
}

func (SentryReporter) Report(err error, tags map[string]string, extras map[string]any) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

func (SentryReporter) Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// NoopReporter drops every report
type NoopReporter struct{}

func (NoopReporter) Report(err error, tags map[string]string, extras map[string]any) {}
func (NoopReporter) Flush(timeout time.Duration)                                      {}
