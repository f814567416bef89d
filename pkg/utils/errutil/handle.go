package errutil

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Handle logs err with its goerr values and reports it to Sentry when a
// client is configured. Cancellations from a departed client are logged at
// debug level only.
func Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}
	logger := ctxlog.From(ctx)

	if errors.Is(err, context.Canceled) {
		logger.Debug("Request cancelled", "error", err)
		return
	}

	attrs := []any{slog.Any("error", err)}
	if goErr := goerr.Unwrap(err); goErr != nil {
		for k, v := range goErr.Values() {
			attrs = append(attrs, slog.Any(k, v))
		}
	}
	logger.Error("Unhandled error", attrs...)

	hub := sentry.CurrentHub()
	if hub.Client() == nil {
		return
	}
	hub = hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		if goErr := goerr.Unwrap(err); goErr != nil {
			values := sentry.Context{}
			for k, v := range goErr.Values() {
				values[k] = v
			}
			scope.SetContext("goerr", values)
		}
		if evID := hub.CaptureException(err); evID != nil {
			logger.Info("Error reported to Sentry", "event_id", *evID)
		}
	})
}
