package errutil_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/docpack/docpack/pkg/utils/errutil"
)

func newLoggedContext(level slog.Level) (context.Context, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level}))
	return ctxlog.With(context.Background(), logger), &buf
}

func TestHandle(t *testing.T) {
	ctx, buf := newLoggedContext(slog.LevelInfo)

	err := goerr.New("roster decode failed", goerr.V("roster_size", 42))
	errutil.Handle(ctx, err)

	out := buf.String()
	gt.String(t, out).Contains("Unhandled error")
	gt.String(t, out).Contains("roster decode failed")
	gt.String(t, out).Contains(`"roster_size":42`)
}

func TestHandle_Cancelled(t *testing.T) {
	ctx, buf := newLoggedContext(slog.LevelInfo)

	errutil.Handle(ctx, fmt.Errorf("writing entry: %w", context.Canceled))
	errutil.Handle(ctx, nil)

	gt.Equal(t, buf.Len(), 0)
}

func TestHandle_ReportsValuesToSentry(t *testing.T) {
	events := make(chan *sentry.Event, 1)
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			events <- event
			return nil
		},
	})
	gt.NoError(t, err)

	hub := sentry.CurrentHub()
	prev := hub.Client()
	hub.BindClient(client)
	t.Cleanup(func() { hub.BindClient(prev) })

	ctx, _ := newLoggedContext(slog.LevelInfo)
	errutil.Handle(ctx, goerr.New("roster decode failed", goerr.V("roster_size", 42)))

	select {
	case event := <-events:
		values, ok := event.Contexts["goerr"]
		gt.True(t, ok)
		gt.Equal(t, values["roster_size"], any(42))
	case <-time.After(5 * time.Second):
		t.Fatal("no event captured")
	}
}
