package async

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/ctxlog"
)

// Task is background work that never runs twice at the same time, such as a
// roster refresh triggered by many concurrent readers. The zero value is not
// usable; use NewTask.
type Task struct {
	name    string
	timeout time.Duration
	running atomic.Bool
}

// NewTask creates a Task. name is attached to its log records.
func NewTask(name string, timeout time.Duration) *Task {
	return &Task{name: name, timeout: timeout}
}

// Dispatch starts handler in a new goroutine unless a previous run is still
// in flight, and reports whether it did. The run gets a context detached from
// ctx's cancellation that carries ctx's logger, bounded by the task timeout
// (zero means no deadline). Panics and returned errors are logged, never
// propagated.
func (t *Task) Dispatch(ctx context.Context, handler func(ctx context.Context) error) bool {
	if !t.running.CompareAndSwap(false, true) {
		ctxlog.From(ctx).Debug("Background task already running", "task", t.name)
		return false
	}

	logger := ctxlog.From(ctx).With("task", t.name)
	bg := ctxlog.With(context.Background(), logger)
	run(bg, t.timeout, handler, func() { t.running.Store(false) })
	return true
}

// Running reports whether a run is in flight
func (t *Task) Running() bool {
	return t.running.Load()
}

func run(ctx context.Context, timeout time.Duration, handler func(ctx context.Context) error, done func()) {
	go func() {
		if done != nil {
			defer done()
		}

		cancel := context.CancelFunc(func() {})
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				ctxlog.From(ctx).Error("panic in async handler",
					"recover", r,
					"stack", string(debug.Stack()))
			}
		}()

		if err := handler(ctx); err != nil {
			ctxlog.From(ctx).Error("error in async handler", "error", err)
		}
	}()
}
