package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/domain/model"
	"github.com/docpack/docpack/pkg/domain/types"
	"github.com/docpack/docpack/pkg/utils/errutil"
)

// LoggingMiddleware returns a middleware that logs HTTP requests and puts a
// request scoped logger into the request context
func LoggingMiddleware(ctx context.Context) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := ctxlog.From(ctx).With("request_id", middleware.GetReqID(r.Context()))
			r = r.WithContext(ctxlog.With(r.Context(), logger))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("HTTP request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

type sessionKey struct{}

// sessionFrom returns the session stored by SessionMiddleware
func sessionFrom(ctx context.Context) *model.Session {
	s, _ := ctx.Value(sessionKey{}).(*model.Session)
	return s
}

// SessionMiddleware rejects requests without a valid admin session. The
// token is read from the admin_token cookie or an Authorization bearer header.
func SessionMiddleware(authUC interfaces.AuthUseCase) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			session, err := authUC.Verify(ctx, tokenFromRequest(r))
			if err != nil {
				ctxlog.From(ctx).Debug("Session rejected", "error", err, "path", r.URL.Path)
				writeError(w, goerr.New("Unauthorized"), http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, sessionKey{}, session)
			ctx = ctxlog.With(ctx, ctxlog.From(ctx).With("admin", session.Email))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// statusOf maps error tags to HTTP status codes
func statusOf(err error) int {
	switch {
	case goerr.HasTag(err, types.ErrTagBadRequest):
		return http.StatusBadRequest
	case goerr.HasTag(err, types.ErrTagUnauthorized):
		return http.StatusUnauthorized
	case goerr.HasTag(err, types.ErrTagNotFound):
		return http.StatusNotFound
	case goerr.HasTag(err, types.ErrTagRemoteUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes the JSON error response for err. Upstream and internal
// failures get a fixed message; their details only go to the log.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := statusOf(err)

	var public error
	switch status {
	case http.StatusBadGateway:
		ctxlog.From(ctx).Warn("Upstream roster unavailable", "error", err)
		public = goerr.New("Failed to fetch students")
	case http.StatusNotFound:
		ctxlog.From(ctx).Info("Student not found", "error", err)
		public = goerr.New("Student not found")
	case http.StatusInternalServerError:
		errutil.Handle(ctx, err)
		public = goerr.New("Server error")
	default:
		ctxlog.From(ctx).Info("Request rejected", "status", status, "error", err)
		public = err
	}

	writeError(w, public, status)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	}); err != nil {
		// Can't get context here, so use background context
		ctxlog.From(context.Background()).Error("Failed to encode error response", "error", err)
	}
}

// writeJSON writes v as a JSON response
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ctxlog.From(ctx).Error("Failed to encode response", "error", err)
	}
}
