package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/m-mizutani/goerr/v2"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/utils/metrics"
)

// config holds internal HTTP server configuration
type config struct {
	addr           string
	allowedOrigins []string
	authRequired   bool
	cookieSecure   bool
	sessionTTL     time.Duration
	metrics        *metrics.Metrics
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithAllowedOrigins enables CORS with credentials for the given origins
func WithAllowedOrigins(origins []string) Option {
	return func(c *config) {
		c.allowedOrigins = origins
	}
}

// WithAuthRequired protects the roster and download routes with an admin session
func WithAuthRequired(required bool) Option {
	return func(c *config) {
		c.authRequired = required
	}
}

// WithCookieSecure sets the Secure attribute of the session cookie
func WithCookieSecure(secure bool) Option {
	return func(c *config) {
		c.cookieSecure = secure
	}
}

// WithSessionTTL sets the session cookie Max-Age
func WithSessionTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.sessionTTL = ttl
	}
}

// WithMetrics exposes m on /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates a new HTTP server. authUC may be nil only when auth is not
// required; the admin routes are then not mounted.
func NewServer(
	ctx context.Context,
	downloadUC interfaces.DownloadUseCase,
	authUC interfaces.AuthUseCase,
	opts ...Option,
) (*Server, error) {
	// Default configuration
	cfg := &config{
		addr:         "localhost:8080",
		authRequired: true,
		sessionTTL:   24 * time.Hour,
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.authRequired && authUC == nil {
		return nil, goerr.New("auth is required but no admin credentials are configured")
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)
	if len(cfg.allowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Disposition", "X-Archive-Id", "X-Total-Count"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Method(http.MethodGet, "/health", newHealthHandler(cfg))
	if cfg.metrics != nil {
		router.Handle("/metrics", cfg.metrics.Handler())
	}

	studentHandler := NewStudentHandler(downloadUC)
	downloadHandler := NewDownloadHandler(downloadUC)

	router.Route("/api/v1", func(r chi.Router) {
		if authUC != nil {
			authHandler := NewAuthHandler(authUC, cfg.cookieSecure, cfg.sessionTTL)
			r.Post("/admin/login", authHandler.Login)
			r.Post("/admin/logout", authHandler.Logout)
			r.With(SessionMiddleware(authUC)).Get("/admin/session", authHandler.Session)
		}

		r.Group(func(r chi.Router) {
			if cfg.authRequired {
				r.Use(SessionMiddleware(authUC))
			}
			r.Get("/students", studentHandler.List)
			r.Get("/students/{id}", studentHandler.Get)
			r.Get("/download/all", downloadHandler.All)
			r.Get("/download/student/{id}", downloadHandler.Student)
			r.Post("/admin/cache/invalidate", studentHandler.InvalidateCache)
		})
	})

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			// no WriteTimeout: archives stream for as long as they take
		},
	}

	return server, nil
}
