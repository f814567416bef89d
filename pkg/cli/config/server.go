package config

import (
	"strings"
	"time"

	"github.com/urfave/cli/v3"
)

// Server holds server configuration
type Server struct {
	Addr            string
	AllowedOrigins  string
	CookieSecure    bool
	Metrics         bool
	ShutdownTimeout time.Duration
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("DOCPACK_ADDR"),
		},
		&cli.StringFlag{
			Name:        "allowed-origins",
			Usage:       "Comma separated origins allowed to call the API with credentials",
			Destination: &c.AllowedOrigins,
			Sources:     cli.EnvVars("DOCPACK_ALLOWED_ORIGINS"),
		},
		&cli.BoolFlag{
			Name:        "cookie-secure",
			Usage:       "Set the Secure attribute on the session cookie",
			Destination: &c.CookieSecure,
			Sources:     cli.EnvVars("DOCPACK_COOKIE_SECURE"),
		},
		&cli.BoolFlag{
			Name:        "metrics",
			Usage:       "Expose Prometheus metrics on /metrics",
			Value:       true,
			Destination: &c.Metrics,
			Sources:     cli.EnvVars("DOCPACK_METRICS"),
		},
		&cli.DurationFlag{
			Name:        "shutdown-timeout",
			Usage:       "Grace period for in-flight requests on shutdown",
			Value:       30 * time.Second,
			Destination: &c.ShutdownTimeout,
			Sources:     cli.EnvVars("DOCPACK_SHUTDOWN_TIMEOUT"),
		},
	}
}

// Origins returns the configured CORS origins
func (c *Server) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
