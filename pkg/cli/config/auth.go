package config

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/docpack/docpack/pkg/usecase"
)

// Auth holds admin authentication configuration
type Auth struct {
	Required      bool
	AdminEmail    string
	AdminPassword string `masq:"secret"`
	SessionSecret string `masq:"secret"`
	SessionTTL    time.Duration
}

// Flags returns CLI flags for auth configuration
func (c *Auth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "auth-required",
			Usage:       "Require an admin session for roster and download routes",
			Value:       true,
			Destination: &c.Required,
			Sources:     cli.EnvVars("DOCPACK_AUTH_REQUIRED"),
		},
		&cli.StringFlag{
			Name:        "admin-email",
			Usage:       "Admin login email",
			Destination: &c.AdminEmail,
			Sources:     cli.EnvVars("DOCPACK_ADMIN_EMAIL"),
		},
		&cli.StringFlag{
			Name:        "admin-password",
			Usage:       "Admin password, plain or a bcrypt hash ($2...)",
			Destination: &c.AdminPassword,
			Sources:     cli.EnvVars("DOCPACK_ADMIN_PASSWORD"),
		},
		&cli.StringFlag{
			Name:        "session-secret",
			Usage:       "HMAC key for session tokens (random per process when empty)",
			Destination: &c.SessionSecret,
			Sources:     cli.EnvVars("DOCPACK_SESSION_SECRET"),
		},
		&cli.DurationFlag{
			Name:        "session-ttl",
			Usage:       "Admin session lifetime",
			Value:       usecase.DefaultSessionTTL,
			Destination: &c.SessionTTL,
			Sources:     cli.EnvVars("DOCPACK_SESSION_TTL"),
		},
	}
}

// NewAuth creates the auth use case. It returns nil without error when no
// admin credentials are configured and auth is not required.
func (c *Auth) NewAuth(ctx context.Context) (*usecase.Auth, error) {
	if c.AdminEmail == "" && c.AdminPassword == "" {
		if c.Required {
			return nil, goerr.New("admin-email and admin-password are required when auth is enabled")
		}
		return nil, nil
	}

	secret := []byte(c.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, goerr.Wrap(err, "failed to generate session secret")
		}
		ctxlog.From(ctx).Warn("No session secret configured, sessions will not survive a restart")
	}

	return usecase.NewAuth(c.AdminEmail, c.AdminPassword, secret, usecase.WithSessionTTL(c.SessionTTL))
}
