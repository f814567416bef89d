package config

import (
	"context"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/infra/cache"
	"github.com/docpack/docpack/pkg/infra/roster"
	"github.com/docpack/docpack/pkg/utils/metrics"
)

// Cache holds roster cache configuration
type Cache struct {
	TTL           time.Duration
	Backend       string
	RedisAddr     string
	RedisPassword string `masq:"secret"`
	RedisDB       int
}

// Flags returns CLI flags for cache configuration
func (c *Cache) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:        "roster-cache-ttl",
			Usage:       "How long a fetched roster may be served from cache (0 disables caching)",
			Destination: &c.TTL,
			Sources:     cli.EnvVars("DOCPACK_ROSTER_CACHE_TTL"),
		},
		&cli.StringFlag{
			Name:        "cache-backend",
			Usage:       "Roster cache backend (memory, redis)",
			Value:       "memory",
			Destination: &c.Backend,
			Sources:     cli.EnvVars("DOCPACK_CACHE_BACKEND"),
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address for the redis cache backend",
			Value:       "localhost:6379",
			Destination: &c.RedisAddr,
			Sources:     cli.EnvVars("DOCPACK_REDIS_ADDR"),
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Destination: &c.RedisPassword,
			Sources:     cli.EnvVars("DOCPACK_REDIS_PASSWORD"),
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Destination: &c.RedisDB,
			Sources:     cli.EnvVars("DOCPACK_REDIS_DB"),
		},
	}
}

// Configure wraps base with the configured cache. The returned function
// releases backend connections.
func (c *Cache) Configure(ctx context.Context, base interfaces.RosterClient, m *metrics.Metrics) (interfaces.RosterClient, func(), error) {
	if c.TTL <= 0 {
		return base, func() {}, nil
	}

	logger := ctxlog.From(ctx)

	switch c.Backend {
	case "memory", "":
		logger.Info("Roster cache enabled", "backend", "memory", "ttl", c.TTL)
		return roster.NewCachedClient(base, cache.NewMemory(), c.TTL, roster.WithMetrics(m)), func() {}, nil

	case "redis":
		r := cache.NewRedis(c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, nil, err
		}
		logger.Info("Roster cache enabled", "backend", "redis", "addr", c.RedisAddr, "ttl", c.TTL)
		closer := func() {
			if err := r.Close(); err != nil {
				logger.Warn("Failed to close redis client", "error", err)
			}
		}
		return roster.NewCachedClient(base, r, c.TTL, roster.WithMetrics(m)), closer, nil

	default:
		return nil, nil, goerr.New("unknown cache backend", goerr.V("backend", c.Backend))
	}
}
