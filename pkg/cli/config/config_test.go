package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/docpack/docpack/pkg/cli/config"
	"github.com/docpack/docpack/pkg/infra/roster"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	gt.NoError(t, os.WriteFile(path, []byte("DOCPACK_TEST_FROM_FILE=from-file\nDOCPACK_TEST_PRESET=from-file\n"), 0o600))

	t.Setenv("DOCPACK_TEST_PRESET", "preset")
	t.Setenv("DOCPACK_TEST_FROM_FILE", "")
	gt.NoError(t, os.Unsetenv("DOCPACK_TEST_FROM_FILE"))

	gt.NoError(t, config.LoadEnvFile(path))
	gt.Equal(t, os.Getenv("DOCPACK_TEST_FROM_FILE"), "from-file")
	gt.Equal(t, os.Getenv("DOCPACK_TEST_PRESET"), "preset")

	gt.NoError(t, config.LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestArchive_Validate(t *testing.T) {
	valid := config.Archive{Prefetch: 1, MaxSpoolBytes: 1024, BulkLevel: 9, SingleLevel: -1}
	gt.NoError(t, valid.Validate())

	for name, cfg := range map[string]config.Archive{
		"zero prefetch":  {Prefetch: 0, BulkLevel: 9, SingleLevel: -1},
		"negative spool": {Prefetch: 1, MaxSpoolBytes: -1, BulkLevel: 9, SingleLevel: -1},
		"level too high": {Prefetch: 1, BulkLevel: 10, SingleLevel: -1},
		"level too low":  {Prefetch: 1, BulkLevel: 9, SingleLevel: -2},
	} {
		t.Run(name, func(t *testing.T) {
			gt.Error(t, cfg.Validate())
		})
	}
}

func TestAuth_NewAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("required without credentials", func(t *testing.T) {
		cfg := config.Auth{Required: true}
		_, err := cfg.NewAuth(ctx)
		gt.Error(t, err)
	})

	t.Run("optional without credentials", func(t *testing.T) {
		cfg := config.Auth{Required: false}
		auth, err := cfg.NewAuth(ctx)
		gt.NoError(t, err)
		gt.Value(t, auth).Nil()
	})

	t.Run("random secret", func(t *testing.T) {
		cfg := config.Auth{Required: true, AdminEmail: "a@example.com", AdminPassword: "pw", SessionTTL: time.Hour}
		auth, err := cfg.NewAuth(ctx)
		gt.NoError(t, err)

		session, err := auth.Login(ctx, "a@example.com", "pw")
		gt.NoError(t, err)
		_, err = auth.Verify(ctx, session.Token)
		gt.NoError(t, err)
	})
}

func TestCache_Configure(t *testing.T) {
	ctx := context.Background()
	base := roster.NewClient("http://localhost:1/roster")

	t.Run("disabled", func(t *testing.T) {
		cfg := config.Cache{}
		client, closer, err := cfg.Configure(ctx, base, nil)
		gt.NoError(t, err)
		defer closer()
		gt.Equal(t, client, base)
	})

	t.Run("memory", func(t *testing.T) {
		cfg := config.Cache{TTL: time.Minute, Backend: "memory"}
		client, closer, err := cfg.Configure(ctx, base, nil)
		gt.NoError(t, err)
		defer closer()
		_, ok := client.(*roster.CachedClient)
		gt.True(t, ok)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := config.Cache{TTL: time.Minute, Backend: "memcached"}
		_, _, err := cfg.Configure(ctx, base, nil)
		gt.Error(t, err)
	})
}

func TestUpstream_NewRosterClient(t *testing.T) {
	for _, u := range []string{"", "not a url", "ftp://example.com/roster", "/relative"} {
		cfg := config.Upstream{URL: u}
		_, err := cfg.NewRosterClient()
		gt.Error(t, err)
	}

	cfg := config.Upstream{URL: "https://api.example.com/roster"}
	_, err := cfg.NewRosterClient()
	gt.NoError(t, err)
}

func TestServer_Origins(t *testing.T) {
	cfg := config.Server{AllowedOrigins: " https://a.example.com, ,https://b.example.com"}
	gt.Equal(t, cfg.Origins(), []string{"https://a.example.com", "https://b.example.com"})
}
