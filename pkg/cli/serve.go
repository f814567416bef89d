package cli

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/docpack/docpack/pkg/cli/config"
	controller "github.com/docpack/docpack/pkg/controller/http"
	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/usecase"
	"github.com/docpack/docpack/pkg/utils/metrics"
)

func cmdServe() *cli.Command {
	var (
		serverCfg   config.Server
		upstreamCfg config.Upstream
		archiveCfg  config.Archive
		cacheCfg    config.Cache
		authCfg     config.Auth
		sentryCfg   config.Sentry
	)

	var flags []cli.Flag
	flags = append(flags, serverCfg.Flags()...)
	flags = append(flags, upstreamCfg.Flags()...)
	flags = append(flags, archiveCfg.Flags()...)
	flags = append(flags, cacheCfg.Flags()...)
	flags = append(flags, authCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting docpack server",
				slog.String("addr", serverCfg.Addr),
				slog.Any("upstream", upstreamCfg),
				slog.Any("archive", archiveCfg),
				slog.Any("cache", cacheCfg),
				slog.Any("auth", authCfg),
			)

			if err := archiveCfg.Validate(); err != nil {
				return err
			}

			flush, err := sentryCfg.Configure()
			if err != nil {
				return err
			}
			defer flush()

			var m *metrics.Metrics
			if serverCfg.Metrics {
				m = metrics.New()
			}

			// Create infra
			baseRoster, err := upstreamCfg.NewRosterClient()
			if err != nil {
				return err
			}
			rosterClient, closeCache, err := cacheCfg.Configure(ctx, baseRoster, m)
			if err != nil {
				return goerr.Wrap(err, "failed to configure roster cache")
			}
			defer closeCache()

			// Create use cases
			archiver := archiveCfg.NewArchiver(upstreamCfg.NewFetcher(), upstreamCfg.DisplayField, m)
			downloadUC := usecase.NewDownload(rosterClient, archiver,
				append(archiveCfg.DownloadOptions(),
					usecase.WithDisplayField(upstreamCfg.DisplayField),
					usecase.WithEmailField(upstreamCfg.EmailField),
					usecase.WithDownloadMetrics(m),
				)...,
			)

			auth, err := authCfg.NewAuth(ctx)
			if err != nil {
				return err
			}
			var authUC interfaces.AuthUseCase
			if auth != nil {
				authUC = auth
			}

			// Create HTTP server with options
			server, err := controller.NewServer(
				ctx,
				downloadUC,
				authUC,
				controller.WithAddr(serverCfg.Addr),
				controller.WithAllowedOrigins(serverCfg.Origins()),
				controller.WithAuthRequired(authCfg.Required),
				controller.WithCookieSecure(serverCfg.CookieSecure),
				controller.WithSessionTTL(authCfg.SessionTTL),
				controller.WithMetrics(m),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}
			server.BaseContext = func(net.Listener) context.Context { return ctx }

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			case err := <-errCh:
				return goerr.Wrap(err, "HTTP server failed")
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverCfg.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
