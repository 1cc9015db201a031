// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/defaulterr/internal/api"
	"github.com/tomtom215/defaulterr/internal/config"
	"github.com/tomtom215/defaulterr/internal/dispatch"
	"github.com/tomtom215/defaulterr/internal/logging"
	"github.com/tomtom215/defaulterr/internal/orchestrator"
	"github.com/tomtom215/defaulterr/internal/plex"
	"github.com/tomtom215/defaulterr/internal/registry"
	"github.com/tomtom215/defaulterr/internal/retry"
	"github.com/tomtom215/defaulterr/internal/scheduler"
	"github.com/tomtom215/defaulterr/internal/supervisor"
	"github.com/tomtom215/defaulterr/internal/supervisor/services"
	"github.com/tomtom215/defaulterr/internal/watermark"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

//nolint:gocyclo // Sequential setup steps
func run() int {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	// Load configuration first to get logging settings
	cfg, err := config.Load(configPath)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	logFile, err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		File:   cfg.Logging.File,
		Output: os.Stderr,
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize logging")
		return 1
	}
	defer func() {
		if err := logFile.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing log file")
		}
	}()

	logging.Info().
		Str("version", version).
		Str("plex_url", cfg.PlexServerURL).
		Int("libraries", len(cfg.LibraryFilters())).
		Int("groups", len(cfg.Groups)).
		Bool("dry_run", cfg.DryRun).
		Msg("Starting Defaulterr")

	client := plex.NewClient(cfg.PlexServerURL, cfg.PlexOwnerToken, plex.Options{
		Timeout:          cfg.Plex.RequestTimeout,
		RequestInterval:  cfg.Plex.RequestInterval,
		ClientIdentifier: cfg.PlexClientIdentifier,
	})
	tv := plex.NewTVClient(plex.TVClientConfig{
		BaseURL:  cfg.Plex.TVURL,
		Token:    cfg.PlexOwnerToken,
		ClientID: cfg.PlexClientIdentifier,
	})

	libraries := make([]string, 0, len(cfg.LibraryFilters()))
	for _, lf := range cfg.LibraryFilters() {
		libraries = append(libraries, lf.Library)
	}
	reg := registry.New(registry.Config{
		OwnerName:    cfg.PlexOwnerName,
		OwnerToken:   cfg.PlexOwnerToken,
		ManagedUsers: cfg.ManagedUsers,
		Libraries:    libraries,
	}, client, tv)

	orch := orchestrator.New(orchestrator.Config{
		DryRun:  cfg.DryRun,
		Filters: cfg.LibraryFilters(),
		Groups:  cfg.Groups,
		Dispatch: dispatch.Config{
			BatchSize:  cfg.Update.BatchSize,
			BatchDelay: cfg.Update.BatchDelay,
			Retry:      retry.Policy{Attempts: cfg.Update.RetryAttempts, Delay: cfg.Update.RetryDelay},
		},
		LibraryRetry: retry.Policy{Attempts: cfg.Plex.LibraryRetryAttempts, Delay: cfg.Plex.LibraryRetryDelay},
	}, client, reg, watermark.NewStore(cfg.State.WatermarkPath))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := orch.Startup(ctx); err != nil {
		logging.Error().Err(err).Msg("Startup failed")
		return 1
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return 1
	}

	tree.AddJobService(orch)

	// A dry run is a one-off preview; it never installs a schedule.
	if expr, partial := cfg.CronExpression(); expr != "" && !cfg.DryRun {
		mode := orchestrator.ModeFull
		if partial {
			mode = orchestrator.ModePartial
		}
		sched, err := scheduler.New(expr, mode, orch)
		if err != nil {
			logging.Error().Err(err).Msg("Failed to create scheduler")
			return 1
		}
		tree.AddJobService(services.NewSchedulerService(sched))
		logging.Info().Str("cron", expr).Str("mode", string(mode)).Msg("Scheduled runs enabled")
	}

	router := api.NewRouter(
		api.NewHandler(orch, reg, version),
		api.NewChiMiddleware(&api.ChiMiddlewareConfig{
			RateLimitRequests: cfg.Server.RateLimitRequests,
			RateLimitWindow:   cfg.Server.RateLimitWindow,
			RateLimitDisabled: cfg.Server.RateLimitDisabled,
		}),
	)
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server configured")

	for _, mode := range orchestrator.StartupModes(cfg) {
		if _, err := orch.Trigger(mode); err != nil {
			logging.Warn().Err(err).Str("mode", string(mode)).Msg("Could not queue startup run")
		}
	}

	errCh := tree.ServeBackground(ctx)
	code := wait(ctx, cancel, errCh, orch.Fatal(), 2*cfg.Server.ShutdownTimeout)

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	if code == 0 {
		logging.Info().Msg("Defaulterr stopped")
	}
	return code
}

// wait blocks until a signal, a supervisor exit or a fatal run error, then
// stops the tree and returns the process exit code. errCh delivers one value
// and is never closed, so after cancel it is read at most once and no longer
// than stopTimeout.
func wait(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, fatal <-chan error, stopTimeout time.Duration) int {
	code := 0
	stopped := false
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
	case err := <-fatal:
		logging.Error().Err(err).Msg("Fatal error, shutting down")
		code = 1
	case err := <-errCh:
		stopped = true
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree stopped")
			code = 1
		}
	}

	cancel()
	if stopped {
		return code
	}
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(fmt.Errorf("supervisor shutdown: %w", err)).Send()
		}
	case <-time.After(stopTimeout):
		logging.Warn().Dur("timeout", stopTimeout).Msg("Supervisor tree did not stop in time")
	}
	return code
}
