// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teleframe/teleframe/addons/autoslide"
	"github.com/teleframe/teleframe/addons/starlogger"
	"github.com/teleframe/teleframe/internal/addon"
	"github.com/teleframe/teleframe/internal/addon/goaddon"
	addonlua "github.com/teleframe/teleframe/internal/addon/lua"
	"github.com/teleframe/teleframe/internal/config"
	"github.com/teleframe/teleframe/internal/event"
	"github.com/teleframe/teleframe/internal/images"
	"github.com/teleframe/teleframe/internal/logging"
	"github.com/teleframe/teleframe/internal/observability"
	"github.com/teleframe/teleframe/pkg/errutil"
)

// shutdownTimeout bounds graceful teardown of the observability server and
// addon hosts.
const shutdownTimeout = 5 * time.Second

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the frame",
		Long: `Start the frame host: load the image collection, construct the
addon registry, and route events until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFrame(cmd.Context(), cmd.Flags())
		},
	}

	cmd.Flags().String("addons-dir", "", "addon directory (default: XDG data dir)")
	cmd.Flags().String("images-dir", "", "image directory (default: XDG data dir)")
	cmd.Flags().String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-level", "", "log level (debug, info, warn, or error)")
	cmd.Flags().String("log-format", "", "log format (json or text)")

	return cmd
}

// runFrame is the composition root: it wires configuration, logging, the
// image collection, the event bus, and the addon registry, then blocks
// until the process is signalled.
func runFrame(ctx context.Context, flags *pflag.FlagSet) error {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}

	logging.SetDefault("teleframe", version, cfg.Logging.Format, cfg.Logging.Level)
	logger := slog.Default()

	logger.Info("starting frame",
		"config", cfg.Path(),
		"addons_dir", cfg.AddonsDir,
		"images_dir", cfg.ImagesDir,
	)

	collection, err := images.NewCollection(cfg.ImagesDir, cfg.ImagePatterns)
	if err != nil {
		return err
	}

	bus := event.NewBus()

	// Observability is optional; without an address the frame runs dark.
	var ready atomic.Bool
	var addonMetrics *addon.Metrics
	var obs *observability.Server
	if cfg.MetricsAddr != "" {
		obs = observability.NewServer(cfg.MetricsAddr, ready.Load)
		addonMetrics = addon.NewMetrics(obs.Registry())

		frameMetrics := obs.Metrics()
		bus.Notify(func(name event.Outbound, _ []any) {
			frameMetrics.EventsEmitted.WithLabelValues(string(name)).Inc()
		})

		if _, err := obs.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = obs.Stop(stopCtx)
		}()
	}

	builtins := addon.NewBuiltins()
	builtins.MustRegister(starlogger.Entry())
	builtins.MustRegister(autoslide.Entry())

	luaHost := addonlua.NewHost()
	binHost := goaddon.NewHost()

	registry, err := addon.New(ctx, &addon.Guard{}, addon.Options{
		Images:    collection,
		Logger:    logger,
		Emitter:   bus,
		Source:    bus,
		Builtins:  builtins,
		AddonsDir: cfg.AddonsDir,
		Addons:    cfg.Addons,
		Hosts:     []addon.Host{luaHost, binHost},
		Metrics:   addonMetrics,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := registry.Close(closeCtx); closeErr != nil {
			errutil.LogError(logger, "addon host shutdown failed", closeErr)
		}
	}()

	if err := registry.Activate(); err != nil {
		return err
	}

	if err := collection.Scan(); err != nil {
		errutil.LogWarn(logger, "initial image scan failed", err)
	}
	if obs != nil {
		obs.Metrics().ImagesTotal.Set(float64(collection.Count()))
	}

	// Startup sequence mirrors the renderer's signals.
	bus.Inject(event.InTeleFrameReady)
	bus.Inject(event.InImagesLoaded, collection.Count())

	ready.Store(true)
	logger.Info("frame ready",
		"addons", registry.Addons(),
		"images", collection.Count(),
	)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("shutting down")
	return nil
}
