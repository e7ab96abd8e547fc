// Command hamrd is the hamr background daemon: RPC hub, plugin lifecycle
// manager, and search/ranking engine.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hamr/hamrd/internal/adminhttp"
	"github.com/hamr/hamrd/internal/config"
	"github.com/hamr/hamrd/internal/core"
	"github.com/hamr/hamrd/internal/indexstore"
	"github.com/hamr/hamrd/internal/manifest"
	"github.com/hamr/hamrd/internal/metrics"
	"github.com/hamr/hamrd/internal/rpcserver"
	"github.com/hamr/hamrd/internal/session"
	"github.com/hamr/hamrd/internal/supervisor"
	"github.com/hamr/hamrd/internal/thumbnail"
)

func newLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func main() {
	var configPath string
	var socketOverride string

	root := &cobra.Command{Use: "hamrd"}

	run := &cobra.Command{
		Use:   "run",
		Short: "run the hamr daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(configPath, socketOverride)
		},
	}
	run.Flags().StringVar(&configPath, "config", defaultConfigPath(), "path to hamr.json")
	run.Flags().StringVar(&socketOverride, "socket", "", "override the configured socket path")

	root.AddCommand(run)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/hamr/hamr.json"
	}
	return "hamr.json"
}

func runDaemon(configPath, socketOverride string) error {
	bootstrapLogger := newLogger("text")
	cfg, err := config.Load(configPath, bootstrapLogger)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogFormat)

	socketPath := cfg.SocketPath
	if socketOverride != "" {
		socketPath = socketOverride
	}

	// metrics.New registers against the default registerer so adminhttp's
	// /metrics (promhttp.Handler, which gathers from the default registry)
	// serves them without the two packages needing to share a reference.
	m := metrics.New(prometheus.DefaultRegisterer)
	m.ConnectedSessions.Set(0)

	c := core.New(logger, 64)
	c.SetSuggestionTuning(cfg.Suggestions.HalfLifeDays, cfg.Suggestions.MaxAgeDays)
	c.SetRankingTuning(cfg.Search.PluginBonus, cfg.Search.MaxDisplayedResults)
	sessions := session.NewRegistry()

	if thumbCache, err := thumbnail.NewCache(filepath.Join(os.TempDir(), "hamr-thumbnails")); err != nil {
		logger.Warn("thumbnail cache unavailable", "error", err)
	} else {
		c.SetThumbnailCache(thumbCache)
		defer thumbnail.Shutdown()
	}

	cachePath := indexstore.DefaultCachePath(os.TempDir())
	if store, err := indexstore.Load(cachePath); err == nil {
		c.AdoptStore(store)
		logger.Info("loaded index cache", "plugins", len(store.Indexes))
	} else {
		logger.Warn("failed to load index cache", "error", err)
	}

	discovered, err := manifest.ScanAll(cfg.BuiltinDir, cfg.UserDir)
	if err != nil {
		logger.Warn("initial plugin discovery failed", "error", err)
	}
	for _, d := range discovered {
		c.RegisterPlugin(d)
	}
	logger.Info("discovered plugins", "count", len(discovered))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, err := manifest.NewWatcher(cfg.BuiltinDir, cfg.UserDir, toKnownMap(discovered), logger)
	if err != nil {
		logger.Warn("failed to start plugin discovery watcher", "error", err)
	} else {
		go watcher.Run(ctx, func(diff manifest.RescanDiff) {
			logger.Info("plugin set changed", "added", len(diff.Added), "removed", len(diff.Removed), "updated", len(diff.Updated))
		})
		defer watcher.Close()
	}

	admin := adminhttp.New(c, sessions.Count)
	go func() {
		if err := admin.Run(cfg.AdminAddr); err != nil {
			logger.Warn("admin http server stopped", "error", err)
		}
	}()

	backoffCfg := supervisor.BackoffConfig{
		BaseDelay:   time.Duration(cfg.Supervisor.BaseDelaySeconds) * time.Second,
		MaxDelay:    time.Duration(cfg.Supervisor.MaxDelaySeconds) * time.Second,
		MaxRestarts: cfg.Supervisor.MaxRestarts,
	}
	super := supervisor.New(backoffCfg, logger, supervisor.WithRestartHook(func(pluginID string) {
		m.PluginRestarts.WithLabelValues(pluginID).Inc()
	}))
	defer super.StopAll()
	for _, d := range discovered {
		if !d.Manifest.IsBackground {
			continue
		}
		spec := supervisor.ProcessSpec{PluginID: d.Manifest.ID, Command: d.Manifest.Handler, Dir: d.Path, Background: true}
		if err := super.Start(ctx, spec, func(line string) { logger.Warn("plugin stderr", "plugin", d.Manifest.ID, "line", line) }); err != nil {
			logger.Warn("failed to start background plugin", "plugin", d.Manifest.ID, "error", err)
		}
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.ConnectedSessions.Set(float64(sessions.Count()))
				for pluginID, idx := range c.Store().Indexes {
					m.IndexedItems.WithLabelValues(pluginID).Set(float64(len(idx.Items)))
				}
			}
		}
	}()

	os.Remove(socketPath) // clear a stale socket left by an unclean previous shutdown
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("hamrd: listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	logger.Info("hamrd listening", "socket", socketPath)

	server := rpcserver.New(c, sessions, cfg.BuiltinDir, cfg.UserDir, logger,
		rpcserver.WithQueryLatencyObserver(func(d time.Duration) { m.QueryLatency.Observe(d.Seconds()) }))
	go server.Serve(ctx, listener)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	if err := indexstore.Save(cachePath, c.Store(), time.Now()); err != nil {
		logger.Warn("failed to save index cache", "error", err)
	}
	return nil
}

func toKnownMap(discovered []*manifest.Discovered) map[string]*manifest.Discovered {
	out := make(map[string]*manifest.Discovered, len(discovered))
	for _, d := range discovered {
		out[d.Manifest.ID] = d
	}
	return out
}
