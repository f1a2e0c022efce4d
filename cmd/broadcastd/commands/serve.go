package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/xystevensun/spark-private/internal/logger"
	"github.com/xystevensun/spark-private/pkg/auth"
	"github.com/xystevensun/spark-private/pkg/blockcache"
	badgercache "github.com/xystevensun/spark-private/pkg/blockcache/badger"
	"github.com/xystevensun/spark-private/pkg/blockcache/memory"
	"github.com/xystevensun/spark-private/pkg/broadcast"
	"github.com/xystevensun/spark-private/pkg/config"
	"github.com/xystevensun/spark-private/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the broadcast origin node",
	Long: `Start the origin node: bind the transport endpoint, publish the
base URI, and run the cleanup sweeper until interrupted.

Examples:
  # Serve with the default config location
  broadcastd serve

  # Serve with a custom config file
  broadcastd serve --config /etc/broadcastd/config.yaml

  # Override settings from the environment
  BROADCASTD_LOGGING_LEVEL=DEBUG broadcastd serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return err
	}

	cache, err := buildCache(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	secctx, err := buildSecurity(cfg)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		m = metrics.New(reg)

		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		go func() {
			logger.Info("metrics server listening", "port", cfg.Metrics.Port)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	manager := broadcast.NewManager(cfg.Broadcast, broadcast.Options{
		Cache:    cache,
		Security: secctx,
		Metrics:  m,
	})

	ctx := context.Background()
	if err := manager.Initialize(ctx, true); err != nil {
		return err
	}
	logger.Info("origin ready", "base_uri", manager.BaseURI())

	// Block until interrupted.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	return manager.Stop(shutdownCtx)
}

// buildCache selects the block cache implementation from configuration.
func buildCache(cfg *config.Config) (blockcache.Store, error) {
	if cfg.Broadcast.CachePath != "" {
		return badgercache.NewBadgerStore(cfg.Broadcast.CachePath)
	}
	return memory.NewMemoryStore(), nil
}

// buildSecurity selects the security context from configuration.
func buildSecurity(cfg *config.Config) (auth.SecurityContext, error) {
	if !cfg.Auth.Enabled {
		return auth.Disabled{}, nil
	}
	return auth.NewTokenService(auth.TokenConfig{
		Secret:   cfg.Auth.Secret,
		TokenTTL: cfg.Auth.TokenTTL,
	})
}
