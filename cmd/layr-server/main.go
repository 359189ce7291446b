// Package main implements the entry point for the layr query server. It
// loads layered configuration, registers the application's component tree,
// and serves the component query protocol over the configured transports.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/layrjs/layr-sub008/componentregistry"
	"github.com/layrjs/layr-sub008/config"
	"github.com/layrjs/layr-sub008/health"
	"github.com/layrjs/layr-sub008/metric"
	"github.com/layrjs/layr-sub008/query"
	"github.com/layrjs/layr-sub008/transport/httptransport"
	"github.com/layrjs/layr-sub008/transport/natstransport"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "layr-server"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	slog.Info("Starting layr query server",
		"version", Version,
		"build_time", BuildTime,
		"config_layers", cliCfg.ConfigPaths)

	return serve(cfg, logger)
}

// loadConfig stacks the configured layers and applies CLI overrides.
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	for _, path := range cliCfg.ConfigPaths {
		loader.AddLayer(path)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}

	return cfg, nil
}

// serve wires registry, engine, and transports, then blocks until a
// shutdown signal arrives.
func serve(cfg *config.Config, logger *slog.Logger) error {
	registry := componentregistry.NewRegistry()
	root, err := registerApplication(registry)
	if err != nil {
		return fmt.Errorf("register application: %w", err)
	}
	slog.Info("Application components registered",
		"root", root.Name(),
		"components", registry.Names())

	metricsRegistry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()

	engine, err := query.NewEngine(registry, root,
		query.WithMetrics(metricsRegistry.CoreMetrics()),
		query.WithLogger(logger),
		query.WithName(cfg.Server.Name),
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	signalCtx, signalCancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	group, groupCtx := errgroup.WithContext(signalCtx)
	var stops []func(context.Context) error

	if cfg.HTTP.Enabled {
		httpServer, err := httptransport.NewServer(engine, cfg.HTTP.Config,
			httptransport.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("create HTTP transport: %w", err)
		}
		monitor.UpdateHealthy("http", "serving "+cfg.HTTP.Addr)
		group.Go(func() error {
			err := httpServer.Start()
			if err != nil && !isServerClosed(err) {
				monitor.UpdateUnhealthy("http", err.Error())
				return err
			}
			return nil
		})
		stops = append(stops, httpServer.Stop)
	}

	if cfg.NATS.Enabled {
		natsServer, err := natstransport.NewServer(engine, cfg.NATS.Config,
			natstransport.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("create NATS transport: %w", err)
		}
		group.Go(func() error {
			if err := natsServer.Start(groupCtx); err != nil {
				monitor.UpdateUnhealthy("nats", err.Error())
				return err
			}
			monitor.UpdateHealthy("nats", "subscribed on "+cfg.NATS.Subject)
			<-groupCtx.Done()
			return nil
		})
		stops = append(stops, func(context.Context) error { return natsServer.Stop() })
	}

	if cfg.Metrics.Enabled {
		metricsServer := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
		metricsServer.SetHealthHandler(monitor.Handler(cfg.Server.Name))
		group.Go(func() error {
			if err := metricsServer.Start(); err != nil && !isServerClosed(err) {
				return err
			}
			return nil
		})
		stops = append(stops, metricsServer.Stop)
	}

	slog.Info("Server started", "name", cfg.Server.Name)

	<-groupCtx.Done()
	slog.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	for _, stop := range stops {
		if err := stop(shutdownCtx); err != nil {
			slog.Warn("Shutdown error", "error", err)
		}
	}

	if err := group.Wait(); err != nil && !isServerClosed(err) {
		return fmt.Errorf("serve: %w", err)
	}

	slog.Info("Shutdown complete",
		"timeout", cfg.Server.ShutdownTimeout.Round(time.Millisecond))
	return nil
}

// isServerClosed filters the expected error HTTP listeners return after a
// graceful Shutdown.
func isServerClosed(err error) bool {
	return stderrors.Is(err, http.ErrServerClosed)
}
