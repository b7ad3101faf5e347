package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sourcegraph/conc"

	"github.com/coachpo/spawnpool/internal/config"
	"github.com/coachpo/spawnpool/internal/diagnostics"
	"github.com/coachpo/spawnpool/internal/observability"
	"github.com/coachpo/spawnpool/internal/registry"
	"github.com/coachpo/spawnpool/internal/scene"
	"github.com/coachpo/spawnpool/internal/telemetry"
)

const (
	lifecycleLoggerPrefix       = "spawnpool "
	metricsNamespace            = "spawnpool"
	shutdownTimeout             = 30 * time.Second
	statusServerShutdownTimeout = 5 * time.Second
	lifecycleShutdownTimeout    = 10 * time.Second
	registryShutdownTimeout     = 5 * time.Second
	telemetryShutdownTimeout    = 5 * time.Second
)

func newSignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func newLifecycleLogger(out io.Writer) *log.Logger {
	return log.New(out, lifecycleLoggerPrefix, log.LstdFlags|log.Lmicroseconds)
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return filepath.Clean(defaultConfigPath)
}

func printConfig(ctx context.Context, path string, out io.Writer) error {
	cfg, err := config.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func run(ctx context.Context, cancel context.CancelFunc, configPath string, out io.Writer) error {
	logger := newLifecycleLogger(out)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Printf("configuration initialised: env=%s, pools=%d", cfg.Environment, len(cfg.Pools))

	zapLogger, err := observability.NewZap(observability.ZapConfig{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Encoding:    cfg.Logging.Encoding,
		OutputPaths: nil,
	})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	appLogger := observability.NewZapLogger(zapLogger)
	observability.SetLogger(appLogger)
	defer func() { _ = appLogger.Sync() }()

	telemetryProvider, err := initTelemetry(ctx, logger, cfg)
	if err != nil {
		return err
	}

	reg, templates, err := bootstrapRegistry(ctx, telemetryProvider, cfg, appLogger)
	if err != nil {
		return err
	}
	logger.Printf("pools warmed: %d", len(templates))
	reg.PrintStatus()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		telemetry.NewCollector(metricsNamespace, reg),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	var lifecycle conc.WaitGroup
	reporter := diagnostics.NewReporter(reg, cfg.Diagnostics.Interval)
	lifecycle.Go(func() { reporter.Run(runCtx) })
	if cfg.Workload.Enabled && len(templates) > 0 {
		w := newWorkload(reg, templates, cfg.Workload.Burst)
		lifecycle.Go(func() { w.run(runCtx, cfg.Workload.Interval) })
		logger.Printf("synthetic workload started: burst=%d, interval=%s", cfg.Workload.Burst, cfg.Workload.Interval)
	}

	server := buildStatusServer(cfg.Server.Addr, reg, promRegistry)
	startStatusServer(&lifecycle, logger, server)
	logger.Printf("status server listening on %s", server.Addr)

	logger.Print("spawnpool started; awaiting shutdown signal")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownStart := time.Now()
	err = performGracefulShutdown(shutdownCtx, logger, gracefulShutdownConfig{
		server:        server,
		mainCancel:    func() { stopRun(); cancel() },
		lifecycle:     &lifecycle,
		closeRegistry: true,
		telemetry:     telemetryProvider,
		logger:        appLogger,
	})
	logger.Printf("shutdown completed in %v", time.Since(shutdownStart))
	return err
}

func initTelemetry(ctx context.Context, logger *log.Logger, cfg config.AppConfig) (*telemetry.Provider, error) {
	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Enabled = cfg.Telemetry.Enabled
	if cfg.Telemetry.OTLPEndpoint != "" {
		telemetryCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	if cfg.Telemetry.ServiceName != "" {
		telemetryCfg.ServiceName = cfg.Telemetry.ServiceName
	}
	if cfg.Telemetry.MetricInterval > 0 {
		telemetryCfg.MetricInterval = cfg.Telemetry.MetricInterval
	}
	telemetryCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	telemetryCfg.Environment = string(cfg.Environment)

	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}
	if provider.Enabled() {
		logger.Printf("telemetry initialized: endpoint=%s, service=%s", telemetryCfg.OTLPEndpoint, telemetryCfg.ServiceName)
	} else {
		logger.Printf("telemetry disabled")
	}
	return provider, nil
}

func buildRegistry(provider *telemetry.Provider, cfg config.AppConfig, logger observability.Logger) (*registry.Registry, error) {
	meter := provider.Meter("spawnpool.registry")
	instruments, err := telemetry.NewInstruments(meter)
	if err != nil {
		return nil, fmt.Errorf("create registry instruments: %w", err)
	}

	opts := []registry.Option{
		registry.WithLogger(logger),
		registry.WithObserver(instruments),
		registry.WithLogStatus(cfg.Registry.LogStatus),
		registry.WithAutoWarm(cfg.Registry.AutoWarm),
		registry.WithPoolLimit(cfg.Registry.PoolLimit),
		registry.WithWarmConcurrency(cfg.Registry.WarmConcurrency),
		registry.WithInstantiateRetries(cfg.Registry.InstantiateRetries, cfg.Registry.RetryInterval),
	}
	if cfg.Registry.Root != "" {
		opts = append(opts, registry.WithRoot(scene.NewNode(cfg.Registry.Root)))
	}
	reg := registry.New(opts...)

	if err := telemetry.ObservePoolMetrics(meter, reg); err != nil {
		return nil, fmt.Errorf("observe pool metrics: %w", err)
	}
	return reg, nil
}

// bootstrapRegistry builds the registry, installs it as the default and
// warms the manifest pools. On failure the default registry and the telemetry
// provider are shut down before returning.
func bootstrapRegistry(ctx context.Context, provider *telemetry.Provider, cfg config.AppConfig, logger observability.Logger) (*registry.Registry, []registry.Template, error) {
	reg, err := buildRegistry(provider, cfg, logger)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, nil, err
	}
	registry.InitDefault(reg)

	templates, err := warmManifest(ctx, reg, cfg.Pools)
	if err != nil {
		_ = registry.ShutdownDefault()
		_ = provider.Shutdown(context.Background())
		return nil, nil, err
	}
	return reg, templates, nil
}

// buildTemplate turns a manifest entry into the template its kind names.
func buildTemplate(entry config.PoolEntry) (registry.Template, error) {
	switch entry.Kind {
	case config.KindPrefab:
		return scene.NewPrefab(entry.Name, entry.Components), nil
	case config.KindAsset:
		return scene.NewAssetTemplate(entry.Name, entry.Components), nil
	default:
		return nil, fmt.Errorf("pool %s: unknown kind %q", entry.Name, entry.Kind)
	}
}

func warmManifest(ctx context.Context, reg *registry.Registry, entries []config.PoolEntry) ([]registry.Template, error) {
	templates := make([]registry.Template, 0, len(entries))
	for _, entry := range entries {
		template, err := buildTemplate(entry)
		if err != nil {
			return nil, err
		}
		if err := reg.Warm(ctx, template, entry.Size); err != nil {
			return nil, fmt.Errorf("warm pool %s: %w", entry.Name, err)
		}
		templates = append(templates, template)
	}
	return templates, nil
}

type gracefulShutdownConfig struct {
	server        statusServer
	mainCancel    context.CancelFunc
	lifecycle     *conc.WaitGroup
	closeRegistry bool
	telemetry     *telemetry.Provider
	logger        observability.Logger
}

type statusServer interface {
	Shutdown(ctx context.Context) error
}

func performGracefulShutdown(ctx context.Context, logger *log.Logger, cfg gracefulShutdownConfig) error {
	var failures []error
	shutdownStep := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		logger.Printf("shutdown: %s...", name)
		if err := fn(stepCtx); err != nil {
			logger.Printf("shutdown: %s failed: %v", name, err)
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
		} else {
			logger.Printf("shutdown: %s completed", name)
		}
	}

	if cfg.server != nil {
		shutdownStep("stopping status server", statusServerShutdownTimeout, func(stepCtx context.Context) error {
			return cfg.server.Shutdown(stepCtx)
		})
	}

	logger.Print("shutdown: cancelling main context")
	if cfg.mainCancel != nil {
		cfg.mainCancel()
	}

	if cfg.lifecycle != nil {
		shutdownStep("waiting for lifecycle goroutines", lifecycleShutdownTimeout, func(stepCtx context.Context) error {
			done := make(chan struct{})
			go func() {
				cfg.lifecycle.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-stepCtx.Done():
				return fmt.Errorf("timeout waiting for goroutines: %w", stepCtx.Err())
			}
		})
	}

	if cfg.closeRegistry {
		shutdownStep("closing pool registry", registryShutdownTimeout, func(context.Context) error {
			return registry.ShutdownDefault()
		})
	}

	if cfg.telemetry != nil {
		shutdownStep("shutting down telemetry", telemetryShutdownTimeout, func(stepCtx context.Context) error {
			return cfg.telemetry.Shutdown(stepCtx)
		})
	}

	return observability.JoinErrors(cfg.logger, "shutdown", failures)
}
