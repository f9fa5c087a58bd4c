// Package main implements the entry point for osdugate, the OSDU
// exploration gateway. It fronts OSDU backend services (schema, legal,
// entitlements, search, storage) with a REST surface, GraphQL pass-through,
// runtime schema discovery, and an artifact preview proxy.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/osdugate/config"
	"github.com/c360/osdugate/filestore"
	"github.com/c360/osdugate/gateway/chat"
	gatewayhttp "github.com/c360/osdugate/gateway/http"
	"github.com/c360/osdugate/health"
	"github.com/c360/osdugate/metric"
	"github.com/c360/osdugate/natsclient"
	"github.com/c360/osdugate/osdu"
	"github.com/c360/osdugate/osdu/auth"
	"github.com/c360/osdugate/osdu/introspect"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "osdugate"
)

func main() {
	// Add panic recovery
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
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	registry := metric.NewRegistry()
	metrics := registry.CoreMetrics()
	monitor := health.NewMonitor()

	tokens, err := buildTokenSource(cfg, metrics, logger)
	if err != nil {
		return fmt.Errorf("create token source: %w", err)
	}

	osduClient, err := osdu.NewClient(cfg, tokens,
		osdu.WithMetrics(metrics),
		osdu.WithLogger(logger.With("component", "osdu")))
	if err != nil {
		return fmt.Errorf("create OSDU client: %w", err)
	}

	natsClient, sharedKV, err := setupSharedCache(ctx, cfg, monitor, logger)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer natsClient.Close(ctx)
	}

	schemas, err := setupIntrospection(ctx, cfg, osduClient, sharedKV, logger)
	if err != nil {
		return err
	}
	osduClient.UseIntrospection(schemas)

	store, err := setupFilestore(cfg, monitor, logger)
	if err != nil {
		return err
	}

	server, err := buildGateway(cfg, osduClient, schemas, store, monitor, metrics, logger)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metricsServer := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() { _ = metricsServer.Stop() }()
		slog.Info("Metrics server started", "address", metricsServer.Address())
	}

	return runWithSignalHandling(ctx, server, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting osdugate (OSDU exploration gateway)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// buildTokenSource picks the Cognito client-credentials flow, or the
// static fallback token for local development
func buildTokenSource(cfg *config.Config, metrics *metric.Metrics, logger *slog.Logger) (auth.Source, error) {
	if cfg.Auth.TokenURL == "" {
		if cfg.Auth.FallbackToken == "" {
			return nil, fmt.Errorf("either auth.token_url or auth.fallback_token is required")
		}
		slog.Warn("Using static fallback token; upstream auth will not refresh")
		return auth.StaticSource(cfg.Auth.FallbackToken), nil
	}

	return auth.NewCognitoSource(cfg.Auth.TokenURL, cfg.Auth.ClientID, cfg.Auth.ClientSecret,
		auth.WithScope(cfg.Auth.Scope),
		auth.WithRefreshAhead(cfg.Auth.RefreshAhead.Std()),
		auth.WithMetrics(metrics),
		auth.WithLogger(logger.With("component", "auth")))
}

// setupSharedCache connects to NATS and opens the shared introspection
// KV bucket. Disabled NATS leaves replicas discovering independently.
func setupSharedCache(ctx context.Context, cfg *config.Config, monitor *health.Monitor,
	logger *slog.Logger) (*natsclient.Client, *natsclient.KVStore, error) {

	if !cfg.NATS.Enabled {
		return nil, nil, nil
	}

	natsClient, err := natsclient.NewClient(strings.Join(cfg.NATS.URLs, ","),
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait.Std()),
		natsclient.WithLogger(logger.With("component", "natsclient")))
	if err != nil {
		return nil, nil, fmt.Errorf("create NATS client: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := natsClient.Connect(connCtx); err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	bucket, err := natsClient.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.NATS.Bucket,
		Description: "shared OSDU introspection cache",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create KV bucket %s: %w", cfg.NATS.Bucket, err)
	}

	monitor.Register("nats", func(context.Context) error {
		if !natsClient.IsHealthy() {
			return fmt.Errorf("NATS connection unavailable")
		}
		return nil
	})

	slog.Info("Shared introspection cache enabled", "bucket", cfg.NATS.Bucket)
	return natsClient, natsClient.NewKVStore(bucket), nil
}

// setupIntrospection builds the schema discovery manager and optionally
// warms it for all configured services
func setupIntrospection(ctx context.Context, cfg *config.Config, client *osdu.Client,
	sharedKV *natsclient.KVStore, logger *slog.Logger) (*introspect.Manager, error) {

	opts := []introspect.ManagerOption{
		introspect.WithLogger(logger.With("component", "introspect")),
	}
	if sharedKV != nil {
		opts = append(opts, introspect.WithSharedKV(sharedKV))
	}

	manager, err := introspect.NewManager(ctx, client, cfg.Introspection.TTL.Std(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create introspection manager: %w", err)
	}

	if cfg.Introspection.WarmOnStartup && cfg.Partition.Default != "" {
		go manager.Warm(ctx, client.Services(), cfg.Partition.Default)
	}

	return manager, nil
}

// setupFilestore opens the artifact store when storage is configured
func setupFilestore(cfg *config.Config, monitor *health.Monitor,
	logger *slog.Logger) (*filestore.Store, error) {

	if cfg.Storage.Endpoint == "" {
		slog.Info("Artifact store not configured, /file routes disabled")
		return nil, nil
	}

	store, err := filestore.New(cfg.Storage,
		filestore.WithLogger(logger.With("component", "filestore")))
	if err != nil {
		return nil, fmt.Errorf("create filestore: %w", err)
	}

	monitor.Register("filestore", store.HealthCheck)
	return store, nil
}

// buildGateway assembles the HTTP server with all configured surfaces
func buildGateway(cfg *config.Config, client *osdu.Client, schemas *introspect.Manager,
	store *filestore.Store, monitor *health.Monitor, metrics *metric.Metrics,
	logger *slog.Logger) (*gatewayhttp.Server, error) {

	opts := []gatewayhttp.Option{
		gatewayhttp.WithIntrospection(schemas),
		gatewayhttp.WithValidation(),
		gatewayhttp.WithMonitor(monitor),
		gatewayhttp.WithMetrics(metrics),
		gatewayhttp.WithLogger(logger.With("component", "gateway")),
	}
	if store != nil {
		opts = append(opts, gatewayhttp.WithFilestore(store))
	}

	if cfg.Chat.Enabled {
		chatHandler, err := chat.NewHandler(cfg.Chat, client,
			chat.WithLogger(logger.With("component", "chat")),
			chat.WithAllowedOrigins(cfg.Gateway.CORSOrigins))
		if err != nil {
			return nil, fmt.Errorf("create chat handler: %w", err)
		}
		opts = append(opts, gatewayhttp.WithChat(chatHandler))
	}

	server, err := gatewayhttp.NewServer(cfg.Gateway, client, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gateway server: %w", err)
	}
	if err := server.Setup(); err != nil {
		return nil, fmt.Errorf("setup gateway server: %w", err)
	}
	return server, nil
}

// runWithSignalHandling starts the gateway and blocks until a shutdown
// signal arrives
func runWithSignalHandling(ctx context.Context, server *gatewayhttp.Server,
	shutdownTimeout time.Duration) error {

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	ready := make(chan struct{})
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(signalCtx, ready)
	}()

	select {
	case <-ready:
		slog.Info("osdugate started successfully")
	case err := <-errChan:
		return fmt.Errorf("start gateway: %w", err)
	}

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := server.Stop(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	// Drain the server goroutine
	select {
	case <-errChan:
	case <-time.After(shutdownTimeout):
	}

	slog.Info("osdugate shutdown complete")
	return nil
}
