package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/llm-gateway/internal/config"
	"github.com/lexiqai/llm-gateway/internal/endpoint"
	"github.com/lexiqai/llm-gateway/internal/observability"
	"github.com/lexiqai/llm-gateway/internal/orchestrator"
	"github.com/lexiqai/llm-gateway/internal/resilience"
	"github.com/lexiqai/llm-gateway/internal/tools"
	"github.com/lexiqai/llm-gateway/internal/transport"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("local_llm_url", cfg.LocalLLMURL).
		Str("remote_llm_url", cfg.RemoteLLMURL).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("LLM Gateway starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	// Completions stream past any overall deadline; bound only the wait for headers
	streamTransport := http.DefaultTransport.(*http.Transport).Clone()
	streamTransport.ResponseHeaderTimeout = cfg.HTTPTimeout
	streamClient := &http.Client{Transport: streamTransport}
	retry := &resilience.RetryConfig{
		MaxAttempts:       cfg.RetryMaxAttempts,
		InitialBackoff:    cfg.RetryBackoff(),
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}

	// Endpoints: catalog first, then discovery
	lister := endpoint.NewOpenAILister(httpClient)
	endpoints := endpoint.NewRegistry(lister, observability.Component("endpoints"),
		endpoint.WithSourceAPIKey(string(endpoint.KindRemote), cfg.RemoteLLMAPIKey),
		endpoint.WithRetry(retry),
	)
	if cfg.EndpointCatalog != "" {
		catalog, err := endpoint.LoadCatalog(cfg.EndpointCatalog)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.EndpointCatalog).Msg("Failed to load endpoint catalog")
		}
		endpoints.Put(catalog...)
		logger.Info().Int("endpoints", len(catalog)).Msg("Endpoint catalog loaded")
	}

	sources := discoverySources(cfg)
	for _, res := range endpoints.RefreshAll(ctx, sources) {
		if res.Error != "" {
			logger.Warn().Str("source", res.Source).Str("error", res.Error).Msg("Initial model discovery failed")
		}
	}
	go endpoints.RunRefresh(ctx, sources, cfg.RefreshInterval)

	toolRegistry := tools.NewDefaultRegistry(cfg, httpClient, observability.Component("tools"))
	orch := orchestrator.New(endpoints, toolRegistry, orchestrator.Options{
		MaxInteractions:     cfg.MaxInteractions,
		HTTPClient:          streamClient,
		Retry:               retry,
		BreakerMaxFailures:  cfg.CircuitBreakerMaxFailures,
		BreakerResetTimeout: cfg.CircuitResetTimeout(),
		Logger:              observability.Component("orchestrator"),
	})

	checks := readinessChecks(endpoints, lister, sources, cfg.RemoteLLMAPIKey)

	// Create HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/chat", transport.HandleChatWS(orch, transport.Defaults{
		Temperature: cfg.DefaultTemperature,
		MaxTokens:   cfg.DefaultMaxTokens,
	}, observability.Component("transport")))
	mux.HandleFunc("/v1/endpoints", transport.EndpointsHandler(endpoints))
	mux.HandleFunc("/v1/endpoints/refresh", transport.RefreshHandler(endpoints, sources, observability.Component("transport")))
	mux.HandleFunc("/v1/circuits", transport.CircuitsHandler(orch))
	mux.HandleFunc("/v1/circuits/reset", transport.CircuitResetHandler(orch, observability.Component("transport")))
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// No WriteTimeout: completions stream for as long as the backend talks
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws/chat", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	var grpcHealth *observability.GRPCHealth
	if cfg.GRPCHealthPort != "" {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCHealthPort))
		if err != nil {
			logger.Fatal().Err(err).Str("port", cfg.GRPCHealthPort).Msg("Failed to listen for gRPC health")
		}
		grpcHealth = observability.NewGRPCHealth(checks, 15*time.Second, observability.Component("grpc_health"))
		go grpcHealth.Run(ctx)
		go func() {
			logger.Info().Str("port", cfg.GRPCHealthPort).Msg("gRPC health server listening")
			if err := grpcHealth.Serve(lis); err != nil {
				logger.Error().Err(err).Msg("gRPC health server stopped")
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if grpcHealth != nil {
		grpcHealth.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

func discoverySources(cfg *config.Config) []endpoint.Source {
	var sources []endpoint.Source
	if cfg.LocalLLMURL != "" {
		sources = append(sources, endpoint.Source{Name: string(endpoint.KindLocal), BaseURL: cfg.LocalLLMURL})
	}
	if cfg.RemoteLLMURL != "" {
		sources = append(sources, endpoint.Source{Name: string(endpoint.KindRemote), BaseURL: cfg.RemoteLLMURL})
	}
	return sources
}

// readinessChecks reports ready once any endpoint is known, and probes each
// discovery source separately
func readinessChecks(endpoints *endpoint.Registry, lister endpoint.ModelLister, sources []endpoint.Source, remoteKey string) map[string]observability.HealthCheckFunc {
	checks := map[string]observability.HealthCheckFunc{
		"endpoints": func(ctx context.Context) (bool, error) {
			if endpoints.Len() == 0 {
				return false, errors.New("no endpoints registered")
			}
			return true, nil
		},
	}

	for _, src := range sources {
		key := ""
		if src.Name == string(endpoint.KindRemote) {
			key = remoteKey
		}
		checks[src.Name+"_llm"] = func(ctx context.Context) (bool, error) {
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if _, err := lister.ListModels(ctx, src.BaseURL, key); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return checks
}
