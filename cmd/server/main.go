package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/generation"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/parser"
	"github.com/mmynk/splitledger/internal/resolver"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/postgres"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/internal/telemetry"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
	"github.com/mmynk/splitledger/pkg/logging"
)

const tokenDuration = 24 * time.Hour

func main() {
	configPath := flag.String("config", getEnv("SPLITLEDGER_CONFIG", "./splitledger.toml"), "path to the TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracing(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Tracer shutdown failed", "error", err)
		}
	}()

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()
	traced := telemetry.TraceStore(store, tp.Provider())

	collector := metrics.NewCollector("splitledger")

	registry := newRegistry(cfg.Generation)
	adapter := generation.NewAdapter(
		generation.WithTracerProvider(tp.Provider()),
		generation.WithTimeout(cfg.Generation.CallTimeout.Duration),
		generation.WithMetrics(collector),
	)
	p := parser.New(registry, adapter, parser.Tiers{
		Fast:    cfg.Generation.DefaultFast,
		Quality: cfg.Generation.DefaultQuality,
	}, collector)

	reconciler := ledger.NewReconciler(traced, traced, p, resolver.New(cfg.Resolver.Threshold),
		ledger.WithProTiers(parser.Tiers{Fast: cfg.Generation.ProFast, Quality: cfg.Generation.ProQuality}),
		ledger.WithMetrics(collector),
	)

	jwtManager := auth.NewJWTManager(cfg.Server.JWTSecret, tokenDuration)
	// Auth runs first so the logging interceptor sees the caller.
	interceptors := connect.WithInterceptors(
		middleware.RequireAuth(jwtManager),
		middleware.LoggingInterceptor(collector),
	)

	mux := http.NewServeMux()

	expensePath, expenseHandler := apiconnect.NewExpenseServiceHandler(service.NewExpenseService(reconciler, traced), interceptors)
	mux.Handle(expensePath, expenseHandler)

	groupPath, groupHandler := apiconnect.NewGroupServiceHandler(service.NewGroupService(traced), interceptors)
	mux.Handle(groupPath, groupHandler)

	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Connect-Protocol-Version", "Connect-Timeout-Ms"},
		ExposedHeaders: []string{"Connect-Protocol-Version", "Connect-Timeout-Ms"},
		MaxAge:         300,
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	handler := h2c.NewHandler(loggingMiddleware(corsHandler(mux)), &http2.Server{})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting",
			"address", server.Addr,
			"storage", cfg.Storage.Driver,
			"models", cfg.ModelKeys(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "postgres":
		client, err := postgres.NewClient(ctx, postgres.ClientConfig{
			DSN:      cfg.DSN,
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := client.RunMigrations(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		slog.Info("Storage initialized", "driver", "postgres")
		return postgres.NewStore(client), nil
	default:
		store, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		slog.Info("Storage initialized", "driver", "sqlite", "database", cfg.Path)
		return store, nil
	}
}

// newRegistry registers one OpenAI-compatible backend per configured tier.
func newRegistry(cfg config.GenerationConfig) *generation.Registry {
	registry := generation.NewRegistry()
	breaker := generation.BreakerConfig{
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval.Duration,
		Timeout:          cfg.Breaker.Timeout.Duration,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		MinRequests:      cfg.Breaker.MinRequests,
	}
	for key, model := range cfg.Models {
		registry.Register(key, generation.NewOpenAIBackend(generation.OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   model,
			Breaker: breaker,
		}))
	}
	return registry
}

// loggingMiddleware logs every HTTP request at debug level.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
