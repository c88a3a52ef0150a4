package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clarvoy/clarvoy/infrastructure/httpapi"
	"github.com/clarvoy/clarvoy/infrastructure/llm"
	"github.com/clarvoy/clarvoy/infrastructure/middleware"
	"github.com/clarvoy/clarvoy/infrastructure/objects"
	"github.com/clarvoy/clarvoy/infrastructure/storage"
	"github.com/clarvoy/clarvoy/internal/application"
	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/logging"
	"github.com/clarvoy/clarvoy/internal/ports"
	"github.com/clarvoy/clarvoy/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until SIGINT or SIGTERM.

Configuration is read from --config when given, then overridden by
CLARVOY_* environment variables, e.g. CLARVOY_SERVER__ADDR=:9000.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := application.Load(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

// app holds everything serve starts and must release.
type app struct {
	server    *httpapi.Server
	store     ports.Store
	objects   *objects.FilesystemReader
	telemetry *telemetry.Telemetry
	logger    *zap.Logger
}

func (a *app) close(ctx context.Context) {
	if a.objects != nil {
		if err := a.objects.Close(); err != nil {
			a.logger.Warn("closing object store", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("flushing traces", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func serve(ctx context.Context, cfg application.Config) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	a, err := build(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		_ = logger.Sync()
		return err
	}
	defer a.close(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start(cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutting down: %w", err)
	}
	return <-errCh
}

// build wires the stores, providers and services behind the HTTP server.
func build(ctx context.Context, cfg application.Config, logger *zap.Logger, reg *prometheus.Registry) (*app, error) {
	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	a := &app{telemetry: tel, logger: logger}
	fail := func(err error) (*app, error) {
		a.close(context.Background())
		return nil, err
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fail(err)
	}
	a.store = store

	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewPrometheusMetrics(reg)

	engine, err := domain.NewNoiseEngine(cfg.Noise)
	if err != nil {
		return fail(err)
	}
	observer := middleware.NewOTelNoiseObserverWithProvider(metrics, tel.TracerProvider())

	budget, err := llm.NewBudgetManager(llm.Budget{
		MaxTokens: cfg.Coaching.TokenBudget,
		MaxCalls:  cfg.Coaching.CallBudget,
		Window:    cfg.Coaching.BudgetWindow,
	})
	if err != nil {
		return fail(fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err))
	}
	providers, err := llm.NewRegistry(llm.RegistryConfig{
		DefaultProvider: cfg.Coaching.DefaultProvider,
		Timeout:         cfg.Coaching.Timeout,
		Middleware:      coachingMiddleware(cfg.Coaching, budget, metrics, tel),
	})
	if err != nil {
		return fail(fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err))
	}

	reader, err := objects.NewFilesystemReader(cfg.Attachments.ObjectDir)
	if err != nil {
		return fail(err)
	}
	a.objects = reader
	extractor := objects.NewTextExtractor(reader, cfg.Attachments.MaxExtractedChars)

	audit := application.NewAuditService(store, metrics, logger)
	noise := application.NewNoiseService(store, engine, observer)
	services := httpapi.Services{
		Decisions:   application.NewDecisionService(store, audit),
		Judgments:   application.NewJudgmentService(store, noise, audit, logger),
		Noise:       noise,
		Comments:    application.NewCommentService(store, audit),
		Attachments: application.NewAttachmentService(store, extractor, audit, cfg.Attachments, logger),
		Coaching: application.NewCoachingService(providers, store, noise, cfg.Coaching, logger,
			application.WithTracerProvider(tel.TracerProvider())),
		Audit:     audit,
		Analytics: application.NewAnalyticsService(store, noise),
	}

	opts := httpapi.Options{
		Logger:    logger,
		Metrics:   metrics,
		BodyLimit: cfg.Server.BodyLimit,
		Health:    store,
	}
	if cfg.Metrics.Enabled {
		opts.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
		opts.MetricsPath = cfg.Metrics.Path
	}
	server, err := httpapi.NewServer(services, opts)
	if err != nil {
		return fail(err)
	}
	a.server = server

	logger.Info("clarvoy configured",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("default_provider", providers.DefaultProvider()),
		zap.Float64("noise_threshold", noise.Threshold()),
		zap.Bool("tracing", cfg.Telemetry.Enabled),
	)
	return a, nil
}

func openStore(ctx context.Context, cfg application.StorageConfig) (ports.Store, error) {
	switch cfg.Driver {
	case application.DriverPostgres:
		store, err := storage.NewPostgresStore(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return store, nil
	case application.DriverMemory, "":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", domain.ErrInvalidConfiguration, cfg.Driver)
	}
}

// coachingMiddleware builds the per-provider chain, outermost first. The
// timeout sits inside the retry loop so it bounds each attempt.
func coachingMiddleware(cfg application.CoachingConfig, budget *llm.BudgetManager, metrics ports.MetricsCollector, tel *telemetry.Telemetry) func(string) []llm.Middleware {
	limiter := rate.Limit(cfg.RequestsPerSecond)
	return func(provider string) []llm.Middleware {
		return []llm.Middleware{
			llm.TracingMiddlewareWithProvider(provider, tel.TracerProvider()),
			llm.MetricsMiddleware(provider, metrics),
			llm.BudgetMiddleware(budget),
			llm.CircuitBreakerMiddleware(cfg.BreakerFailures, cfg.BreakerCooldown),
			llm.RetryMiddleware(cfg.MaxRetries, cfg.RetryBaseDelay, cfg.RetryMaxDelay),
			llm.RateLimitMiddleware(limiter, cfg.Burst),
			llm.TimeoutMiddleware(cfg.Timeout),
		}
	}
}
