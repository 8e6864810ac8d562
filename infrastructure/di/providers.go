package di

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mindmap-backend/application/ports"
	"mindmap-backend/application/services"
	"mindmap-backend/infrastructure/ai"
	"mindmap-backend/infrastructure/config"
	"mindmap-backend/infrastructure/observability"
	"mindmap-backend/infrastructure/persistence/memory"
	"mindmap-backend/interfaces/http/rest"
	"mindmap-backend/interfaces/http/rest/handlers"
	pkgerrors "mindmap-backend/pkg/errors"
)

// ProvideLogger creates the application logger at the configured level
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideMetrics creates the Prometheus collector, or nil when metrics are disabled
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.Observability.EnableMetrics {
		return nil
	}
	return observability.NewCollector("mindmap")
}

// ProvideMetricsRecorder adapts the optional collector to the service port
func ProvideMetricsRecorder(collector *observability.Collector) ports.MetricsRecorder {
	if collector == nil {
		return ports.NopMetrics{}
	}
	return collector
}

// ProvideTracing installs the tracer provider; the cleanup flushes spans
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: cfg.Observability.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Observability.TracingEndpoint,
		SampleRate:  cfg.Observability.SampleRate,
		Enabled:     cfg.Observability.EnableTracing,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideSessionStore creates the in-memory store and starts its sweeper
func ProvideSessionStore(cfg *config.Config, logger *zap.Logger) (*memory.SessionStore, func()) {
	store := memory.NewSessionStore(cfg.Sessions.MaxSessions, cfg.Sessions.IdleTTL, logger)
	store.StartCleanup(cfg.Sessions.CleanupInterval)
	return store, func() { _ = store.Close() }
}

// ProvideSessionRepository exposes the store through the repository port
func ProvideSessionRepository(store *memory.SessionStore) ports.SessionRepository {
	return store
}

// ProvideGenerator connects to Gemini, or falls back to the offline
// generator when no API key is configured
func ProvideGenerator(ctx context.Context, cfg *config.Config, collector *observability.Collector, logger *zap.Logger) (ports.Generator, error) {
	if cfg.AI.APIKey == "" {
		logger.Warn("No Gemini API key configured, generation falls back to defaults")
		return ai.OfflineGenerator{}, nil
	}
	client, err := ai.NewClient(ctx, cfg.AI)
	if err != nil {
		return nil, err
	}
	var recorder ai.CallRecorder
	if collector != nil {
		recorder = collector
	}
	return ai.NewGeminiGenerator(client.Models, cfg.AI, recorder, logger), nil
}

// ProvideRuntimeSettings watches the dynamic config file when one is
// configured and serves the static values otherwise. Reloads that change a
// value are counted on the collector.
func ProvideRuntimeSettings(cfg *config.Config, collector *observability.Collector, logger *zap.Logger) (ports.RuntimeSettings, func(), error) {
	if cfg.DynamicConfigPath == "" {
		return ports.StaticSettings{
			Layout:   cfg.Dynamic.Layout,
			Capacity: cfg.Dynamic.History.Capacity,
		}, func() {}, nil
	}
	w, err := config.NewWatcher(cfg.DynamicConfigPath, cfg.Dynamic, logger)
	if err != nil {
		return nil, nil, err
	}
	if collector != nil {
		w.OnChange(func(old, updated config.DynamicConfig) {
			if old != updated {
				collector.RecordConfigReload()
			}
		})
	}
	w.Start()
	return w, w.Stop, nil
}

// ProvideSessionService creates the session service
func ProvideSessionService(
	repo ports.SessionRepository,
	generator ports.Generator,
	settings ports.RuntimeSettings,
	metrics ports.MetricsRecorder,
	logger *zap.Logger,
) *services.SessionService {
	return services.NewSessionService(repo, generator, settings, metrics, logger)
}

// ProvideErrorHandler creates the HTTP error handler; development includes stack traces
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideSessionHandler creates the session HTTP handler
func ProvideSessionHandler(service *services.SessionService, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *handlers.SessionHandler {
	return handlers.NewSessionHandler(service, errorHandler, logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	sessions *handlers.SessionHandler,
	repo ports.SessionRepository,
	collector *observability.Collector,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(sessions, repo, collector, rest.RouterConfig{
		ServiceName:    cfg.Observability.ServiceName,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableTracing:  cfg.Observability.EnableTracing,
	}, logger)
}

// ProvideHTTPHandler builds the handler tree
func ProvideHTTPHandler(router *rest.Router) http.Handler {
	return router.Setup()
}
