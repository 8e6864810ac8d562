package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"mindmap-backend/application/ports"
	"mindmap-backend/infrastructure/observability"
	"mindmap-backend/interfaces/http/rest/handlers"
	"mindmap-backend/interfaces/http/rest/middleware"
)

// RouterConfig holds the options of the HTTP surface
type RouterConfig struct {
	ServiceName    string
	AllowedOrigins []string
	EnableTracing  bool
}

// Router creates and configures the HTTP router
type Router struct {
	sessions *handlers.SessionHandler
	repo     ports.SessionRepository
	metrics  *observability.Collector
	config   RouterConfig
	logger   *zap.Logger
}

// NewRouter creates a new router instance. metrics may be nil.
func NewRouter(
	sessions *handlers.SessionHandler,
	repo ports.SessionRepository,
	metrics *observability.Collector,
	config RouterConfig,
	logger *zap.Logger,
) *Router {
	return &Router{
		sessions: sessions,
		repo:     repo,
		metrics:  metrics,
		config:   config,
		logger:   logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}
	if rt.config.EnableTracing {
		router.Use(middleware.Tracing(rt.config.ServiceName))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	h := rt.sessions
	router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", h.StartSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)

			r.Get("/questions", h.GetQuestions)
			r.Put("/answers/{index}", h.Answer)
			r.Post("/answers/{index}/toggle-all", h.ToggleAll)
			r.Post("/reformulate", h.Reformulate)
			r.Post("/generate", h.Generate)

			r.Get("/map", h.GetMap)
			r.Patch("/map", h.RenameMap)
			r.Route("/map/nodes/{nodeID}", func(r chi.Router) {
				r.Patch("/", h.UpdateNode)
				r.Delete("/", h.DeleteNode)
				r.Post("/children", h.AddChild)
				r.Post("/expand", h.ExpandNode)
			})

			r.Post("/undo", h.Undo)
			r.Post("/redo", h.Redo)
			r.Get("/history", h.GetHistory)

			r.Get("/team", h.GetTeam)
			r.Post("/team", h.AddTeamMember)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.repo == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	body := map[string]interface{}{
		"status":   "ready",
		"sessions": rt.repo.Count(req.Context()),
	}
	if sr, ok := rt.repo.(ports.StatsReporter); ok {
		body["store"] = sr.Stats()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}
