package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/liveblog/internal/config"
	"github.com/yegors/liveblog/internal/hub"
	"github.com/yegors/liveblog/internal/session"
	"github.com/yegors/liveblog/internal/storage/sqlite"
	"github.com/yegors/liveblog/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(eventHub *hub.Hub, sessions *session.Manager, fragments *sqlite.FragmentStorage, config *config.Config, logger *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(eventHub, sessions, fragments, config, logger),
		middleware: NewMiddleware(logger),
		config:     config,
		logger:     logger.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Viewer push channel (server-sent events)
		router.Get("/events", r.handler.StreamEvents)

		// Audio ingest channel (websocket)
		router.Get("/ingest", r.handler.HandleIngest)

		// Transcript retrieval
		router.Get("/transcripts/{session}", r.handler.GetSessionTranscript)

		// Health check
		router.Get("/health", r.handler.GetHealth)

		// Configuration
		router.Get("/config", r.handler.GetConfig)
	})

	// Serve static files from the configured directory
	staticHandler := NewStaticFileHandler(r.config.Server.StaticFilesDir, r.logger)
	router.Handle("/*", staticHandler)

	return router
}
