package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/liveblog/internal/config"
	"github.com/yegors/liveblog/internal/hub"
	"github.com/yegors/liveblog/internal/session"
	"github.com/yegors/liveblog/internal/storage/sqlite"
	"github.com/yegors/liveblog/pkg/logger"
)

// Handler contains the API request handlers
type Handler struct {
	hub       *hub.Hub
	sessions  *session.Manager
	fragments *sqlite.FragmentStorage
	config    *config.Config
	logger    *logger.Logger
	startedAt time.Time
}

// NewHandler creates a new API handler
func NewHandler(eventHub *hub.Hub, sessions *session.Manager, fragments *sqlite.FragmentStorage, config *config.Config, logger *logger.Logger) *Handler {
	return &Handler{
		hub:       eventHub,
		sessions:  sessions,
		fragments: fragments,
		config:    config,
		logger:    logger.Named("api-handler"),
		startedAt: time.Now().UTC(),
	}
}

// StreamEvents attaches the viewer to the push channel.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeHTTP(w, r)
}

// HandleIngest hands the connection to the session manager.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	h.sessions.HandleIngest(w, r)
}

// GetSessionTranscript returns the stored transcript fragments for a session.
func (h *Handler) GetSessionTranscript(w http.ResponseWriter, r *http.Request) {
	if h.fragments == nil {
		h.writeError(w, http.StatusNotFound, "transcript storage is disabled")
		return
	}

	sessionID := chi.URLParam(r, "session")
	records, err := h.fragments.GetFragmentsBySession(sessionID)
	if err != nil {
		h.logger.Error("Failed to load session transcript",
			logger.String("session_id", sessionID),
			logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"fragments":  records,
	})
}

// GetHealth returns service health
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"viewers":        h.hub.ViewerCount(),
	})
}

// GetConfig returns the non-sensitive parts of the active configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"session":    h.config.Session,
		"simulation": h.config.Simulation,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
