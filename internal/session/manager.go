package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yegors/liveblog/internal/config"
	"github.com/yegors/liveblog/pkg/logger"
)

// Manager accepts ingest websocket connections and owns one Session per
// connection. Text frames carry control messages (the handshake); binary
// frames carry audio. That split removes any ambiguity between a JSON
// control message and a PCM buffer that happens to start with '{'.
type Manager struct {
	defaults config.SessionConfig
	seg      Segmenter
	trans    Transcriber
	summ     Summarizer
	pub      Publisher
	store    FragmentStore
	upgrader websocket.Upgrader
	logger   *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a new session manager.
func NewManager(defaults config.SessionConfig, seg Segmenter, trans Transcriber, summ Summarizer, pub Publisher, store FragmentStore, log *logger.Logger) *Manager {
	return &Manager{
		defaults: defaults,
		seg:      seg,
		trans:    trans,
		summ:     summ,
		pub:      pub,
		store:    store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024 * 16,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:   log.Named("sessions"),
		sessions: make(map[string]*Session),
	}
}

// HandleIngest upgrades the request to a websocket and runs the session
// until the connection closes.
func (m *Manager) HandleIngest(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("Failed to upgrade ingest connection", logger.Error(err))
		return
	}
	defer conn.Close()

	sess := New(r.Context(), m.defaults, m.seg, m.trans, m.summ, m.pub, m.store, m.logger)
	m.track(sess)
	defer m.untrack(sess)
	defer sess.Close()

	m.logger.Info("Ingest connection opened",
		logger.String("session_id", sess.ID),
		logger.String("remote_addr", r.RemoteAddr))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Warn("Ingest connection closed unexpectedly",
					logger.String("session_id", sess.ID),
					logger.Error(err))
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			if err := sess.HandleControl(data); err != nil {
				m.logger.Error("Rejecting session with invalid handshake",
					logger.String("session_id", sess.ID),
					logger.Error(err))
				return
			}
		case websocket.BinaryMessage:
			sess.HandleAudio(data)
		}
	}
}

// CloseAll closes every live session, flushing buffered audio. Used during
// graceful shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, s := range sessions {
			s.Close()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timed out waiting for sessions to close")
	}
}

func (m *Manager) track(s *Session) {
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
}

func (m *Manager) untrack(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()
}
