package session

import (
	"encoding/json"
	"fmt"

	"github.com/yegors/liveblog/internal/config"
)

// State is the session lifecycle state.
type State int

const (
	AwaitingHandshake State = iota
	Streaming
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingHandshake:
		return "awaiting_handshake"
	case Streaming:
		return "streaming"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionConfigError indicates a malformed handshake message.
type SessionConfigError struct {
	Detail string
	Err    error
}

func (e *SessionConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid session handshake: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("invalid session handshake: %s", e.Detail)
}

func (e *SessionConfigError) Unwrap() error { return e.Err }

// Handshake is the first control message on the ingest channel. All fields
// are optional; configured defaults fill the gaps.
type Handshake struct {
	Kind              string `json:"kind"`
	Format            string `json:"format"`
	SampleRate        int    `json:"sampleRate"`
	Channels          int    `json:"channels"`
	Name              string `json:"name"`
	ClientChunkMs     int    `json:"clientChunkMs"`
	SummaryWords      int    `json:"summaryWords"`
	SegmentSeconds    int    `json:"segmentSeconds"`
	ProcessIntervalMs int    `json:"processIntervalMs"`
	SummaryIntervalMs int    `json:"summaryIntervalMs"`
}

// ParseHandshake decodes and validates a handshake control frame.
func ParseHandshake(data []byte) (*Handshake, error) {
	var hs Handshake
	if err := json.Unmarshal(data, &hs); err != nil {
		return nil, &SessionConfigError{Detail: "control frame is not valid JSON", Err: err}
	}
	if hs.Kind != "handshake" {
		return nil, &SessionConfigError{Detail: fmt.Sprintf("unexpected control kind %q", hs.Kind)}
	}
	return &hs, nil
}

// Apply overlays the handshake's non-zero fields on the configured defaults.
func (h *Handshake) Apply(defaults config.SessionConfig) config.SessionConfig {
	cfg := defaults
	if h.Format != "" {
		cfg.Format = h.Format
	}
	if h.SampleRate > 0 {
		cfg.SampleRate = h.SampleRate
	}
	if h.Channels > 0 {
		cfg.Channels = h.Channels
	}
	if h.ClientChunkMs > 0 {
		cfg.ClientChunkMs = h.ClientChunkMs
	}
	if h.SummaryWords > 0 {
		cfg.SummaryWords = h.SummaryWords
	}
	if h.SegmentSeconds > 0 {
		cfg.SegmentSeconds = h.SegmentSeconds
	}
	if h.ProcessIntervalMs > 0 {
		cfg.ProcessIntervalMs = h.ProcessIntervalMs
	}
	if h.SummaryIntervalMs > 0 {
		cfg.SummaryIntervalMs = h.SummaryIntervalMs
	}
	return cfg
}

// isRawPCM reports whether the negotiated format is headerless linear PCM.
func isRawPCM(format string) bool {
	switch format {
	case "s16le", "pcm", "pcm_s16le":
		return true
	default:
		return false
	}
}
