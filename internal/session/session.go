package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/liveblog/internal/audio"
	"github.com/yegors/liveblog/internal/config"
	"github.com/yegors/liveblog/internal/hub"
	"github.com/yegors/liveblog/internal/segmenter"
	"github.com/yegors/liveblog/internal/storage/sqlite"
	"github.com/yegors/liveblog/internal/summarizer"
	"github.com/yegors/liveblog/internal/transcriber"
	"github.com/yegors/liveblog/pkg/logger"
)

// Segmenter splits buffered audio into fixed-duration segment files.
type Segmenter interface {
	SegmentBuffer(ctx context.Context, data []byte, segmentSeconds int, pcm *segmenter.PCMConfig) (*segmenter.Batch, error)
}

// Transcriber converts one segment file into a transcript fragment.
type Transcriber interface {
	Transcribe(ctx context.Context, segmentPath string) (transcriber.Fragment, error)
}

// Summarizer produces a diff summary from the transcript tail and the
// previous cycle's summary.
type Summarizer interface {
	SummarizeTail(ctx context.Context, tail, previousSummary string) (*summarizer.SummaryCard, error)
}

// Publisher fans events out to connected viewers.
type Publisher interface {
	Publish(event string, payload interface{})
}

// FragmentStore persists transcript fragments. May be nil-backed when
// storage is disabled.
type FragmentStore interface {
	StoreFragment(record *sqlite.FragmentRecord) (int64, error)
}

// flushTimeout bounds one buffer flush, both timer-driven and final.
const flushTimeout = 30 * time.Second

// Session owns all mutable state for one live audio connection: the pending
// audio buffer, the running transcript, the previous-summary context and the
// two timers that drive processing. It is destroyed when the connection
// closes, after a final best-effort flush.
type Session struct {
	ID string

	seg   Segmenter
	trans Transcriber
	summ  Summarizer
	pub   Publisher
	store FragmentStore

	ctx    context.Context
	cancel context.CancelFunc
	logger *logger.Logger

	// mu guards state, cfg, transcript, prevSummary, fragSeq and flushTimer.
	// The transcript append is atomic under it, so a summary cycle never
	// observes a partial write from a concurrent flush.
	mu          sync.Mutex
	state       State
	cfg         config.SessionConfig
	transcript  string
	prevSummary string
	fragSeq     int
	flushTimer  *time.Timer

	// procMu serializes processBuffer runs (flush timer vs final flush).
	procMu sync.Mutex

	pending *audio.PendingBuffer
	wg      sync.WaitGroup
}

// New creates a session in the AwaitingHandshake state.
func New(ctx context.Context, defaults config.SessionConfig, seg Segmenter, trans Transcriber, summ Summarizer, pub Publisher, store FragmentStore, log *logger.Logger) *Session {
	sessCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()

	return &Session{
		ID:      id,
		seg:     seg,
		trans:   trans,
		summ:    summ,
		pub:     pub,
		store:   store,
		ctx:     sessCtx,
		cancel:  cancel,
		logger:  log.Named("session").With(logger.String("session_id", id)),
		state:   AwaitingHandshake,
		cfg:     defaults,
		pending: audio.NewPendingBuffer(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns the running transcript accumulated so far.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// HandleControl processes a control (text) frame. The only control message
// is the handshake; it fixes the session config and starts the timers.
func (s *Session) HandleControl(data []byte) error {
	hs, err := ParseHandshake(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != AwaitingHandshake {
		s.mu.Unlock()
		return &SessionConfigError{Detail: "handshake received after streaming started"}
	}
	s.cfg = hs.Apply(s.cfg)
	cfg := s.cfg
	s.state = Streaming
	s.mu.Unlock()

	s.logger.Info("Session handshake complete",
		logger.String("name", hs.Name),
		logger.String("format", cfg.Format),
		logger.Int("sample_rate", cfg.SampleRate),
		logger.Int("channels", cfg.Channels),
		logger.Int("segment_seconds", cfg.SegmentSeconds),
		logger.Int("summary_words", cfg.SummaryWords),
		logger.Int("process_interval_ms", cfg.ProcessIntervalMs),
		logger.Int("summary_interval_ms", cfg.SummaryIntervalMs))

	s.startSummaryLoop(cfg.SummaryIntervalMs)
	return nil
}

// HandleAudio buffers a binary audio payload. Audio arriving before the
// handshake is tolerated: the session starts streaming with its defaults.
func (s *Session) HandleAudio(data []byte) {
	if len(data) == 0 {
		return
	}

	s.mu.Lock()
	if s.state == Closing || s.state == Closed {
		s.mu.Unlock()
		return
	}

	startLoop := false
	if s.state == AwaitingHandshake {
		s.state = Streaming
		startLoop = true
	}

	s.pending.Append(data)

	// Lazy flush timer: armed on the first buffered byte, re-armed only
	// after it fires, so processBuffer runs at most once per interval.
	if s.flushTimer == nil {
		interval := time.Duration(s.cfg.ProcessIntervalMs) * time.Millisecond
		s.flushTimer = time.AfterFunc(interval, s.flushFired)
	}
	summaryIntervalMs := s.cfg.SummaryIntervalMs
	s.mu.Unlock()

	if startLoop {
		s.logger.Warn("Audio received before handshake, streaming with default config")
		s.startSummaryLoop(summaryIntervalMs)
	}
}

func (s *Session) flushFired() {
	s.mu.Lock()
	s.flushTimer = nil
	closing := s.state == Closing || s.state == Closed
	s.mu.Unlock()

	if closing {
		return
	}

	// The flush runs under its own bounded context, not the session context,
	// so a Close racing with the timer lets the in-flight batch finish
	// instead of killing its subprocess and transcription calls mid-run.
	// Close serializes behind it via procMu.
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	s.processBuffer(ctx)
}

// processBuffer drains the pending audio, segments it, transcribes each
// segment in order and appends the text to the running transcript. A failed
// batch is logged and dropped; a failed segment is skipped. Segment files
// are cleaned up unconditionally.
func (s *Session) processBuffer(ctx context.Context) {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	data := s.pending.Drain()
	if len(data) == 0 {
		return
	}

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	var pcm *segmenter.PCMConfig
	if isRawPCM(cfg.Format) {
		pcm = &segmenter.PCMConfig{SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	}

	batch, err := s.seg.SegmentBuffer(ctx, data, cfg.SegmentSeconds, pcm)
	if err != nil {
		s.logger.Error("Dropping unprocessable audio batch",
			logger.Int("bytes", len(data)),
			logger.Error(err))
		return
	}
	defer func() {
		if err := batch.Cleanup(); err != nil {
			s.logger.Warn("Failed to clean up segment batch", logger.Error(err))
		}
	}()

	// Segments are transcribed sequentially, in segment order, so the
	// running transcript never reorders speech.
	for i, segPath := range batch.Segments {
		frag, err := s.trans.Transcribe(ctx, segPath)
		if err != nil {
			s.logger.Error("Skipping failed segment",
				logger.Int("index", i),
				logger.String("segment", segPath),
				logger.Error(err))
			continue
		}
		if frag.Text == "" {
			continue
		}
		s.appendFragment(i, segPath, frag)
	}
}

func (s *Session) appendFragment(index int, segPath string, frag transcriber.Fragment) {
	s.mu.Lock()
	if s.transcript == "" {
		s.transcript = frag.Text
	} else {
		s.transcript += " " + frag.Text
	}
	s.fragSeq++
	seq := s.fragSeq
	s.mu.Unlock()

	s.pub.Publish(hub.EventTranscriptPiece, hub.TranscriptPiece{
		Index: index,
		Path:  segPath,
		Text:  frag.Text,
	})

	if s.store != nil {
		if _, err := s.store.StoreFragment(&sqlite.FragmentRecord{
			SessionID:  s.ID,
			Seq:        seq,
			Content:    frag.Text,
			Confidence: frag.Confidence,
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			s.logger.Error("Failed to persist transcript fragment", logger.Error(err))
		}
	}
}

func (s *Session) startSummaryLoop(intervalMs int) {
	interval := time.Duration(intervalMs) * time.Millisecond

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.summaryCycle()
			}
		}
	}()
}

// summaryCycle runs one diff-timer summarisation pass: the trailing
// summary-words of the transcript plus the previous summary go to the
// summariser, and only a non-empty result is broadcast. Any error abandons
// the cycle; the session keeps going.
func (s *Session) summaryCycle() {
	s.mu.Lock()
	tail := lastWords(s.transcript, s.cfg.SummaryWords)
	prev := s.prevSummary
	s.mu.Unlock()

	if tail == "" {
		s.logger.Debug("Summary cycle skipped, no transcript yet")
		return
	}

	card, err := s.summ.SummarizeTail(s.ctx, tail, prev)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("Summary cycle failed",
			logger.String("tail_preview", preview(tail, 80)),
			logger.Error(err))
		return
	}

	if card.Empty() {
		s.logger.Debug("Summariser reported no new information")
		return
	}

	card.ID = uuid.NewString()
	card.RevisionOf = nil
	s.pub.Publish(hub.EventChunk, card)

	s.mu.Lock()
	s.prevSummary = card.ContextText()
	s.mu.Unlock()

	s.logger.Info("Published summary card",
		logger.String("card_id", card.ID),
		logger.String("headline", card.Headline),
		logger.Int("bullets", len(card.Bullets)))
}

// Close cancels both timers and performs one final synchronous flush of any
// buffered audio, then marks the session closed. No summary cycles run after
// close.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == Closing || s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.state = Closing
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	// Final best-effort flush with a fresh context; the session context is
	// already cancelled.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), flushTimeout)
	s.processBuffer(flushCtx)
	flushCancel()

	s.mu.Lock()
	s.state = Closed
	s.mu.Unlock()

	s.logger.Info("Session closed")
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
