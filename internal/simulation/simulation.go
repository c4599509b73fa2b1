package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/liveblog/internal/hub"
	"github.com/yegors/liveblog/internal/segmenter"
	"github.com/yegors/liveblog/internal/storage/sqlite"
	"github.com/yegors/liveblog/internal/summarizer"
	"github.com/yegors/liveblog/internal/transcriber"
	"github.com/yegors/liveblog/pkg/logger"
)

// FileSegmenter splits an audio file into fixed-duration segments.
type FileSegmenter interface {
	SegmentFile(ctx context.Context, inputPath string, segmentSeconds int) (*segmenter.Batch, error)
}

// Transcriber converts one segment file into a transcript fragment.
type Transcriber interface {
	Transcribe(ctx context.Context, segmentPath string) (transcriber.Fragment, error)
}

// WindowSummarizer summarises a time-bounded window of transcript text.
type WindowSummarizer interface {
	SummarizeWindow(ctx context.Context, text string, timeStart, timeEnd float64) (*summarizer.SummaryCard, error)
}

// Publisher fans events out to connected viewers.
type Publisher interface {
	Publish(event string, payload interface{})
}

// FragmentStore persists transcript fragments. May be nil when storage is
// disabled.
type FragmentStore interface {
	StoreFragment(record *sqlite.FragmentRecord) (int64, error)
}

// Options control one simulated playback run.
type Options struct {
	FilePath     string
	ChunkSeconds int
	HoldSeconds  int
	Speed        float64
}

// Runner replays an audio file as if it were a live event: each segment
// advances a simulated clock by the chunk duration, and every step
// re-summarises the trailing window of transcript. Cards are published
// unconditionally; no diffing is applied in this strategy.
type Runner struct {
	seg    FileSegmenter
	trans  Transcriber
	summ   WindowSummarizer
	pub    Publisher
	store  FragmentStore
	logger *logger.Logger
}

// NewRunner creates a new simulation runner.
func NewRunner(seg FileSegmenter, trans Transcriber, summ WindowSummarizer, pub Publisher, store FragmentStore, log *logger.Logger) *Runner {
	return &Runner{
		seg:    seg,
		trans:  trans,
		summ:   summ,
		pub:    pub,
		store:  store,
		logger: log.Named("simulation"),
	}
}

// Run plays the file through the pipeline and publishes an eof event when
// the last segment has been summarised.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	if opts.ChunkSeconds <= 0 {
		return fmt.Errorf("chunk seconds must be positive, got %d", opts.ChunkSeconds)
	}
	if opts.Speed <= 0 {
		return fmt.Errorf("speed must be positive, got %f", opts.Speed)
	}

	sessionID := uuid.NewString()
	log := r.logger.With(logger.String("session_id", sessionID))

	batch, err := r.seg.SegmentFile(ctx, opts.FilePath, opts.ChunkSeconds)
	if err != nil {
		return fmt.Errorf("failed to segment input file: %w", err)
	}
	defer func() {
		if err := batch.Cleanup(); err != nil {
			log.Warn("Failed to clean up segment batch", logger.Error(err))
		}
	}()

	log.Info("Starting simulated playback",
		logger.String("file", opts.FilePath),
		logger.Int("segments", len(batch.Segments)),
		logger.Int("chunk_seconds", opts.ChunkSeconds),
		logger.Float64("speed", opts.Speed))

	chunk := float64(opts.ChunkSeconds)
	win := NewWindowLog(opts.ChunkSeconds)
	clock := 0.0

	for i, segPath := range batch.Segments {
		segStart := clock
		clock += chunk
		segEnd := clock

		frag, err := r.trans.Transcribe(ctx, segPath)
		if err != nil {
			log.Error("Skipping failed segment",
				logger.Int("index", i),
				logger.Error(err))
		} else if frag.Text != "" {
			win.Append(segStart, segEnd, frag.Text)

			r.pub.Publish(hub.EventTranscriptPiece, hub.TranscriptPiece{
				Index: i,
				Path:  segPath,
				Text:  frag.Text,
			})
			r.storeFragment(sessionID, i, frag, log)
		}

		// Hold back briefly after each segment to emulate waiting for
		// speech to settle before summarising.
		if err := sleepCtx(ctx, time.Duration(opts.HoldSeconds)*time.Second); err != nil {
			return err
		}

		if text := win.Text(); text != "" {
			r.summarizeStep(ctx, text, segStart, segEnd, log)
		}

		// Pace playback: wall-clock wait between segments is the chunk
		// duration scaled by the speed multiplier.
		if i < len(batch.Segments)-1 {
			wait := time.Duration(chunk / opts.Speed * float64(time.Second))
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
		}
	}

	r.pub.Publish(hub.EventEOF, hub.EOF{Done: true})
	log.Info("Simulated playback complete", logger.Int("segments", len(batch.Segments)))
	return nil
}

// summarizeStep runs one rolling-window summarisation. A failed cycle is
// logged and dropped; playback continues.
func (r *Runner) summarizeStep(ctx context.Context, text string, start, end float64, log *logger.Logger) {
	card, err := r.summ.SummarizeWindow(ctx, text, start, end)
	if err != nil {
		log.Error("Summary cycle failed",
			logger.Float64("window_start", start),
			logger.Float64("window_end", end),
			logger.Error(err))
		return
	}

	card.ID = uuid.NewString()
	card.RevisionOf = nil
	r.pub.Publish(hub.EventChunk, card)

	log.Info("Published summary card",
		logger.String("card_id", card.ID),
		logger.String("headline", card.Headline),
		logger.Float64("time_start", card.TimeStart),
		logger.Float64("time_end", card.TimeEnd))
}

func (r *Runner) storeFragment(sessionID string, seq int, frag transcriber.Fragment, log *logger.Logger) {
	if r.store == nil {
		return
	}
	if _, err := r.store.StoreFragment(&sqlite.FragmentRecord{
		SessionID:  sessionID,
		Seq:        seq,
		Content:    frag.Text,
		Confidence: frag.Confidence,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Error("Failed to persist transcript fragment", logger.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
