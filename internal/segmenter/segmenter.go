package segmenter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/yegors/liveblog/internal/audio"
	"github.com/yegors/liveblog/pkg/logger"
)

// SegmentationError indicates the external transcoder failed to split the
// input audio.
type SegmentationError struct {
	Reason string
	Err    error
}

func (e *SegmentationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("segmentation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("segmentation failed: %s", e.Reason)
}

func (e *SegmentationError) Unwrap() error { return e.Err }

// PCMConfig describes raw linear PCM input that needs a WAV header before
// the transcoder can read it.
type PCMConfig struct {
	SampleRate int
	Channels   int
}

// Batch is the result of one segmentation run. Cleanup removes the working
// directory and every segment in it; callers must not touch the paths after
// calling it.
type Batch struct {
	Dir      string
	Segments []string
}

// Cleanup removes the batch working directory.
func (b *Batch) Cleanup() error {
	if b.Dir == "" {
		return nil
	}
	return os.RemoveAll(b.Dir)
}

// Segmenter splits audio input into fixed-duration, independently decodable
// WAV segments using ffmpeg.
type Segmenter struct {
	ffmpegPath string
	workDir    string
	logger     *logger.Logger
}

// New creates a new segmenter. workDir may be empty to use the system temp
// directory.
func New(ffmpegPath, workDir string, logger *logger.Logger) *Segmenter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Segmenter{
		ffmpegPath: ffmpegPath,
		workDir:    workDir,
		logger:     logger.Named("segmenter"),
	}
}

// SegmentFile splits an existing audio file into segmentSeconds-long WAV
// segments, returned in chronological order.
func (s *Segmenter) SegmentFile(ctx context.Context, inputPath string, segmentSeconds int) (*Batch, error) {
	if segmentSeconds <= 0 {
		return nil, &SegmentationError{Reason: fmt.Sprintf("invalid segment length %d", segmentSeconds)}
	}

	dir, err := os.MkdirTemp(s.workDir, "liveblog-seg-")
	if err != nil {
		return nil, &SegmentationError{Reason: "failed to create working directory", Err: err}
	}

	pattern := filepath.Join(dir, "segment_%04d.wav")

	// -f segment keeps boundaries at fixed wall-clock durations; each output
	// is re-encoded to mono 16kHz so the transcription engine gets a uniform
	// input regardless of source format.
	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-y", "-i", inputPath,
		"-ac", "1", "-ar", "16000",
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%d", segmentSeconds),
		pattern,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.RemoveAll(dir)
		return nil, &SegmentationError{
			Reason: fmt.Sprintf("ffmpeg: %s", stderr.String()),
			Err:    err,
		}
	}

	segments, err := filepath.Glob(filepath.Join(dir, "segment_*.wav"))
	if err != nil || len(segments) == 0 {
		os.RemoveAll(dir)
		return nil, &SegmentationError{Reason: "transcoder produced no segments", Err: err}
	}
	sort.Strings(segments)

	s.logger.Debug("Segmented audio file",
		logger.String("input", inputPath),
		logger.Int("segments", len(segments)),
		logger.Int("segment_seconds", segmentSeconds))

	return &Batch{Dir: dir, Segments: segments}, nil
}

// SegmentBuffer writes buffered audio bytes to a temporary file and segments
// it. If pcm is non-nil the bytes are raw s16le samples and a WAV header is
// synthesized in front of them, since ffmpeg needs a self-describing
// container.
func (s *Segmenter) SegmentBuffer(ctx context.Context, data []byte, segmentSeconds int, pcm *PCMConfig) (*Batch, error) {
	if len(data) == 0 {
		return nil, &SegmentationError{Reason: "empty audio buffer"}
	}

	if pcm != nil {
		data = audio.EncodeWAV(data, pcm.SampleRate, pcm.Channels)
	}

	tmp, err := os.CreateTemp(s.workDir, "liveblog-in-*.audio")
	if err != nil {
		return nil, &SegmentationError{Reason: "failed to create input temp file", Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, &SegmentationError{Reason: "failed to write input temp file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return nil, &SegmentationError{Reason: "failed to close input temp file", Err: err}
	}

	return s.SegmentFile(ctx, tmpPath, segmentSeconds)
}
