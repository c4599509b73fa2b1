package transcriber

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/yegors/liveblog/pkg/logger"
)

// TranscriptionError indicates the speech-to-text call failed for a segment.
type TranscriptionError struct {
	Segment string
	Err     error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed for %s: %v", e.Segment, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// Fragment is the output of one transcription call for one segment.
type Fragment struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Config represents transcriber configuration
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	TimeoutSeconds int
}

// Client wraps the external speech-to-text service.
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *logger.Logger
}

// New creates a new transcriber client.
func New(cfg Config, logger *logger.Logger) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}

	return &Client{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
		logger:  logger.Named("transcriber"),
	}
}

// Transcribe sends one segment file to the speech-to-text service and
// returns its text. The engine does not expose a confidence score, so one is
// estimated from the fragment itself.
func (c *Client) Transcribe(ctx context.Context, segmentPath string) (Fragment, error) {
	f, err := os.Open(segmentPath)
	if err != nil {
		return Fragment{}, &TranscriptionError{Segment: segmentPath, Err: err}
	}
	defer f.Close()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Audio.Transcriptions.New(callCtx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(c.model),
		File:  f,
	})
	if err != nil {
		return Fragment{}, &TranscriptionError{Segment: segmentPath, Err: err}
	}

	text := strings.TrimSpace(resp.Text)
	frag := Fragment{
		Text:       text,
		Confidence: EstimateConfidence(text),
	}

	c.logger.Debug("Transcribed segment",
		logger.String("segment", segmentPath),
		logger.Int("chars", len(text)),
		logger.Float64("confidence", frag.Confidence))

	return frag, nil
}

// EstimateConfidence derives a heuristic confidence in [0.4, 0.98] from the
// fragment's token count and punctuation density. Longer, well-punctuated
// fragments score higher.
func EstimateConfidence(text string) float64 {
	if text == "" {
		return 0.4
	}

	tokens := len(strings.Fields(text))
	punct := strings.Count(text, ".") + strings.Count(text, ",") +
		strings.Count(text, "?") + strings.Count(text, "!")

	score := 0.4 + 0.01*float64(tokens) + 0.02*float64(punct)
	if score > 0.98 {
		score = 0.98
	}
	return score
}
