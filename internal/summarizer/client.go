package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yegors/liveblog/pkg/logger"
)

const windowSystemPrompt = `You are producing live-blog summary cards for an ongoing event.
Report ONLY what was actually said in the transcript window you are given.
Do not speculate or add background knowledge. Mark unclear names or numbers
with the placeholder [UNCLEAR]. Prefer short imperative bullets. Respond with
JSON only, matching the requested schema exactly.`

const tailSystemPrompt = `You are producing incremental live-blog updates for an ongoing event.
You are given the most recent transcript tail and the previous summary card.
Report ONLY information that is not already present in the previous summary.
If there is nothing new, return an empty card: empty headline, empty arrays.
Mark unclear names or numbers with the placeholder [UNCLEAR]. Prefer short
imperative bullets. Respond with JSON only, matching the requested schema
exactly.`

// Config represents summarizer configuration
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	TimeoutSeconds int
}

// Client wraps the external structured-summarisation service.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *logger.Logger
}

// New creates a new summarizer client.
func New(cfg Config, logger *logger.Logger) *Client {
	if cfg.APIKey == "" {
		logger.Warn("OpenAI API key is empty - summarisation will not work")
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &Client{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: baseURL,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("summarizer"),
	}
}

// summaryRequest is the request body for the responses endpoint.
type summaryRequest struct {
	Model        string     `json:"model"`
	Instructions string     `json:"instructions"`
	Input        string     `json:"input"`
	Text         textFormat `json:"text"`
}

type textFormat struct {
	Format formatSpec `json:"format"`
}

type formatSpec struct {
	Type   string                 `json:"type"`
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict"`
	Schema map[string]interface{} `json:"schema"`
}

// SummarizeWindow summarises one time-bounded window of transcript text.
// The returned card's times are always the caller-supplied bounds; any
// timestamps echoed by the model are discarded.
func (c *Client) SummarizeWindow(ctx context.Context, text string, timeStart, timeEnd float64) (*SummaryCard, error) {
	input := fmt.Sprintf("Transcript window (%.0fs to %.0fs):\n%s", timeStart, timeEnd, text)

	card, err := c.summarize(ctx, windowSystemPrompt, input)
	if err != nil {
		return nil, err
	}

	card.TimeStart = timeStart
	card.TimeEnd = timeEnd
	return card, nil
}

// SummarizeTail summarises the trailing words of the running transcript
// against the previous cycle's summary. An empty headline in the result is a
// valid "no update" outcome, not an error; the caller filters it before
// broadcast.
func (c *Client) SummarizeTail(ctx context.Context, tail, previousSummary string) (*SummaryCard, error) {
	if previousSummary == "" {
		previousSummary = "(none)"
	}
	input := fmt.Sprintf("Previous summary:\n%s\n\nLatest transcript:\n%s", previousSummary, tail)

	return c.summarize(ctx, tailSystemPrompt, input)
}

func (c *Client) summarize(ctx context.Context, instructions, input string) (*SummaryCard, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for summarisation")
	}

	reqBody := summaryRequest{
		Model:        c.model,
		Instructions: instructions,
		Input:        input,
		Text: textFormat{
			Format: formatSpec{
				Type:   "json_schema",
				Name:   "summary_card",
				Strict: true,
				Schema: cardSchema(),
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/responses", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute summary request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Summarisation request failed",
			logger.Int("status_code", resp.StatusCode),
			logger.String("response_body", string(body)))
		return nil, fmt.Errorf("unexpected status code from summariser: %d", resp.StatusCode)
	}

	text, err := extractText(body)
	if err != nil {
		return nil, err
	}

	card, err := parseCard(text)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Summarisation cycle complete",
		logger.Duration("latency", time.Since(start)),
		logger.Int("input_chars", len(input)),
		logger.Bool("empty", card.Empty()))

	return card, nil
}
