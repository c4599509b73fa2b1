package summarizer

import (
	"encoding/json"
	"fmt"
)

// The summarisation service has shipped at least three envelope layouts for
// the same logical answer: a bare convenience string, a flat typed text
// block, and message items with nested content parts. The decode below
// names each known variant explicitly and fails with a typed error when
// none of them yields text.

type responseEnvelope struct {
	OutputText string       `json:"output_text"`
	Output     []outputItem `json:"output"`
}

type outputItem struct {
	Type    string        `json:"type"`
	Text    string        `json:"text"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// extractText normalizes the response envelope down to the single JSON text
// blob the model produced.
func extractText(body []byte) (string, error) {
	var env responseEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", &ResponseShapeError{Detail: fmt.Sprintf("envelope is not a response object: %v", err)}
	}

	// Variant 1: bare convenience string.
	if env.OutputText != "" {
		return env.OutputText, nil
	}

	for _, item := range env.Output {
		// Variant 2: flat {type, text} block.
		if item.Text != "" {
			return item.Text, nil
		}
		// Variant 3: message item with nested content parts.
		for _, part := range item.Content {
			if part.Text != "" {
				return part.Text, nil
			}
		}
	}

	return "", &ResponseShapeError{Detail: "envelope contains no text in any known variant"}
}

// parseCard parses the extracted text as a summary card, enforcing the
// response schema. Times and ID are left zero; the caller owns both.
func parseCard(text string) (*SummaryCard, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		if !json.Valid([]byte(text)) {
			return nil, &ResponseParseError{Raw: text, Err: err}
		}
		return nil, &SchemaViolationError{Detail: "top-level value is not an object"}
	}

	card := &SummaryCard{}

	if err := requireString(fields, "headline", &card.Headline); err != nil {
		return nil, err
	}
	if err := requireStrings(fields, "bullets", &card.Bullets); err != nil {
		return nil, err
	}
	if err := requireStrings(fields, "quotes", &card.Quotes); err != nil {
		return nil, err
	}
	if err := requireStrings(fields, "entities", &card.Entities); err != nil {
		return nil, err
	}

	if len(card.Bullets) > MaxBullets {
		card.Bullets = card.Bullets[:MaxBullets]
	}

	return card, nil
}

func requireString(fields map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := fields[key]
	if !ok {
		return &SchemaViolationError{Detail: fmt.Sprintf("missing required key %q", key)}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &SchemaViolationError{Detail: fmt.Sprintf("key %q is not a string", key)}
	}
	return nil
}

func requireStrings(fields map[string]json.RawMessage, key string, dst *[]string) error {
	raw, ok := fields[key]
	if !ok {
		return &SchemaViolationError{Detail: fmt.Sprintf("missing required key %q", key)}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &SchemaViolationError{Detail: fmt.Sprintf("key %q is not an array of strings", key)}
	}
	if *dst == nil {
		*dst = []string{}
	}
	return nil
}
