package summarizer

import (
	"fmt"
	"strings"
)

// MaxBullets bounds the number of bullets a card may carry.
const MaxBullets = 5

// SummaryCard is the structured summary unit broadcast to viewers.
type SummaryCard struct {
	ID         string   `json:"id"`
	Headline   string   `json:"headline"`
	Bullets    []string `json:"bullets"`
	Quotes     []string `json:"quotes"`
	Entities   []string `json:"entities"`
	RevisionOf *string  `json:"revisionOf"`
	TimeStart  float64  `json:"timeStart,omitempty"`
	TimeEnd    float64  `json:"timeEnd,omitempty"`
}

// Empty reports whether the card carries no new information. An empty
// headline is the summariser's way of saying "nothing to add this cycle";
// such cards must not be broadcast.
func (c *SummaryCard) Empty() bool {
	return strings.TrimSpace(c.Headline) == ""
}

// ContextText renders the card as plain text for use as previous-summary
// context in the next diff cycle: the headline plus semicolon-joined bullets.
func (c *SummaryCard) ContextText() string {
	if c.Empty() {
		return ""
	}
	if len(c.Bullets) == 0 {
		return c.Headline
	}
	return fmt.Sprintf("%s: %s", c.Headline, strings.Join(c.Bullets, "; "))
}

// cardSchema is the JSON schema sent with every summarisation request. The
// model may not add fields beyond these.
func cardSchema() map[string]interface{} {
	stringArray := func() map[string]interface{} {
		return map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		}
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"headline": map[string]interface{}{"type": "string"},
			"bullets":  stringArray(),
			"quotes":   stringArray(),
			"entities": stringArray(),
		},
		"required":             []string{"headline", "bullets", "quotes", "entities"},
		"additionalProperties": false,
	}
}
