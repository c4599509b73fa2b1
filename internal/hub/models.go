package hub

// TranscriptPiece is the diagnostic per-segment transcript event, published
// as each segment's text lands so viewers can show raw progress
// independently of the summary cadence.
type TranscriptPiece struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	Text  string `json:"text"`
}

// EOF signals simulation-mode completion. Live sessions never publish it.
type EOF struct {
	Done bool `json:"done"`
}
