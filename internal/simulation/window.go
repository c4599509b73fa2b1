package simulation

import "strings"

// minWindowSeconds is the floor on the trailing context fed to the
// summariser, regardless of chunk size.
const minWindowSeconds = 30.0

// Entry is one transcribed segment in the append-only window log.
type Entry struct {
	Start float64
	End   float64
	Text  string
}

// WindowLog is the rolling-window state: an append-only, chronologically
// ordered log of transcript entries from which the trailing window is
// selected each step.
type WindowLog struct {
	chunkSeconds int
	entries      []Entry
}

// NewWindowLog creates an empty window log for the given chunk duration.
func NewWindowLog(chunkSeconds int) *WindowLog {
	return &WindowLog{chunkSeconds: chunkSeconds}
}

// Append adds one transcribed segment to the log.
func (w *WindowLog) Append(start, end float64, text string) {
	w.entries = append(w.entries, Entry{Start: start, End: end, Text: text})
}

// WindowSeconds returns the trailing window span: at least 30 seconds, or
// two chunks if that is longer.
func (w *WindowLog) WindowSeconds() float64 {
	two := 2 * float64(w.chunkSeconds)
	if two > minWindowSeconds {
		return two
	}
	return minWindowSeconds
}

// Text concatenates, in chronological order, every entry still inside the
// trailing window. The window start clamps to zero, so early in playback the
// full transcript so far is covered.
func (w *WindowLog) Text() string {
	if len(w.entries) == 0 {
		return ""
	}

	end := w.entries[len(w.entries)-1].End
	windowStart := end - w.WindowSeconds()
	if windowStart < 0 {
		windowStart = 0
	}

	var parts []string
	for _, e := range w.entries {
		if e.End > windowStart {
			parts = append(parts, e.Text)
		}
	}
	return strings.Join(parts, " ")
}
