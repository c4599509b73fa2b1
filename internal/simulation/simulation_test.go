package simulation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yegors/liveblog/internal/hub"
	"github.com/yegors/liveblog/internal/segmenter"
	"github.com/yegors/liveblog/internal/summarizer"
	"github.com/yegors/liveblog/internal/transcriber"
	"github.com/yegors/liveblog/pkg/logger"
)

type fakeFileSegmenter struct {
	segments []string
}

func (f *fakeFileSegmenter) SegmentFile(ctx context.Context, inputPath string, segmentSeconds int) (*segmenter.Batch, error) {
	return &segmenter.Batch{Segments: f.segments}, nil
}

type fakeTranscriber struct {
	texts map[string]string
	errs  map[string]error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, segmentPath string) (transcriber.Fragment, error) {
	if err, ok := f.errs[segmentPath]; ok {
		return transcriber.Fragment{}, err
	}
	return transcriber.Fragment{Text: f.texts[segmentPath], Confidence: 0.9}, nil
}

type windowCall struct {
	text       string
	start, end float64
}

type fakeWindowSummarizer struct {
	mu    sync.Mutex
	calls []windowCall
	err   error
}

func (f *fakeWindowSummarizer) SummarizeWindow(ctx context.Context, text string, timeStart, timeEnd float64) (*summarizer.SummaryCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, windowCall{text, timeStart, timeEnd})
	if f.err != nil {
		return nil, f.err
	}
	return &summarizer.SummaryCard{Headline: "h", Bullets: []string{}, Quotes: []string{}, Entities: []string{}}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	cards  []*summarizer.SummaryCard
}

func (p *recordingPublisher) Publish(event string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	if card, ok := payload.(*summarizer.SummaryCard); ok {
		p.cards = append(p.cards, card)
	}
}

func newTestRunner(t *testing.T, seg FileSegmenter, trans Transcriber, summ WindowSummarizer, pub Publisher) *Runner {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return NewRunner(seg, trans, summ, pub, nil, log)
}

func TestRunSimulatedClockAndEOF(t *testing.T) {
	t.Parallel()

	// 45 seconds of audio at 15-second chunks: three segments, three
	// summarisation calls, then eof.
	seg := &fakeFileSegmenter{segments: []string{"s0", "s1", "s2"}}
	trans := &fakeTranscriber{texts: map[string]string{"s0": "one", "s1": "two", "s2": "three"}}
	summ := &fakeWindowSummarizer{}
	pub := &recordingPublisher{}

	runner := newTestRunner(t, seg, trans, summ, pub)
	err := runner.Run(context.Background(), Options{
		FilePath:     "event.mp3",
		ChunkSeconds: 15,
		HoldSeconds:  0,
		Speed:        10000, // compress wall-clock waits for the test
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(summ.calls) != 3 {
		t.Fatalf("expected 3 summarisation calls, got %d", len(summ.calls))
	}
	wantClocks := [][2]float64{{0, 15}, {15, 30}, {30, 45}}
	for i, want := range wantClocks {
		if summ.calls[i].start != want[0] || summ.calls[i].end != want[1] {
			t.Fatalf("call %d: expected clock [%v,%v], got [%v,%v]",
				i, want[0], want[1], summ.calls[i].start, summ.calls[i].end)
		}
	}

	if pub.events[len(pub.events)-1] != hub.EventEOF {
		t.Fatalf("expected eof as final event, got %v", pub.events)
	}
}

func TestRunCardsGetUniqueIDs(t *testing.T) {
	t.Parallel()

	seg := &fakeFileSegmenter{segments: []string{"s0", "s1"}}
	trans := &fakeTranscriber{texts: map[string]string{"s0": "a", "s1": "b"}}
	pub := &recordingPublisher{}

	runner := newTestRunner(t, seg, trans, &fakeWindowSummarizer{}, pub)
	if err := runner.Run(context.Background(), Options{FilePath: "f", ChunkSeconds: 15, Speed: 10000}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(pub.cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(pub.cards))
	}
	if pub.cards[0].ID == "" || pub.cards[0].ID == pub.cards[1].ID {
		t.Fatalf("cards must carry unique generated IDs")
	}
	if pub.cards[0].RevisionOf != nil {
		t.Fatalf("revisionOf must be null")
	}
}

func TestRunWindowCoversTrailingContext(t *testing.T) {
	t.Parallel()

	// With 15-second chunks the window spans max(30, 2x15) = 30 seconds, so
	// the third call sees chunks two and three but not the first.
	seg := &fakeFileSegmenter{segments: []string{"s0", "s1", "s2"}}
	trans := &fakeTranscriber{texts: map[string]string{"s0": "one", "s1": "two", "s2": "three"}}
	summ := &fakeWindowSummarizer{}

	runner := newTestRunner(t, seg, trans, summ, &recordingPublisher{})
	if err := runner.Run(context.Background(), Options{FilePath: "f", ChunkSeconds: 15, Speed: 10000}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summ.calls[0].text != "one" {
		t.Fatalf("call 0: unexpected window %q", summ.calls[0].text)
	}
	if summ.calls[1].text != "one two" {
		t.Fatalf("call 1: unexpected window %q", summ.calls[1].text)
	}
	if summ.calls[2].text != "two three" {
		t.Fatalf("call 2: unexpected window %q", summ.calls[2].text)
	}
}

func TestRunSummarizerFailureContinuesPlayback(t *testing.T) {
	t.Parallel()

	seg := &fakeFileSegmenter{segments: []string{"s0", "s1"}}
	trans := &fakeTranscriber{texts: map[string]string{"s0": "a", "s1": "b"}}
	summ := &fakeWindowSummarizer{err: errors.New("model unavailable")}
	pub := &recordingPublisher{}

	runner := newTestRunner(t, seg, trans, summ, pub)
	if err := runner.Run(context.Background(), Options{FilePath: "f", ChunkSeconds: 15, Speed: 10000}); err != nil {
		t.Fatalf("failed cycles must not abort playback: %v", err)
	}

	if len(summ.calls) != 2 {
		t.Fatalf("expected both cycles attempted, got %d", len(summ.calls))
	}
	if pub.events[len(pub.events)-1] != hub.EventEOF {
		t.Fatalf("eof must still be published after failed cycles")
	}
}

func TestRunFailedSegmentSkipsFragmentNotClock(t *testing.T) {
	t.Parallel()

	seg := &fakeFileSegmenter{segments: []string{"s0", "s1"}}
	trans := &fakeTranscriber{
		texts: map[string]string{"s1": "only this"},
		errs:  map[string]error{"s0": errors.New("stt down")},
	}
	summ := &fakeWindowSummarizer{}

	runner := newTestRunner(t, seg, trans, summ, &recordingPublisher{})
	if err := runner.Run(context.Background(), Options{FilePath: "f", ChunkSeconds: 15, Speed: 10000}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// The failed first segment produces no window text, so only the second
	// step summarises, but its clock still reflects the second chunk.
	if len(summ.calls) != 1 {
		t.Fatalf("expected 1 summarisation call, got %d", len(summ.calls))
	}
	if summ.calls[0].start != 15 || summ.calls[0].end != 30 {
		t.Fatalf("clock must advance past failed segments, got [%v,%v]", summ.calls[0].start, summ.calls[0].end)
	}
}
