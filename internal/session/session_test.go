package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/yegors/liveblog/internal/segmenter"
	"github.com/yegors/liveblog/internal/summarizer"
	"github.com/yegors/liveblog/internal/transcriber"
	"github.com/yegors/liveblog/pkg/logger"
)

type fakeSegmenter struct {
	segments []string
	err      error
}

func (f *fakeSegmenter) SegmentBuffer(ctx context.Context, data []byte, segmentSeconds int, pcm *segmenter.PCMConfig) (*segmenter.Batch, error) {
	if f.err != nil {
		return nil, f.err
	}
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

type fakeSummarizer struct {
	mu    sync.Mutex
	calls []struct{ tail, prev string }
	cards []*summarizer.SummaryCard
	errs  []error
}

func (f *fakeSummarizer) SummarizeTail(ctx context.Context, tail, previousSummary string) (*summarizer.SummaryCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, struct{ tail, prev string }{tail, previousSummary})
	i := len(f.calls) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.cards) {
		// Copy so the session's ID mutation does not leak between cycles.
		card := *f.cards[i]
		return &card, nil
	}
	return &summarizer.SummaryCard{}, nil
}

type published struct {
	event   string
	payload interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Publish(event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{event, payload})
}

func (f *fakePublisher) byEvent(event string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, e := range f.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func newTestSession(t *testing.T, seg Segmenter, trans Transcriber, summ Summarizer, pub Publisher) *Session {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	s := New(context.Background(), defaults(), seg, trans, summ, pub, nil, log)
	t.Cleanup(s.Close)
	return s
}

func card(headline string, bullets ...string) *summarizer.SummaryCard {
	return &summarizer.SummaryCard{Headline: headline, Bullets: bullets, Quotes: []string{}, Entities: []string{}}
}

func TestSummaryCycleEmitsCardWithUniqueID(t *testing.T) {
	t.Parallel()

	seg := &fakeSegmenter{segments: []string{"seg0"}}
	trans := &fakeTranscriber{texts: map[string]string{"seg0": "the mayor spoke about transit"}}
	summ := &fakeSummarizer{cards: []*summarizer.SummaryCard{
		card("Transit update", "light rail expanding"),
		card("More news", "budget approved"),
	}}
	pub := &fakePublisher{}

	s := newTestSession(t, seg, trans, summ, pub)
	s.HandleAudio([]byte{1, 2, 3})
	s.processBuffer(context.Background())

	s.summaryCycle()
	s.summaryCycle()

	chunks := pub.byEvent("chunk")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunk events, got %d", len(chunks))
	}

	first := chunks[0].payload.(*summarizer.SummaryCard)
	second := chunks[1].payload.(*summarizer.SummaryCard)
	if first.ID == "" || second.ID == "" {
		t.Fatalf("cards must carry generated IDs")
	}
	if first.ID == second.ID {
		t.Fatalf("card IDs must be unique across the session")
	}
	if first.RevisionOf != nil {
		t.Fatalf("revisionOf must be null, got %v", *first.RevisionOf)
	}
}

func TestSummaryCycleFeedsPreviousSummaryContext(t *testing.T) {
	t.Parallel()

	seg := &fakeSegmenter{segments: []string{"seg0"}}
	trans := &fakeTranscriber{texts: map[string]string{"seg0": "alpha beta gamma"}}
	summ := &fakeSummarizer{cards: []*summarizer.SummaryCard{
		card("First headline", "one", "two"),
		card("Second headline"),
	}}
	pub := &fakePublisher{}

	s := newTestSession(t, seg, trans, summ, pub)
	s.HandleAudio([]byte{1})
	s.processBuffer(context.Background())

	s.summaryCycle()
	s.summaryCycle()

	if summ.calls[0].prev != "" {
		t.Fatalf("first cycle must start with empty context, got %q", summ.calls[0].prev)
	}
	if summ.calls[1].prev != "First headline: one; two" {
		t.Fatalf("second cycle context must be the last emitted card, got %q", summ.calls[1].prev)
	}
}

func TestSummaryCycleSkipsEmptyTranscript(t *testing.T) {
	t.Parallel()

	summ := &fakeSummarizer{}
	pub := &fakePublisher{}
	s := newTestSession(t, &fakeSegmenter{}, &fakeTranscriber{}, summ, pub)

	s.summaryCycle()

	if len(summ.calls) != 0 {
		t.Fatalf("summariser must not be called with an empty tail")
	}
	if len(pub.byEvent("chunk")) != 0 {
		t.Fatalf("no cards must be published for an empty tail")
	}
}

func TestSummaryCycleSuppressesEmptyHeadline(t *testing.T) {
	t.Parallel()

	seg := &fakeSegmenter{segments: []string{"seg0"}}
	trans := &fakeTranscriber{texts: map[string]string{"seg0": "nothing new was said"}}
	summ := &fakeSummarizer{cards: []*summarizer.SummaryCard{
		card("Initial report", "a"),
		card(""), // no new information
		card("Later report", "b"),
	}}
	pub := &fakePublisher{}

	s := newTestSession(t, seg, trans, summ, pub)
	s.HandleAudio([]byte{1})
	s.processBuffer(context.Background())

	s.summaryCycle()
	s.summaryCycle()
	s.summaryCycle()

	if got := len(pub.byEvent("chunk")); got != 2 {
		t.Fatalf("expected empty-headline cycle to be suppressed, got %d chunks", got)
	}
	// Context must be unchanged by the empty cycle.
	if summ.calls[2].prev != "Initial report: a" {
		t.Fatalf("context must survive an empty cycle, got %q", summ.calls[2].prev)
	}
}

func TestSummaryCycleErrorDoesNotStopSession(t *testing.T) {
	t.Parallel()

	seg := &fakeSegmenter{segments: []string{"seg0"}}
	trans := &fakeTranscriber{texts: map[string]string{"seg0": "words were spoken"}}
	summ := &fakeSummarizer{
		errs:  []error{errors.New("summariser exploded"), nil},
		cards: []*summarizer.SummaryCard{nil, card("Recovered", "ok")},
	}
	pub := &fakePublisher{}

	s := newTestSession(t, seg, trans, summ, pub)
	s.HandleAudio([]byte{1})
	s.processBuffer(context.Background())

	s.summaryCycle()
	s.summaryCycle()

	chunks := pub.byEvent("chunk")
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one card after a failed cycle, got %d", len(chunks))
	}
	if chunks[0].payload.(*summarizer.SummaryCard).Headline != "Recovered" {
		t.Fatalf("unexpected card after recovery")
	}
}

func TestProcessBufferPreservesSegmentOrder(t *testing.T) {
	t.Parallel()

	seg := &fakeSegmenter{segments: []string{"seg0", "seg1", "seg2"}}
	trans := &fakeTranscriber{
		texts: map[string]string{"seg0": "first part.", "seg1": "second part.", "seg2": "third part."},
	}
	pub := &fakePublisher{}

	s := newTestSession(t, seg, trans, &fakeSummarizer{}, pub)
	s.HandleAudio([]byte{1})
	s.processBuffer(context.Background())

	transcript := s.Transcript()
	for i, want := range []string{"first part.", "second part.", "third part."} {
		idx := strings.Index(transcript, want)
		if idx < 0 {
			t.Fatalf("fragment %d missing from transcript %q", i, transcript)
		}
		if i > 0 {
			prev := strings.Index(transcript, fmt.Sprintf("%s part.", []string{"first", "second"}[i-1]))
			if prev > idx {
				t.Fatalf("fragments reordered in transcript %q", transcript)
			}
		}
	}

	pieces := pub.byEvent("transcript_piece")
	if len(pieces) != 3 {
		t.Fatalf("expected 3 transcript_piece events, got %d", len(pieces))
	}
}

func TestProcessBufferSkipsFailedSegment(t *testing.T) {
	t.Parallel()

	seg := &fakeSegmenter{segments: []string{"seg0", "seg1", "seg2"}}
	trans := &fakeTranscriber{
		texts: map[string]string{"seg0": "kept one", "seg2": "kept two"},
		errs:  map[string]error{"seg1": errors.New("service unavailable")},
	}
	pub := &fakePublisher{}

	s := newTestSession(t, seg, trans, &fakeSummarizer{}, pub)
	s.HandleAudio([]byte{1})
	s.processBuffer(context.Background())

	if got := s.Transcript(); got != "kept one kept two" {
		t.Fatalf("expected best-effort transcript, got %q", got)
	}
	if s.State() != Streaming {
		t.Fatalf("a failed segment must not change session state")
	}
}

func TestSegmentationFailureDropsBatch(t *testing.T) {
	t.Parallel()

	seg := &fakeSegmenter{err: &segmenter.SegmentationError{Reason: "bad input"}}
	pub := &fakePublisher{}

	s := newTestSession(t, seg, &fakeTranscriber{}, &fakeSummarizer{}, pub)
	s.HandleAudio([]byte{1, 2, 3})
	s.processBuffer(context.Background())

	if got := s.Transcript(); got != "" {
		t.Fatalf("dropped batch must not touch transcript, got %q", got)
	}
	if s.State() != Streaming {
		t.Fatalf("dropped batch must not kill the session")
	}
}

func TestHandshakeFixesConfigAndState(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, &fakeSegmenter{}, &fakeTranscriber{}, &fakeSummarizer{}, &fakePublisher{})

	if s.State() != AwaitingHandshake {
		t.Fatalf("new session must await handshake")
	}
	if err := s.HandleControl([]byte(`{"kind":"handshake","summaryWords":99}`)); err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
	if s.State() != Streaming {
		t.Fatalf("handshake must transition to streaming, got %v", s.State())
	}

	// Config is fixed for the session's lifetime.
	if err := s.HandleControl([]byte(`{"kind":"handshake","summaryWords":1}`)); err == nil {
		t.Fatalf("second handshake must be rejected")
	}
}

func TestAudioBeforeHandshakeUsesDefaults(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, &fakeSegmenter{}, &fakeTranscriber{}, &fakeSummarizer{}, &fakePublisher{})

	s.HandleAudio([]byte{1, 2})
	if s.State() != Streaming {
		t.Fatalf("binary-before-handshake must start streaming with defaults, got %v", s.State())
	}
}

type blockingTranscriber struct {
	entered chan struct{}
	release chan struct{}
	ctxErr  error
}

func (f *blockingTranscriber) Transcribe(ctx context.Context, segmentPath string) (transcriber.Fragment, error) {
	close(f.entered)
	<-f.release
	f.ctxErr = ctx.Err()
	return transcriber.Fragment{Text: "late words", Confidence: 0.9}, nil
}

func TestCloseWaitsForInFlightFlush(t *testing.T) {
	t.Parallel()

	seg := &fakeSegmenter{segments: []string{"seg0"}}
	trans := &blockingTranscriber{entered: make(chan struct{}), release: make(chan struct{})}
	pub := &fakePublisher{}

	s := newTestSession(t, seg, trans, &fakeSummarizer{}, pub)
	s.HandleAudio([]byte{1, 2, 3})

	// Fire the flush timer by hand and close the session while its
	// transcription call is still in flight.
	go s.flushFired()
	<-trans.entered

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	// Close has cancelled the session context; the flush must keep going.
	<-s.ctx.Done()
	close(trans.release)
	<-closed

	if trans.ctxErr != nil {
		t.Fatalf("in-flight flush must not be cancelled by close: %v", trans.ctxErr)
	}
	if got := s.Transcript(); got != "late words" {
		t.Fatalf("flushed audio must reach the transcript, got %q", got)
	}
	if s.State() != Closed {
		t.Fatalf("expected closed state, got %v", s.State())
	}
}

func TestCloseFlushesBufferedAudio(t *testing.T) {
	t.Parallel()

	seg := &fakeSegmenter{segments: []string{"seg0"}}
	trans := &fakeTranscriber{texts: map[string]string{"seg0": "final words"}}
	pub := &fakePublisher{}

	s := newTestSession(t, seg, trans, &fakeSummarizer{}, pub)
	s.HandleAudio([]byte{1, 2, 3})
	s.Close()

	if s.State() != Closed {
		t.Fatalf("expected closed state, got %v", s.State())
	}
	if got := s.Transcript(); got != "final words" {
		t.Fatalf("final flush must process buffered audio, got %q", got)
	}
	// Audio after close is ignored.
	s.HandleAudio([]byte{9})
	if s.pending.Len() != 0 {
		t.Fatalf("audio after close must be dropped")
	}
}
