package transcriber

import "testing"

func TestEstimateConfidenceBounds(t *testing.T) {
	t.Parallel()

	if got := EstimateConfidence(""); got != 0.4 {
		t.Fatalf("empty text must score the floor, got %v", got)
	}

	long := ""
	for i := 0; i < 200; i++ {
		long += "word. "
	}
	if got := EstimateConfidence(long); got != 0.98 {
		t.Fatalf("long text must clamp at 0.98, got %v", got)
	}
}

func TestEstimateConfidenceMonotone(t *testing.T) {
	t.Parallel()

	short := EstimateConfidence("a few words")
	longer := EstimateConfidence("a few more words than the other fragment had")
	if longer <= short {
		t.Fatalf("more tokens must not lower confidence: %v <= %v", longer, short)
	}

	plain := EstimateConfidence("one two three")
	punctuated := EstimateConfidence("one, two, three.")
	if punctuated <= plain {
		t.Fatalf("punctuation must not lower confidence: %v <= %v", punctuated, plain)
	}
}
