package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/yegors/liveblog/pkg/logger"
)

func newTestStorage(t *testing.T) *FragmentStorage {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	storage, err := NewFragmentStorage(db, log)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage
}

func TestStoreAndGetFragments(t *testing.T) {
	t.Parallel()

	storage := newTestStorage(t)
	now := time.Now().UTC().Truncate(time.Second)

	for i, text := range []string{"first", "second", "third"} {
		if _, err := storage.StoreFragment(&FragmentRecord{
			SessionID:  "sess-1",
			Seq:        i + 1,
			Content:    text,
			Confidence: 0.5,
			CreatedAt:  now,
		}); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	records, err := storage.GetFragmentsBySession("sess-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"first", "second", "third"} {
		if records[i].Content != want {
			t.Fatalf("records out of order: %v", records)
		}
	}
	if !records[0].CreatedAt.Equal(now) {
		t.Fatalf("timestamp round-trip failed: %v vs %v", records[0].CreatedAt, now)
	}
}

func TestGetFragmentsScopedToSession(t *testing.T) {
	t.Parallel()

	storage := newTestStorage(t)
	now := time.Now().UTC()

	storage.StoreFragment(&FragmentRecord{SessionID: "a", Seq: 1, Content: "mine", CreatedAt: now})
	storage.StoreFragment(&FragmentRecord{SessionID: "b", Seq: 1, Content: "theirs", CreatedAt: now})

	records, err := storage.GetFragmentsBySession("a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(records) != 1 || records[0].Content != "mine" {
		t.Fatalf("expected only session a's fragments, got %v", records)
	}

	empty, err := storage.GetFragmentsBySession("unknown")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no fragments for unknown session")
	}
}
