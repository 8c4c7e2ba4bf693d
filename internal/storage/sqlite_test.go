package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tasukuchiba/lovebook/internal/models"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "lovebook.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorage_InsertAndList(t *testing.T) {
	store := newTestSQLite(t)
	base := time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)
	store.now = fixedClock(base.Add(2*time.Minute), base, base.Add(time.Minute))

	ctx := context.Background()
	var inserted []models.Message
	for _, content := range []string{"third", "first", "second"} {
		row, err := store.Insert(ctx, models.NewMessage{Category: models.CategoryLetter, Recipient: "Sam", Sender: "Anonymous", Content: content})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		inserted = append(inserted, row)
	}

	messages, err := store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []models.Message{inserted[0], inserted[2], inserted[1]}
	if diff := cmp.Diff(want, messages); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteStorage_ListEmpty(t *testing.T) {
	store := newTestSQLite(t)

	messages, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if messages == nil || len(messages) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", messages)
	}
}

func TestSQLiteStorage_InsertUnknownCategory(t *testing.T) {
	store := newTestSQLite(t)

	_, err := store.Insert(context.Background(), models.NewMessage{Category: "love", Recipient: "Sam", Content: "Hi"})
	if !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestSQLiteStorage_ImplementsStorage(t *testing.T) {
	var _ Storage = (*SQLiteStorage)(nil)
}
