package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tasukuchiba/lovebook/internal/models"
)

// fixedClock は呼び出されるたびに順番に時刻を返す
func fixedClock(times ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := times[i%len(times)]
		i++
		return t
	}
}

func TestMemoryStorage_Insert(t *testing.T) {
	now := time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStorageWithClock(fixedClock(now))

	row, err := store.Insert(context.Background(), models.NewMessage{
		Category:  models.CategoryLetter,
		Recipient: "Sam",
		Sender:    "Alex",
		Content:   "Hi",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID != 1 {
		t.Errorf("expected ID 1, got %d", row.ID)
	}
	if !row.CreatedAt.Equal(now) {
		t.Errorf("expected created_at %v, got %v", now, row.CreatedAt)
	}

	messages, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].Recipient != "Sam" {
		t.Errorf("expected recipient 'Sam', got '%s'", messages[0].Recipient)
	}
}

func TestMemoryStorage_InsertUnknownCategory(t *testing.T) {
	store := NewMemoryStorage()

	_, err := store.Insert(context.Background(), models.NewMessage{Category: "love", Recipient: "Sam", Content: "Hi"})
	if !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestMemoryStorage_ListNewestFirst(t *testing.T) {
	base := time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)
	t1, t2, t3 := base, base.Add(time.Minute), base.Add(2*time.Minute)
	// t3, t1, t2 の順に挿入する
	store := NewMemoryStorageWithClock(fixedClock(t3, t1, t2))

	ctx := context.Background()
	for _, content := range []string{"third", "first", "second"} {
		if _, err := store.Insert(ctx, models.NewMessage{Category: models.CategorySecret, Recipient: "x", Content: content}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	messages, err := store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"third", "second", "first"}
	for i, w := range want {
		if messages[i].Content != w {
			t.Errorf("position %d: expected '%s', got '%s'", i, w, messages[i].Content)
		}
	}
	for i := 1; i < len(messages); i++ {
		if messages[i].CreatedAt.After(messages[i-1].CreatedAt) {
			t.Errorf("messages not ordered by created_at desc at %d", i)
		}
	}
}

func TestMemoryStorage_ListTieBreaksByID(t *testing.T) {
	now := time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStorageWithClock(fixedClock(now))

	ctx := context.Background()
	store.Insert(ctx, models.NewMessage{Category: models.CategoryBroken, Recipient: "a", Content: "1"})
	store.Insert(ctx, models.NewMessage{Category: models.CategoryBroken, Recipient: "b", Content: "2"})

	for i := 0; i < 3; i++ {
		messages, _ := store.List(ctx)
		if messages[0].ID != 2 || messages[1].ID != 1 {
			t.Fatalf("expected ids [2 1], got [%d %d]", messages[0].ID, messages[1].ID)
		}
	}
}

func TestMemoryStorage_ListReturnsCopy(t *testing.T) {
	store := NewMemoryStorage()
	store.Insert(context.Background(), models.NewMessage{Category: models.CategoryLetter, Recipient: "Sam", Content: "Hello"})

	messages, _ := store.List(context.Background())
	messages[0].Content = "Modified"

	again, _ := store.List(context.Background())
	if again[0].Content != "Hello" {
		t.Error("List should return a copy, not original data")
	}
}

// TestMemoryStorage_ImplementsStorage はMemoryStorageがStorageインターフェースを実装していることを確認する
func TestMemoryStorage_ImplementsStorage(t *testing.T) {
	var _ Storage = (*MemoryStorage)(nil)
}
