package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tasukuchiba/lovebook/internal/models"
)

// MemoryStorage はメッセージをメモリ上に保存するストレージ
type MemoryStorage struct {
	mu       sync.RWMutex
	messages []models.Message
	nextID   int64
	now      func() time.Time
}

// NewMemoryStorage は新しいMemoryStorageを作成する
func NewMemoryStorage() *MemoryStorage {
	return NewMemoryStorageWithClock(time.Now)
}

// NewMemoryStorageWithClock はcreated_atの採番に使う時計を指定してMemoryStorageを作成する
func NewMemoryStorageWithClock(now func() time.Time) *MemoryStorage {
	return &MemoryStorage{
		messages: make([]models.Message, 0),
		nextID:   1,
		now:      now,
	}
}

// Insert はメッセージを保存する
func (s *MemoryStorage) Insert(_ context.Context, msg models.NewMessage) (models.Message, error) {
	if !msg.Category.Valid() {
		return models.Message{}, ErrUnknownCategory
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row := models.Message{
		ID:        s.nextID,
		Category:  msg.Category,
		Recipient: msg.Recipient,
		Sender:    msg.Sender,
		Content:   msg.Content,
		CreatedAt: s.now(),
	}
	s.nextID++
	s.messages = append(s.messages, row)
	return row, nil
}

// List は全てのメッセージを新しい順に取得する
func (s *MemoryStorage) List(_ context.Context) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Message, len(s.messages))
	copy(result, s.messages)

	// 同じ時刻のものはidの降順で並べる
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// Close は何もしない
func (s *MemoryStorage) Close() error {
	return nil
}
