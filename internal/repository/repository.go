// Package repository はRemote Storeに対する唯一のデータアクセス層
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/tasukuchiba/lovebook/internal/models"
	"github.com/tasukuchiba/lovebook/internal/remote"
	"go.uber.org/zap"
)

// RemoteStore はRepositoryが必要とするストアの操作
type RemoteStore interface {
	Insert(ctx context.Context, msg models.NewMessage) error
	Query(ctx context.Context, q remote.Query) ([]models.Message, error)
}

// StoreError はcreate / list の失敗を表す
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s messages: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Repository はメッセージの作成と一覧取得を提供する
// 失敗してもリトライはしない
type Repository struct {
	store RemoteStore
	log   *zap.Logger
}

// New は新しいRepositoryを作成する
func New(store RemoteStore, logger *zap.Logger) *Repository {
	return &Repository{store: store, log: logger}
}

// Create はメッセージを1件挿入する
// 差出人が空ならAnonymousにする
func (r *Repository) Create(ctx context.Context, category models.Category, recipient, sender, content string) error {
	if strings.TrimSpace(sender) == "" {
		sender = models.DefaultSender
	}

	err := r.store.Insert(ctx, models.NewMessage{
		Category:  category,
		Recipient: recipient,
		Sender:    sender,
		Content:   content,
	})
	if err != nil {
		r.log.Warn("failed to create message", zap.String("category", string(category)), zap.Error(err))
		return &StoreError{Op: "create", Err: err}
	}
	return nil
}

// List は全てのメッセージを新しい順に取得する
func (r *Repository) List(ctx context.Context) ([]models.Message, error) {
	messages, err := r.store.Query(ctx, remote.Query{OrderBy: "created_at", Descending: true})
	if err != nil {
		r.log.Warn("failed to list messages", zap.Error(err))
		return nil, &StoreError{Op: "list", Err: err}
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}
