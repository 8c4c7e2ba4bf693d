package storage

import (
	"context"
	"errors"

	"github.com/tasukuchiba/lovebook/internal/models"
)

// ErrUnknownCategory はtypeカラムのCHECK制約に相当するエラー
var ErrUnknownCategory = errors.New("unknown message type")

// Storage はlove_messagesテーブルのバックエンドのインターフェース
type Storage interface {
	// Insert はメッセージを保存し、採番されたidとcreated_atを含む行を返す
	Insert(ctx context.Context, msg models.NewMessage) (models.Message, error)

	// List は全てのメッセージをcreated_atの降順で取得する
	List(ctx context.Context) ([]models.Message, error)

	// Close は保持しているリソースを解放する
	Close() error
}
