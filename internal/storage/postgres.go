package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/tasukuchiba/lovebook/internal/models"
)

// PostgresStorage はメッセージをPostgreSQLに保存するストレージ
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage は新しいPostgresStorageを作成する
func NewPostgresStorage(databaseURL string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// 接続プール設定
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 接続確認
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	storage := &PostgresStorage{db: db}

	// マイグレーション実行
	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return storage, nil
}

// migrate はデータベーススキーマを作成する
func (s *PostgresStorage) migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS love_messages (
			id BIGSERIAL PRIMARY KEY,
			type TEXT NOT NULL CHECK (type IN ('broken', 'letter', 'secret')),
			recipient TEXT NOT NULL,
			sender TEXT NOT NULL DEFAULT 'Anonymous',
			content TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_love_messages_created_at ON love_messages(created_at);
	`
	_, err := s.db.Exec(query)
	return err
}

// Insert はメッセージを保存する
func (s *PostgresStorage) Insert(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	if !msg.Category.Valid() {
		return models.Message{}, ErrUnknownCategory
	}

	query := `
		INSERT INTO love_messages (type, recipient, sender, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	row := models.Message{
		Category:  msg.Category,
		Recipient: msg.Recipient,
		Sender:    msg.Sender,
		Content:   msg.Content,
	}
	err := s.db.QueryRowContext(ctx, query, msg.Category, msg.Recipient, msg.Sender, msg.Content).
		Scan(&row.ID, &row.CreatedAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("insert love_message: %w", err)
	}
	return row, nil
}

// List は全てのメッセージを新しい順に取得する
func (s *PostgresStorage) List(ctx context.Context) ([]models.Message, error) {
	query := `
		SELECT id, type, recipient, sender, content, created_at
		FROM love_messages
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select love_messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.Category, &msg.Recipient, &msg.Sender, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan love_message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// nilではなく空のスライスを返す
	if messages == nil {
		messages = []models.Message{}
	}

	return messages, nil
}

// Close はデータベース接続を閉じる
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
