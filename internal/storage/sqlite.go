package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tasukuchiba/lovebook/internal/models"
	"go.uber.org/multierr"
)

var sqliteMigrations = []string{
	`
CREATE TABLE IF NOT EXISTS love_messages (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  type       TEXT NOT NULL CHECK(type IN ('broken','letter','secret')),
  recipient  TEXT NOT NULL,
  sender     TEXT NOT NULL DEFAULT 'Anonymous',
  content    TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_love_messages_created_at
ON love_messages (created_at);
`,
}

// SQLiteStorage はメッセージをSQLiteファイルに保存するストレージ
// created_atはUNIXナノ秒で保持する
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage は新しいSQLiteStorageを作成する
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLiteは書き込みが直列なので接続は1本に絞る
	db.SetMaxOpenConns(1)

	for i, stmt := range sqliteMigrations {
		if _, err := db.Exec(stmt); err != nil {
			return nil, multierr.Append(fmt.Errorf("apply sqlite migration %d: %w", i, err), db.Close())
		}
	}

	return &SQLiteStorage{db: db, now: time.Now}, nil
}

// Insert はメッセージを保存する
func (s *SQLiteStorage) Insert(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	if !msg.Category.Valid() {
		return models.Message{}, ErrUnknownCategory
	}

	createdAt := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO love_messages (type, recipient, sender, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.Category, msg.Recipient, msg.Sender, msg.Content, createdAt.UnixNano(),
	)
	if err != nil {
		return models.Message{}, fmt.Errorf("insert love_message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Message{}, fmt.Errorf("read inserted id: %w", err)
	}

	return models.Message{
		ID:        id,
		Category:  msg.Category,
		Recipient: msg.Recipient,
		Sender:    msg.Sender,
		Content:   msg.Content,
		CreatedAt: time.Unix(0, createdAt.UnixNano()).UTC(),
	}, nil
}

// List は全てのメッセージを新しい順に取得する
func (s *SQLiteStorage) List(ctx context.Context) (_ []models.Message, err error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, type, recipient, sender, content, created_at
FROM love_messages
ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("select love_messages: %w", err)
	}
	defer func() {
		err = multierr.Append(err, rows.Close())
	}()

	messages := []models.Message{}
	for rows.Next() {
		var (
			msg   models.Message
			nanos int64
		)
		if err := rows.Scan(&msg.ID, &msg.Category, &msg.Recipient, &msg.Sender, &msg.Content, &nanos); err != nil {
			return nil, fmt.Errorf("scan love_message: %w", err)
		}
		msg.CreatedAt = time.Unix(0, nanos).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// Close はデータベース接続を閉じる
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
