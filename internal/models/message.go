package models

import (
	"fmt"
	"time"
)

// DefaultSender は差出人が空のときに使う名前
const DefaultSender = "Anonymous"

// Category はメッセージが属するボードの種類
type Category string

const (
	CategoryBroken Category = "broken"
	CategoryLetter Category = "letter"
	CategorySecret Category = "secret"
)

// Categories はゲート画面の並び順で全カテゴリを返す
func Categories() []Category {
	return []Category{CategoryBroken, CategoryLetter, CategorySecret}
}

// ParseCategory は文字列をCategoryに変換する
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Valid は3種類の固定値のいずれかであるかを返す
func (c Category) Valid() bool {
	switch c {
	case CategoryBroken, CategoryLetter, CategorySecret:
		return true
	}
	return false
}

// Title はボードの見出し
func (c Category) Title() string {
	switch c {
	case CategoryBroken:
		return "Record the pain"
	case CategoryLetter:
		return "Write a Letter"
	case CategorySecret:
		return "Share a Secret"
	}
	return ""
}

// Label はタブと送信ボタンの表示名
func (c Category) Label() string {
	switch c {
	case CategoryBroken:
		return "Broken"
	case CategoryLetter:
		return "Love"
	case CategorySecret:
		return "Secret"
	}
	return ""
}

// Stamp は封筒に貼る切手
func (c Category) Stamp() string {
	switch c {
	case CategoryBroken:
		return "🥀"
	case CategoryLetter:
		return "💖"
	case CategorySecret:
		return "🕵️"
	}
	return ""
}

// Seal は封蝋
func (c Category) Seal() string {
	if c == CategoryBroken {
		return "💔"
	}
	return "❤️"
}

// Message はlove_messagesテーブルの1行を表す構造体
type Message struct {
	ID        int64     `json:"id"`
	Category  Category  `json:"type"`
	Recipient string    `json:"recipient"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage は挿入時のペイロード（idとcreated_atはストア側で採番される）
type NewMessage struct {
	Category  Category `json:"type"`
	Recipient string   `json:"recipient"`
	Sender    string   `json:"sender"`
	Content   string   `json:"content"`
}
