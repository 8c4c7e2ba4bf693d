package websocket

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/tasukuchiba/lovebook/internal/vault"
	"go.uber.org/zap"
)

// Dispatcher はビューからの操作を受け付けるVault
type Dispatcher interface {
	Dispatch(ctx context.Context, a vault.Action) (vault.Snapshot, error)
	Snapshot(ctx context.Context) (vault.Snapshot, error)
}

// Hub は全ビュー（WebSocketクライアント）の接続を管理する
type Hub struct {
	// 接続中のクライアント
	clients map[*Client]bool

	// ブロードキャスト用チャネル
	broadcast chan []byte

	// クライアント登録用チャネル
	register chan *Client

	// クライアント登録解除用チャネル
	unregister chan *Client

	// 特定のクライアントだけに送るためのチャネル
	direct chan outbound

	// Runの終了時に閉じる
	done chan struct{}

	// 操作の送り先
	vault Dispatcher

	count atomic.Int64
	log   *zap.Logger
}

type outbound struct {
	client *Client
	data   []byte
}

// OutgoingMessage はクライアントへ送信するメッセージの形式
type OutgoingMessage struct {
	Type  string          `json:"type"`
	State *vault.Snapshot `json:"state,omitempty"`
	Error string          `json:"error,omitempty"`
}

// NewHub は新しいHubを作成する
func NewHub(d Dispatcher, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan outbound),
		done:       make(chan struct{}),
		vault:      d,
		log:        logger,
	}
}

// Run はHubのメインループを開始する
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer func() {
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.count.Store(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			h.log.Info("view connected", zap.String("client_id", client.id), zap.Int("total", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.count.Store(int64(len(h.clients)))
				h.log.Info("view disconnected", zap.String("client_id", client.id), zap.Int("total", len(h.clients)))
			}

		case m := <-h.direct:
			// 登録解除済みのクライアントには送らない
			if h.clients[m.client] {
				select {
				case m.client.send <- m.data:
				default:
				}
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
					h.count.Store(int64(len(h.clients)))
					h.log.Warn("dropped slow view", zap.String("client_id", client.id))
				}
			}
		}
	}
}

// Publish はスナップショットを全クライアントにブロードキャストする
// VaultのOnChangeから呼ばれる
func (h *Hub) Publish(snap vault.Snapshot) {
	data, err := encodeState(snap)
	if err != nil {
		h.log.Error("failed to encode snapshot", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

func encodeState(snap vault.Snapshot) ([]byte, error) {
	return json.Marshal(OutgoingMessage{Type: "state", State: &snap})
}

func encodeError(err error) []byte {
	data, _ := json.Marshal(OutgoingMessage{Type: "error", Error: err.Error()})
	return data
}

// ClientCount は接続中のクライアント数を返す
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}
