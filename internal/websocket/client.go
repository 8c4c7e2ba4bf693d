package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tasukuchiba/lovebook/internal/vault"
	"go.uber.org/zap"
)

const (
	// 書き込み待機時間
	writeWait = 10 * time.Second

	// pongメッセージの待機時間
	pongWait = 60 * time.Second

	// ping送信間隔（pongWaitより短くする必要がある）
	pingPeriod = (pongWait * 9) / 10

	// 最大メッセージサイズ（本文を含む下書きが入る大きさ）
	maxMessageSize = 8192

	// 1操作を処理する時間の上限
	dispatchTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 開発環境用: 全てのオリジンを許可
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client は単一のWebSocket接続（ビュー）を表す
type Client struct {
	hub *Hub

	// WebSocket接続
	conn *websocket.Conn

	// 送信用バッファチャネル
	send chan []byte

	// ログ用の識別子
	id string
}

// NewClient は新しいClientを作成する
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
		id:   uuid.NewString(),
	}
}

// ReadPump はWebSocket接続から操作を読み取りVaultへ渡す
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket error", zap.String("client_id", c.id), zap.Error(err))
			}
			break
		}

		var action vault.Action
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.log.Debug("failed to parse action", zap.String("client_id", c.id), zap.Error(err))
			c.reply(encodeError(err))
			continue
		}

		// 成功時の状態はOnChange経由でブロードキャストされる
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		_, err = c.hub.vault.Dispatch(ctx, action)
		cancel()
		if err != nil {
			c.reply(encodeError(err))
		}
	}
}

// reply はこのクライアントにだけ送信する
func (c *Client) reply(data []byte) {
	select {
	case c.hub.direct <- outbound{client: c, data: data}:
	case <-c.hub.done:
	}
}

// WritePump はWebSocket接続にメッセージを書き込む
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hubがチャネルをクローズした
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs はWebSocket接続をアップグレードしてクライアントを登録する
// 登録直後に現在のスナップショットを送る
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	client := NewClient(hub, conn)
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	if snap, err := hub.vault.Snapshot(r.Context()); err == nil {
		if data, err := encodeState(snap); err == nil {
			client.reply(data)
		}
	}

	// goroutineで読み書きを並行実行
	go client.WritePump()
	go client.ReadPump()
}
