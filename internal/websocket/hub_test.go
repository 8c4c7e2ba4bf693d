package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/tasukuchiba/lovebook/internal/models"
	"github.com/tasukuchiba/lovebook/internal/vault"
	"github.com/tasukuchiba/lovebook/internal/viewstate"
	"go.uber.org/zap"
)

// fakeVault は受け取った操作を記録するDispatcher
type fakeVault struct {
	mu      sync.Mutex
	actions []vault.Action
	err     error
	snap    vault.Snapshot
}

func (f *fakeVault) Dispatch(_ context.Context, a vault.Action) (vault.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, a)
	return f.snap, f.err
}

func (f *fakeVault) Snapshot(_ context.Context) (vault.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, nil
}

func (f *fakeVault) received() []vault.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vault.Action(nil), f.actions...)
}

func startHub(t *testing.T, d Dispatcher) *Hub {
	t.Helper()
	hub := NewHub(d, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func TestNewHub(t *testing.T) {
	d := &fakeVault{}
	hub := NewHub(d, zap.NewNop())

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}

	if hub.clients == nil {
		t.Error("clients map is nil")
	}

	if hub.broadcast == nil {
		t.Error("broadcast channel is nil")
	}

	if hub.register == nil {
		t.Error("register channel is nil")
	}

	if hub.unregister == nil {
		t.Error("unregister channel is nil")
	}

	if hub.vault != d {
		t.Error("vault not properly set")
	}
}

func TestHub_Publish(t *testing.T) {
	hub := startHub(t, &fakeVault{})

	// テスト用のクライアントを作成（sendチャネルのみ）
	client := &Client{
		hub:  hub,
		send: make(chan []byte, 256),
		id:   "test-view",
	}

	// クライアントを登録
	hub.register <- client

	// 少し待ってから登録を確認
	time.Sleep(50 * time.Millisecond)

	if hub.ClientCount() != 1 {
		t.Errorf("Expected 1 client, got %d", hub.ClientCount())
	}

	hub.Publish(vault.Snapshot{
		Version:  3,
		Screen:   viewstate.ScreenVault,
		Category: models.CategoryLetter,
		Messages: []vault.Envelope{{Message: models.Message{ID: 1, Category: models.CategoryLetter, Content: "Hi"}, Stamp: "💖"}},
	})

	// メッセージを受信
	select {
	case msg := <-client.send:
		var outMsg OutgoingMessage
		if err := json.Unmarshal(msg, &outMsg); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}

		if outMsg.Type != "state" {
			t.Errorf("Expected type 'state', got '%s'", outMsg.Type)
		}
		if outMsg.State == nil {
			t.Fatal("Expected state payload")
		}
		if outMsg.State.Version != 3 {
			t.Errorf("Expected version 3, got %d", outMsg.State.Version)
		}
		if len(outMsg.State.Messages) != 1 || outMsg.State.Messages[0].Content != "Hi" {
			t.Errorf("Unexpected messages %+v", outMsg.State.Messages)
		}

	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for message")
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := startHub(t, &fakeVault{})

	client1 := &Client{
		hub:  hub,
		send: make(chan []byte, 256),
		id:   "client1",
	}

	client2 := &Client{
		hub:  hub,
		send: make(chan []byte, 256),
		id:   "client2",
	}

	// クライアント1を登録
	hub.register <- client1
	time.Sleep(50 * time.Millisecond)

	if hub.ClientCount() != 1 {
		t.Errorf("Expected 1 client after first register, got %d", hub.ClientCount())
	}

	// クライアント2を登録
	hub.register <- client2
	time.Sleep(50 * time.Millisecond)

	if hub.ClientCount() != 2 {
		t.Errorf("Expected 2 clients after second register, got %d", hub.ClientCount())
	}

	// クライアント1を登録解除
	hub.unregister <- client1
	time.Sleep(50 * time.Millisecond)

	if hub.ClientCount() != 1 {
		t.Errorf("Expected 1 client after unregister, got %d", hub.ClientCount())
	}

	// 登録解除済みのクライアントには個別送信しない
	client1.reply([]byte("late"))
	if _, ok := <-client1.send; ok {
		t.Error("Expected send channel of unregistered client to be closed")
	}

	// クライアント2を登録解除
	hub.unregister <- client2
	time.Sleep(50 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("Expected 0 clients after all unregister, got %d", hub.ClientCount())
	}
}

func TestHub_PublishAfterStop(t *testing.T) {
	hub := NewHub(&fakeVault{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(finished)
	}()
	cancel()
	<-finished

	// バッファを超えて送ってもブロックしない
	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			hub.Publish(vault.Snapshot{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after hub stopped")
	}
}

func TestOutgoingMessage_JSON(t *testing.T) {
	data := encodeError(vault.ErrSubmitInFlight)

	var parsed OutgoingMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}

	if parsed.Type != "error" {
		t.Errorf("Expected type 'error', got '%s'", parsed.Type)
	}
	if parsed.Error != vault.ErrSubmitInFlight.Error() {
		t.Errorf("Expected error %q, got %q", vault.ErrSubmitInFlight.Error(), parsed.Error)
	}
	if parsed.State != nil {
		t.Error("Expected no state on error message")
	}
}

func TestIncomingAction_JSON(t *testing.T) {
	jsonStr := `{"type":"draft","recipient":"Sam","content":"Hi"}`

	var action vault.Action
	if err := json.Unmarshal([]byte(jsonStr), &action); err != nil {
		t.Fatalf("Failed to unmarshal action: %v", err)
	}

	if action.Type != vault.ActionDraft {
		t.Errorf("Expected type 'draft', got '%s'", action.Type)
	}

	if action.Recipient != "Sam" || action.Content != "Hi" {
		t.Errorf("Unexpected draft %+v", action.Draft)
	}
}
