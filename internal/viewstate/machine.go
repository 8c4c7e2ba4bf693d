// Package viewstate は画面遷移（loading → gate → vault）と開いている封筒、入力中の下書きを管理する
package viewstate

import (
	"errors"
	"fmt"

	"github.com/tasukuchiba/lovebook/internal/models"
)

// ErrInvalidTransition は現在の画面では受け付けないイベント
var ErrInvalidTransition = errors.New("invalid view transition")

// Screen は表示中の画面
type Screen int

const (
	ScreenLoading Screen = iota
	ScreenGate
	ScreenVault
)

func (s Screen) String() string {
	switch s {
	case ScreenLoading:
		return "loading"
	case ScreenGate:
		return "gate"
	case ScreenVault:
		return "vault"
	}
	return fmt.Sprintf("Screen(%d)", int(s))
}

// MarshalText はJSONで画面名を文字列として出力する
func (s Screen) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Draft は入力中のフォーム
type Draft struct {
	Recipient string `json:"recipient"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
}

// State はある時点の画面状態のコピー
type State struct {
	Screen   Screen
	Category models.Category
	Draft    Draft

	expandedID  int64
	hasExpanded bool
}

// Expanded は開いている封筒のidを返す
func (s State) Expanded() (int64, bool) {
	return s.expandedID, s.hasExpanded
}

// Machine は画面状態の遷移を管理する
// 並行アクセスは想定しない（所有者のループからのみ操作する）
type Machine struct {
	state State
}

// New はLoading状態のMachineを作成する
func New() *Machine {
	return &Machine{state: State{Screen: ScreenLoading}}
}

// State は現在の状態を返す
func (m *Machine) State() State {
	return m.state
}

// Ready はLoadingからGateへ遷移する
func (m *Machine) Ready() error {
	if m.state.Screen != ScreenLoading {
		return fmt.Errorf("ready from %s: %w", m.state.Screen, ErrInvalidTransition)
	}
	m.state.Screen = ScreenGate
	return nil
}

// Select はGateから指定カテゴリのVaultへ遷移する
func (m *Machine) Select(c models.Category) error {
	if !c.Valid() {
		return fmt.Errorf("select %q: unknown category", c)
	}
	if m.state.Screen != ScreenGate {
		return fmt.Errorf("select from %s: %w", m.state.Screen, ErrInvalidTransition)
	}
	m.state.Screen = ScreenVault
	m.state.Category = c
	return nil
}

// Back はVaultからGateへ戻る
// 開いている封筒と下書きはリセットされる
func (m *Machine) Back() error {
	if m.state.Screen != ScreenVault {
		return fmt.Errorf("back from %s: %w", m.state.Screen, ErrInvalidTransition)
	}
	m.state = State{Screen: ScreenGate}
	return nil
}

// Toggle は封筒の開閉を切り替える
// 同じidなら閉じ、別のidなら開き直す（同時に開けるのは1通だけ）
func (m *Machine) Toggle(id int64) error {
	if m.state.Screen != ScreenVault {
		return fmt.Errorf("toggle from %s: %w", m.state.Screen, ErrInvalidTransition)
	}
	if m.state.hasExpanded && m.state.expandedID == id {
		m.state.expandedID, m.state.hasExpanded = 0, false
		return nil
	}
	m.state.expandedID, m.state.hasExpanded = id, true
	return nil
}

// SetDraft は下書きを置き換える
func (m *Machine) SetDraft(d Draft) error {
	if m.state.Screen != ScreenVault {
		return fmt.Errorf("edit draft from %s: %w", m.state.Screen, ErrInvalidTransition)
	}
	m.state.Draft = d
	return nil
}

// ClearDraft は下書きを空にする
func (m *Machine) ClearDraft() {
	m.state.Draft = Draft{}
}
