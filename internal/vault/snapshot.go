package vault

import (
	"github.com/tasukuchiba/lovebook/internal/models"
	"github.com/tasukuchiba/lovebook/internal/viewstate"
)

// Notice は画面に出す一時的なお知らせ
type Notice struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

const (
	NoticeError = "error"
	NoticeInfo  = "info"
)

// Envelope は一覧に並ぶ1通
type Envelope struct {
	models.Message
	Stamp    string `json:"stamp"`
	Expanded bool   `json:"expanded"`
}

// Snapshot は描画に必要な状態のコピー
type Snapshot struct {
	// Version は状態が変わるたびに増える（古いスナップショットを捨てるため）
	Version    uint64           `json:"version"`
	Screen     viewstate.Screen `json:"screen"`
	Category   models.Category  `json:"category,omitempty"`
	Title      string           `json:"title,omitempty"`
	Label      string           `json:"label,omitempty"`
	Seal       string           `json:"seal,omitempty"`
	Messages   []Envelope       `json:"messages"`
	ExpandedID *int64           `json:"expanded_id"`
	Draft      viewstate.Draft  `json:"draft"`
	Loaded     bool             `json:"loaded"`
	Submitting bool             `json:"submitting"`
	Notice     *Notice          `json:"notice,omitempty"`
}

// Filter はcacheのうち指定カテゴリのものを、元の順序を保ったまま返す
func Filter(cache []models.Message, c models.Category) []models.Message {
	out := make([]models.Message, 0, len(cache))
	for _, m := range cache {
		if m.Category == c {
			out = append(out, m)
		}
	}
	return out
}

func (v *Vault) snapshot() Snapshot {
	st := v.machine.State()
	snap := Snapshot{
		Version:    v.version,
		Screen:     st.Screen,
		Messages:   []Envelope{},
		Draft:      st.Draft,
		Loaded:     v.loaded,
		Submitting: v.submitting,
	}
	if v.notice != nil {
		n := *v.notice
		snap.Notice = &n
	}
	if st.Screen != viewstate.ScreenVault {
		return snap
	}

	snap.Category = st.Category
	snap.Title = st.Category.Title()
	snap.Label = st.Category.Label()
	snap.Seal = st.Category.Seal()

	expanded, open := st.Expanded()
	if open {
		id := expanded
		snap.ExpandedID = &id
	}
	for _, m := range Filter(v.cache, st.Category) {
		snap.Messages = append(snap.Messages, Envelope{
			Message:  m,
			Stamp:    m.Category.Stamp(),
			Expanded: open && m.ID == expanded,
		})
	}
	return snap
}
