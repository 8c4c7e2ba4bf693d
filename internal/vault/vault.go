// Package vault はメッセージのキャッシュ、画面状態、送信と開閉を1つのループで管理する
package vault

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tasukuchiba/lovebook/internal/models"
	"github.com/tasukuchiba/lovebook/internal/viewstate"
	"go.uber.org/zap"
)

// DefaultLoadingDelay はローディング画面を表示しておく時間
const DefaultLoadingDelay = 2500 * time.Millisecond

// Repository はVaultが使うデータアクセス
type Repository interface {
	Create(ctx context.Context, category models.Category, recipient, sender, content string) error
	List(ctx context.Context) ([]models.Message, error)
}

// ActionType はユーザー操作の種類
type ActionType string

const (
	ActionSelect  ActionType = "select"
	ActionBack    ActionType = "back"
	ActionDraft   ActionType = "draft"
	ActionSubmit  ActionType = "submit"
	ActionToggle  ActionType = "toggle"
	ActionRefresh ActionType = "refresh"
)

// Action はビューから届くユーザー操作
type Action struct {
	Type     ActionType      `json:"type"`
	Category models.Category `json:"category,omitempty"`
	ID       int64           `json:"id,omitempty"`
	viewstate.Draft
}

// Options はVaultの設定
type Options struct {
	// LoadingDelay が0ならDefaultLoadingDelayを使う
	LoadingDelay time.Duration
	Logger       *zap.Logger
	// OnChange は状態が変わるたびにループ上で呼ばれる
	OnChange func(Snapshot)
}

type request struct {
	// nilならスナップショットの取得のみ
	action *Action
	reply  chan reply
}

type reply struct {
	snapshot Snapshot
	err      error
}

type listResult struct {
	id       string
	messages []models.Message
	err      error
}

type createResult struct {
	visit int
	err   error
}

// Vault はメッセージ一覧と画面状態の唯一の所有者
// 状態はRunのgoroutineからのみ変更される
type Vault struct {
	repo         Repository
	log          *zap.Logger
	loadingDelay time.Duration
	onChange     func(Snapshot)

	requests chan request
	listed   chan listResult
	created  chan createResult
	done     chan struct{}
	stopOnce sync.Once

	// 以下はループ専有
	ctx        context.Context
	machine    *viewstate.Machine
	cache      []models.Message
	loaded     bool
	listFailed bool
	submitting bool
	visit      int
	version    uint64
	notice     *Notice
}

// New は新しいVaultを作成する
func New(repo Repository, opts Options) *Vault {
	if opts.LoadingDelay <= 0 {
		opts.LoadingDelay = DefaultLoadingDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Vault{
		repo:         repo,
		log:          opts.Logger,
		loadingDelay: opts.LoadingDelay,
		onChange:     opts.OnChange,
		requests:     make(chan request),
		listed:       make(chan listResult),
		created:      make(chan createResult),
		done:         make(chan struct{}),
		machine:      viewstate.New(),
		cache:        []models.Message{},
	}
}

// Run はVaultのメインループを開始する
// Loadingで開始し、一覧を1回取得しつつ一定時間後にGateへ遷移する
func (v *Vault) Run(ctx context.Context) {
	defer v.Stop()

	v.ctx = ctx
	timer := time.NewTimer(v.loadingDelay)
	defer timer.Stop()

	v.list("initial")
	v.changed()

	for {
		select {
		case <-ctx.Done():
			return

		case <-v.done:
			return

		case <-timer.C:
			// 取得が終わっていなくても遷移する
			if err := v.machine.Ready(); err == nil {
				v.changed()
			}

		case req := <-v.requests:
			if req.action == nil {
				req.reply <- reply{snapshot: v.snapshot()}
				continue
			}
			err := v.handle(*req.action)
			req.reply <- reply{snapshot: v.snapshot(), err: err}

		case res := <-v.listed:
			v.applyList(res)

		case res := <-v.created:
			v.applyCreate(res)
		}
	}
}

// Stop はVaultを破棄する
// 後から届いたレスポンスは捨てられる
func (v *Vault) Stop() {
	v.stopOnce.Do(func() { close(v.done) })
}

// Dispatch はユーザー操作を1件処理し、処理後のスナップショットを返す
func (v *Vault) Dispatch(ctx context.Context, a Action) (Snapshot, error) {
	return v.call(ctx, &a)
}

// Snapshot は現在のスナップショットを返す
func (v *Vault) Snapshot(ctx context.Context) (Snapshot, error) {
	return v.call(ctx, nil)
}

func (v *Vault) call(ctx context.Context, a *Action) (Snapshot, error) {
	req := request{action: a, reply: make(chan reply, 1)}
	select {
	case v.requests <- req:
	case <-v.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	// 受け取ったリクエストには必ず返信される
	r := <-req.reply
	return r.snapshot, r.err
}

func (v *Vault) handle(a Action) error {
	switch a.Type {
	case ActionSelect:
		if err := v.machine.Select(a.Category); err != nil {
			return err
		}
		v.visit++
		// 前回の取得が失敗していれば取り直す
		if v.listFailed {
			v.list("retry")
		}

	case ActionBack:
		if err := v.machine.Back(); err != nil {
			return err
		}
		v.notice = nil

	case ActionDraft:
		if err := v.machine.SetDraft(a.Draft); err != nil {
			return err
		}

	case ActionToggle:
		st := v.machine.State()
		if st.Screen == viewstate.ScreenVault && !v.visible(a.ID, st.Category) {
			return fmt.Errorf("toggle %d: %w", a.ID, ErrUnknownMessage)
		}
		if err := v.machine.Toggle(a.ID); err != nil {
			return err
		}

	case ActionSubmit:
		if err := v.submit(); err != nil {
			return err
		}

	case ActionRefresh:
		v.list("refresh")

	default:
		return fmt.Errorf("%q: %w", a.Type, ErrUnknownAction)
	}

	v.changed()
	return nil
}

func (v *Vault) visible(id int64, c models.Category) bool {
	for _, m := range v.cache {
		if m.ID == id && m.Category == c {
			return true
		}
	}
	return false
}

// submit は下書きを検証してから送信を開始する
func (v *Vault) submit() error {
	st := v.machine.State()
	if st.Screen != viewstate.ScreenVault {
		return fmt.Errorf("submit from %s: %w", st.Screen, viewstate.ErrInvalidTransition)
	}
	if v.submitting {
		return ErrSubmitInFlight
	}

	draft := st.Draft
	if err := validate(draft); err != nil {
		v.notice = &Notice{Level: NoticeError, Text: err.Error()}
		v.changed()
		return err
	}

	sender := draft.Sender
	if strings.TrimSpace(sender) == "" {
		sender = models.DefaultSender
	}

	v.submitting = true
	visit := v.visit
	category := st.Category
	v.log.Info("submitting message", zap.String("category", string(category)))

	ctx := v.ctx
	go func() {
		err := v.repo.Create(ctx, category, draft.Recipient, sender, draft.Content)
		select {
		case v.created <- createResult{visit: visit, err: err}:
		case <-v.done:
			v.log.Debug("dropped create result after stop")
		}
	}()
	return nil
}

func validate(d viewstate.Draft) error {
	if strings.TrimSpace(d.Recipient) == "" {
		return &ValidationError{Field: "recipient"}
	}
	if strings.TrimSpace(d.Content) == "" {
		return &ValidationError{Field: "content"}
	}
	return nil
}

// list は一覧の取得を非同期で開始する
func (v *Vault) list(reason string) {
	id := uuid.NewString()
	v.log.Debug("listing messages", zap.String("request_id", id), zap.String("reason", reason))

	ctx := v.ctx
	go func() {
		messages, err := v.repo.List(ctx)
		select {
		case v.listed <- listResult{id: id, messages: messages, err: err}:
		case <-v.done:
			v.log.Debug("dropped list result after stop", zap.String("request_id", id))
		}
	}()
}

// applyList は届いた順に結果を反映する（後着優先）
func (v *Vault) applyList(res listResult) {
	if res.err != nil {
		v.log.Warn("list failed, keeping cached messages",
			zap.String("request_id", res.id), zap.Int("cached", len(v.cache)), zap.Error(res.err))
		v.listFailed = true
		v.notice = &Notice{Level: NoticeError, Text: "Couldn't load messages: " + res.err.Error()}
		v.changed()
		return
	}

	if v.listFailed {
		v.notice = nil
	}
	v.listFailed = false
	v.loaded = true
	v.cache = res.messages
	v.log.Debug("messages loaded", zap.String("request_id", res.id), zap.Int("count", len(res.messages)))
	v.changed()
}

func (v *Vault) applyCreate(res createResult) {
	v.submitting = false
	if res.err != nil {
		// 下書きは残して再送できるようにする
		v.notice = &Notice{Level: NoticeError, Text: "Couldn't send message: " + res.err.Error()}
		v.changed()
		return
	}

	// 送信後に別のVaultへ移っていればその下書きには触れない
	if res.visit == v.visit {
		v.machine.ClearDraft()
	}
	v.notice = nil
	v.list("submit")
	v.changed()
}

func (v *Vault) changed() {
	v.version++
	if v.onChange != nil {
		v.onChange(v.snapshot())
	}
}
