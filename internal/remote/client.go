// Package remote はlove_messagesテーブルをREST（PostgREST / Supabase互換）で操作するクライアント
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tasukuchiba/lovebook/internal/models"
	"go.uber.org/multierr"
)

// Table はクライアントが操作するテーブル名
const Table = "love_messages"

const defaultTimeout = 10 * time.Second

// Query は取得時の並び順
// フィルタはストアに渡さない
type Query struct {
	OrderBy    string
	Descending bool
}

// APIError はストアが2xx以外を返したときのエラー
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("store returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("store returned %d: %s", e.StatusCode, e.Message)
}

// Client はRemote Storeへのアクセサ
type Client struct {
	endpoint *url.URL
	key      string
	http     *http.Client
}

// Option はClientの設定を変更する
type Option func(*Client)

// WithHTTPClient は使用するhttp.Clientを差し替える
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout はリクエストのタイムアウトを設定する
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient は新しいClientを作成する
func NewClient(baseURL, key string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("store url must be http or https, got %q", baseURL)
	}
	if key == "" {
		return nil, errors.New("store key is required")
	}

	c := &Client{
		endpoint: base.JoinPath("rest", "v1", Table),
		key:      key,
		http:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Insert は1行を挿入する
// idとcreated_atはストア側で採番される
func (c *Client) Insert(ctx context.Context, msg models.NewMessage) error {
	body, err := json.Marshal([]models.NewMessage{msg})
	if err != nil {
		return fmt.Errorf("encode insert: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("insert %s: %w", Table, err)
	}
	return drain(resp, nil)
}

// Query は全行を指定の順序で取得する
func (c *Client) Query(ctx context.Context, q Query) ([]models.Message, error) {
	u := *c.endpoint
	params := url.Values{}
	params.Set("select", "*")
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	u.RawQuery = params.Encode()

	req, err := c.newRequest(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", Table, err)
	}

	var messages []models.Message
	if err := drain(resp, &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	return req, nil
}

// drain はレスポンスを読み切って閉じる
// 2xx以外はAPIErrorに変換し、outが指定されていればボディをデコードする
func drain(resp *http.Response, out any) (err error) {
	defer func() {
		// resp.Bodyは全部読み切ってから閉じる
		_, copyErr := io.Copy(io.Discard, resp.Body)
		err = multierr.Append(err, multierr.Append(copyErr, resp.Body.Close()))
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var body struct {
			Message string `json:"message"`
			Code    string `json:"code"`
			Details string `json:"details"`
			Hint    string `json:"hint"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Message != "" {
			apiErr.Message = strings.TrimSpace(strings.Join([]string{body.Message, body.Details}, " "))
			apiErr.Code = body.Code
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", Table, err)
	}
	return nil
}
