package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tasukuchiba/lovebook/internal/models"
	"github.com/tasukuchiba/lovebook/internal/storage"
	"go.uber.org/zap"
)

// TablePath はlove_messagesテーブルのRESTパス
const TablePath = "/rest/v1/love_messages"

// TableHandler はlove_messagesテーブルへのREST（PostgREST互換）リクエストを処理する
type TableHandler struct {
	storage storage.Storage
	apiKey  string
	log     *zap.Logger
}

// NewTableHandler は新しいTableHandlerを作成する
func NewTableHandler(s storage.Storage, apiKey string, logger *zap.Logger) *TableHandler {
	return &TableHandler{storage: s, apiKey: apiKey, log: logger}
}

// apiError はPostgRESTのエラーボディ
type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiError{Message: message, Code: code})
}

// ServeHTTP は /rest/v1/love_messages エンドポイントのハンドラー
func (h *TableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "PGRST301", "Invalid API key")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.selectMessages(w, r)
	case http.MethodPost:
		h.insertMessages(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "PGRST105", "Method not allowed")
	}
}

// authorized はapikeyヘッダーかBearerトークンが設定済みのキーと一致するかを確認する
func (h *TableHandler) authorized(r *http.Request) bool {
	if key := r.Header.Get("apikey"); key != "" {
		return key == h.apiKey
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == h.apiKey
}

// selectMessages は全てのメッセージを取得する
func (h *TableHandler) selectMessages(w http.ResponseWriter, r *http.Request) {
	ascending := false
	switch order := r.URL.Query().Get("order"); order {
	case "", "created_at.desc":
	case "created_at.asc":
		ascending = true
	default:
		writeError(w, http.StatusBadRequest, "PGRST100", "unsupported order "+order)
		return
	}

	messages, err := h.storage.List(r.Context())
	if err != nil {
		h.log.Error("failed to list messages", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "", "Internal server error")
		return
	}

	if ascending {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

// insertMessages はリクエストボディの行を挿入する
// ボディは1件のオブジェクトでも配列でもよい
func (h *TableHandler) insertMessages(w http.ResponseWriter, r *http.Request) {
	rows, err := decodeRows(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "PGRST102", "Invalid request body")
		return
	}

	for _, row := range rows {
		if !row.Category.Valid() {
			writeError(w, http.StatusBadRequest, "23514", `new row violates check constraint "love_messages_type_check"`)
			return
		}
	}

	inserted := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		if row.Sender == "" {
			row.Sender = models.DefaultSender
		}
		msg, err := h.storage.Insert(r.Context(), row)
		if err != nil {
			if errors.Is(err, storage.ErrUnknownCategory) {
				writeError(w, http.StatusBadRequest, "23514", err.Error())
				return
			}
			h.log.Error("failed to insert message", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "", "Internal server error")
			return
		}
		inserted = append(inserted, msg)
	}
	h.log.Info("inserted messages", zap.Int("count", len(inserted)))

	if strings.Contains(r.Header.Get("Prefer"), "return=representation") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(inserted)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func decodeRows(r *http.Request) ([]models.NewMessage, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var rows []models.NewMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, errors.New("empty insert")
		}
		return rows, nil
	}

	var row models.NewMessage
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return []models.NewMessage{row}, nil
}
