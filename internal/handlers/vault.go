package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tasukuchiba/lovebook/internal/vault"
	"github.com/tasukuchiba/lovebook/internal/viewstate"
	"go.uber.org/zap"
)

// Dispatcher はVaultHandlerが操作するVault
type Dispatcher interface {
	Dispatch(ctx context.Context, a vault.Action) (vault.Snapshot, error)
	Snapshot(ctx context.Context) (vault.Snapshot, error)
}

// VaultHandler はVaultの状態取得とユーザー操作のHTTPリクエストを処理する
type VaultHandler struct {
	vault Dispatcher
	log   *zap.Logger
}

// NewVaultHandler は新しいVaultHandlerを作成する
func NewVaultHandler(d Dispatcher, logger *zap.Logger) *VaultHandler {
	return &VaultHandler{vault: d, log: logger}
}

// VaultResponse は /state と /actions のレスポンスボディ
type VaultResponse struct {
	State *vault.Snapshot `json:"state,omitempty"`
	Error string          `json:"error,omitempty"`
	Field string          `json:"field,omitempty"`
}

// HandleState は /state エンドポイントのハンドラー
func (h *VaultHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := h.vault.Snapshot(r.Context())
	if err != nil {
		h.writeJSON(w, statusFor(err), VaultResponse{Error: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, VaultResponse{State: &snap})
}

// HandleActions は /actions エンドポイントのハンドラー
func (h *VaultHandler) HandleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var action vault.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	snap, err := h.vault.Dispatch(r.Context(), action)
	if err != nil {
		resp := VaultResponse{Error: err.Error()}
		if !errors.Is(err, vault.ErrStopped) {
			resp.State = &snap
		}
		var verr *vault.ValidationError
		if errors.As(err, &verr) {
			resp.Field = verr.Field
		}
		h.log.Debug("action rejected", zap.String("action", string(action.Type)), zap.Error(err))
		h.writeJSON(w, statusFor(err), resp)
		return
	}
	h.writeJSON(w, http.StatusOK, VaultResponse{State: &snap})
}

func statusFor(err error) int {
	var verr *vault.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, vault.ErrSubmitInFlight), errors.Is(err, viewstate.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, vault.ErrUnknownMessage):
		return http.StatusNotFound
	case errors.Is(err, vault.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

func (h *VaultHandler) writeJSON(w http.ResponseWriter, status int, body VaultResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("failed to write response", zap.Error(err))
	}
}
