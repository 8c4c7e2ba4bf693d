package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped はVaultが破棄された後の操作
	ErrStopped = errors.New("vault stopped")

	// ErrSubmitInFlight は送信中にもう一度送信しようとした
	ErrSubmitInFlight = errors.New("a submission is already in flight")

	// ErrUnknownAction は未対応のアクション
	ErrUnknownAction = errors.New("unknown action")

	// ErrUnknownMessage は表示中の一覧にないメッセージを開こうとした
	ErrUnknownMessage = errors.New("message not in current vault")
)

// ValidationError は必須項目が空のまま送信しようとした
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}
