package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, inventory, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeCSRFMismatch         = "CSRF_MISMATCH"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodePartialFailure       = "PARTIAL_FAILURE"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
)

// NewAuthenticationFailedError はログイン失敗エラーを生成する。
// ユーザー名列挙を防ぐため、ユーザー不在とパスワード不一致を区別しない。
func NewAuthenticationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationFailed,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewRateLimitedError はログイン試行回数超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "ログイン試行回数が上限に達しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "必要な権限を持つアカウントでログインしてください。",
	}
}

// NewCSRFMismatchError はCSRFトークン不一致エラーを生成する。
func NewCSRFMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFMismatch,
		Message:  "リクエストの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みして再度お試しください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewNotFoundError は対象エンティティが見つからない場合のエラーを生成する。
func NewNotFoundError(entity, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません: %s", entity, id),
		Category: "inventory",
		Action:   "IDを確認してください。",
	}
}

// NewLoanAlreadyReturnedError は返却済み貸出への再処理エラーを生成する。
// 再試行すべきでない競合であることをユーザーに伝える。
func NewLoanAlreadyReturnedError(loanID string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  fmt.Sprintf("この貸出は既に返却処理済みです: %s", loanID),
		Category: "inventory",
		Action:   "画面を再読み込みして最新の状態を確認してください。在庫は二重に戻りません。",
	}
}

// NewInsufficientStockError は在庫不足エラーを生成する。
func NewInsufficientStockError(itemName string, available, requested int) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  fmt.Sprintf("「%s」の在庫が不足しています（在庫%d、要求%d）。", itemName, available, requested),
		Category: "inventory",
		Action:   "数量を減らすか、在庫を確認してください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "入力内容を修正して再度お試しください。",
	}
}

// NewSelfDeletionError は自分自身のアカウント削除を拒否するエラーを生成する。
func NewSelfDeletionError() *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  "自分自身のアカウントは削除できません。",
		Category: "validation",
		Action:   "別の管理者アカウントから操作してください。",
	}
}

// BatchItemError はバッチ処理中の1品目分の失敗を表す。
type BatchItemError struct {
	ItemID  string `json:"item_id"`
	Message string `json:"message"`
}

// BatchError は部分失敗を表す。複数キーにまたがる副作用には
// トランザクションが存在しないため、失敗した品目だけを列挙して返し、
// 成功した書き込みはロールバックしない。
type BatchError struct {
	Failures []BatchItemError
}

// Error はerrorインターフェースを実装する。
func (e *BatchError) Error() string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.ItemID
	}
	return fmt.Sprintf("[%s] %d件の品目で処理に失敗しました: %s",
		ErrCodePartialFailure, len(e.Failures), strings.Join(ids, ", "))
}

// Add は1品目分の失敗を追加する。
func (e *BatchError) Add(itemID string, err error) {
	e.Failures = append(e.Failures, BatchItemError{ItemID: itemID, Message: err.Error()})
}

// OrNil は失敗が1件もない場合にnilを返す。
// 呼び出し側が `return batchErr.OrNil()` と書けるようにするための補助。
func (e *BatchError) OrNil() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e
}
