package model

import "fmt"

// APIError は管理APIの統一エラーフォーマットを表す。
// 原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, catalog, auth, system
	Action   string // 管理者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeInvalidProduct  = "INVALID_PRODUCT"
	ErrCodeProductNotFound = "PRODUCT_NOT_FOUND"
	ErrCodeMonitorNotFound = "MONITOR_NOT_FOUND"
	ErrCodeInvalidMonitor  = "INVALID_MONITOR"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディ不正エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidProductError は商品入力値の検証エラーを生成する。
func NewInvalidProductError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProduct,
		Message:  fmt.Sprintf("商品情報が不正です: %s", reason),
		Category: "validation",
		Action:   "商品名と少なくとも1つのリンク（Global または AU）を指定してください。",
	}
}

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", productID),
		Category: "catalog",
		Action:   "商品IDを確認してください。",
	}
}

// NewInvalidMonitorError は監視入力値の検証エラーを生成する。
func NewInvalidMonitorError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMonitor,
		Message:  fmt.Sprintf("監視情報が不正です: %s", reason),
		Category: "validation",
		Action:   "user_id、product_id、days（1以上）を指定してください。",
	}
}

// NewMonitorNotFoundError は監視未検出エラーを生成する。
func NewMonitorNotFoundError(monitorID string) *APIError {
	return &APIError{
		Code:     ErrCodeMonitorNotFound,
		Message:  fmt.Sprintf("指定された監視が見つかりません: %s", monitorID),
		Category: "catalog",
		Action:   "監視IDを確認してください。",
	}
}

// NewUnauthorizedError は認証失敗エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "管理者のユーザー名とパスワードを指定してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-After ヘッダーの秒数だけ待ってから再度お試しください。",
	}
}
