package stock

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureKind は在庫確認失敗の分類。
type FailureKind string

const (
	// KindNetwork はタイムアウトや接続拒否などの通信失敗。
	KindNetwork FailureKind = "NetworkError"
	// KindUpstream は非2xxステータスまたはAPIレベルのエラーコード。
	KindUpstream FailureKind = "UpstreamError"
	// KindParse はJSONの不正や想定外の形式。
	KindParse FailureKind = "ParseError"
	// KindNotFound は商品参照から識別子を解決できなかった。
	KindNotFound FailureKind = "NotFound"
)

// FetchError はFetcherが返す型付きの失敗。
// Fetcherの境界を越えるエラーはすべてこの型になる。
type FetchError struct {
	Kind       FailureKind
	Message    string
	Code       string // 上流APIのエラーコード（あれば）
	StatusCode int    // HTTPステータス（あれば）
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Code != "" {
		msg += fmt.Sprintf(" (code=%s)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap は元のエラーを返す。
func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf はエラーの分類を返す。FetchError以外の場合は空文字を返す。
func KindOf(err error) FailureKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func notFoundError(format string, args ...any) *FetchError {
	return &FetchError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func parseError(msg string, err error) *FetchError {
	return &FetchError{Kind: KindParse, Message: msg, Err: err}
}

func upstreamStatusError(statusCode int) *FetchError {
	return &FetchError{
		Kind:       KindUpstream,
		Message:    fmt.Sprintf("unexpected status %d", statusCode),
		StatusCode: statusCode,
	}
}

// networkError は通信エラーをNetworkErrorに変換する。
// タイムアウトもここでNetworkErrorに分類する。
func networkError(err error) *FetchError {
	msg := "request failed"
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		msg = "request timed out"
	}
	return &FetchError{Kind: KindNetwork, Message: msg, Err: err}
}
