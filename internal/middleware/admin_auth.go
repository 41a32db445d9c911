// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/stockwatch/internal/model"
)

const adminRealm = "stockwatch-admin"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// adminContextKey はリクエストコンテキストに管理者名を格納するためのキー。
var adminContextKey = contextKey("admin")

// NewAdminAuthMiddleware はHTTP Basic認証で管理者を検証するミドルウェアを返す。
// 認証済みの管理者名をリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewAdminAuthMiddleware(username, password string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !credentialsMatch(user, pass, username, password) {
				if ok {
					logger.Warn("管理APIの認証に失敗しました",
						slog.String("path", r.URL.Path),
						slog.String("remote_addr", r.RemoteAddr),
					)
				}
				w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", adminRealm))
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), adminContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// 長さの違いも含めて定数時間で比較する
func credentialsMatch(user, pass, wantUser, wantPass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(wantUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(wantPass)) == 1
	return userOK && passOK
}

// AdminFromContext はリクエストコンテキストから管理者名を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func AdminFromContext(ctx context.Context) (string, error) {
	admin, ok := ctx.Value(adminContextKey).(string)
	if !ok || admin == "" {
		return "", fmt.Errorf("admin not found in context")
	}
	return admin, nil
}

// ContextWithAdmin はコンテキストに管理者名を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAdmin(ctx context.Context, admin string) context.Context {
	return context.WithValue(ctx, adminContextKey, admin)
}
