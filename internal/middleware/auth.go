// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/squadz/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストに検証済みセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionValidator はセッションの検証に必要なインターフェース。
// session.Storeの部分集合として定義する。
type SessionValidator interface {
	// Validate はAPIキーを検証し、有効であればセッションを返す。
	// 無効・期限切れ・未発行の場合はnilを返す。
	Validate(apiKey string) *model.Session
}

// NewAuthMiddleware はAuthorizationヘッダーのBearer APIキーを検証する
// ミドルウェアを返す。検証済みセッションをリクエストコンテキストに注入する。
// ヘッダーがない、形式が不正、またはキーが無効なリクエストには
// 401 Unauthorizedを返す。
func NewAuthMiddleware(validator SessionValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. AuthorizationヘッダーからAPIキーを取り出す
			apiKey := extractAPIKey(r)
			if apiKey == "" {
				writeUnauthorized(w)
				return
			}

			// 2. セッションの有効性を検証（副作用としてlast_seenが更新される）
			sess := validator.Validate(apiKey)
			if sess == nil {
				writeUnauthorized(w)
				return
			}

			// 3. 検証済みセッションをコンテキストに注入
			ctx := context.WithValue(r.Context(), sessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractAPIKey はAuthorizationヘッダーからBearerクレデンシャルを取り出す。
// 形式が不正な場合は空文字列を返す。
func extractAPIKey(r *http.Request) string {
	header := r.Header.Get("Authorization")
	apiKey, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return apiKey
}

// writeUnauthorized は401の統一エラーレスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "有効なAPIキーをAuthorization: Bearerヘッダーで指定してください。",
	})
}

// SessionFromContext はリクエストコンテキストから検証済みセッションを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*model.Session, error) {
	sess, ok := ctx.Value(sessionContextKey).(*model.Session)
	if !ok || sess == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return sess, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, sess *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}
