// Package middleware はローカルビューサーバーのHTTPミドルウェアを提供する。
package middleware

import (
	"net/http"

	"github.com/hitoshi/blogclient/internal/model"
)

// SessionChecker は認証状態の確認に必要なインターフェース。
// session.Sessionが満たす。
type SessionChecker interface {
	IsAuthenticated() bool
}

// NewAuthRequiredMiddleware は認証済みセッションがない場合に401を返すミドルウェアを返す。
// 非公開ルート（記事の作成・編集・削除、お気に入り、プロフィール編集）に配置する。
func NewAuthRequiredMiddleware(checker SessionChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.IsAuthenticated() {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
