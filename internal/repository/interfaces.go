// Package repository はクライアント状態の永続化を提供する。
// 永続化するのは認証トークン1件のみで、固定キー "token" で保存する。
package repository

import "context"

// TokenKey はトークンを保存する固定キー。
const TokenKey = "token"

// TokenRepository は認証トークンの永続化インターフェース。
// 認証ストアだけがこのインターフェースを直接利用する。
type TokenRepository interface {
	// Load は保存済みトークンを返す。保存されていない場合は空文字列を返す。
	Load(ctx context.Context) (string, error)

	// Save はトークンを保存する。既存のトークンは上書きされる。
	Save(ctx context.Context, token string) error

	// Clear はトークンを削除する。保存されていない場合もエラーにしない。
	Clear(ctx context.Context) error
}
