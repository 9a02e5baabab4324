package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// エラーカテゴリ
const (
	CategoryNetwork    = "network"
	CategoryValidation = "validation"
	CategoryAuth       = "auth"
	CategoryNotFound   = "not_found"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeNetwork         = "NETWORK_ERROR"
	ErrCodeValidation      = "VALIDATION_FAILED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeAPI             = "API_ERROR"
	ErrCodeDecodeFailed    = "DECODE_FAILED"
	ErrCodeNoToken         = "NO_TOKEN"
	ErrCodeAuthRequired    = "AUTH_REQUIRED"
	ErrCodeAlreadyInFlight = "ALREADY_IN_FLIGHT"
	ErrCodeStaleResult     = "STALE_RESULT"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// FieldErrors はフィールド名ごとの検証エラーメッセージを表す。
// サーバーの {errors: {field: [messages]}} 形式をそのまま保持する。
type FieldErrors map[string][]string

// Add はフィールドにメッセージを追加する。
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// Has は指定フィールドにエラーがあるかを返す。
func (f FieldErrors) Has(field string) bool {
	return len(f[field]) > 0
}

// String はフィールド名順に整形したメッセージを返す。
func (f FieldErrors) String() string {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+" "+strings.Join(f[field], ", "))
	}
	return strings.Join(parts, "; ")
}

// APIError は正規化されたエラーを表す。
// ストアのerrorフィールドとビュー層のエラーレスポンスの両方で使用する。
type APIError struct {
	Code     string      // エラーコード
	Message  string      // エラーメッセージ
	Category string      // カテゴリ: network, validation, auth, not_found, system
	Action   string      // ユーザー向け対処方法
	Status   int         // リモートAPIのHTTPステータス（応答がない場合は0）
	Fields   FieldErrors // フィールド単位の検証エラー
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Fields.String())
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// IsAuth は認可エラー（トークン欠如・失効）かどうかを返す。
func (e *APIError) IsAuth() bool {
	return e.Category == CategoryAuth
}

// NewNetworkError は通信失敗（応答なし）のエラーを生成する。
func NewNetworkError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeNetwork,
		Message:  fmt.Sprintf("APIサーバーに接続できませんでした: %s", reason),
		Category: CategoryNetwork,
		Action:   "ネットワーク接続を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewValidationError はフィールド単位の検証エラーを生成する。
func NewValidationError(status int, fields FieldErrors) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "入力内容に誤りがあります。",
		Category: CategoryValidation,
		Action:   "各項目のエラーメッセージを確認して修正してください。",
		Status:   status,
		Fields:   fields,
	}
}

// NewUnauthorizedError は認可失敗（トークン失効・権限なし）のエラーを生成する。
func NewUnauthorizedError(status int, fields FieldErrors) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証に失敗しました。",
		Category: CategoryAuth,
		Action:   "ログインし直してください。",
		Status:   status,
		Fields:   fields,
	}
}

// NewNotFoundError はリソース未検出のエラーを生成する。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定されたリソースが見つかりません: %s", resource),
		Category: CategoryNotFound,
		Action:   "URLやスラッグを確認してください。",
		Status:   404,
	}
}

// NewRemoteAPIError は分類できないリモートAPIエラーを生成する。
func NewRemoteAPIError(status int) *APIError {
	return &APIError{
		Code:     ErrCodeAPI,
		Message:  fmt.Sprintf("APIサーバーがステータス %d を返しました", status),
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
		Status:   status,
	}
}

// NewDecodeFailedError はレスポンスボディを解釈できなかった場合のエラーを生成する。
func NewDecodeFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeDecodeFailed,
		Message:  fmt.Sprintf("APIレスポンスの解析に失敗しました: %s", reason),
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNoTokenError は永続化トークンが存在しない場合のエラーを生成する。
func NewNoTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeNoToken,
		Message:  "No authentication token found",
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// NewAuthRequiredError はトークンが必要な操作を未ログインで実行した場合のエラーを生成する。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "Authentication required",
		Category: CategoryAuth,
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewAlreadyInFlightError は同一記事へのお気に入り操作が処理中の場合のエラーを生成する。
func NewAlreadyInFlightError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyInFlight,
		Message:  fmt.Sprintf("この記事への操作は処理中です: %s", slug),
		Category: CategoryValidation,
		Action:   "処理の完了を待ってから再度お試しください。",
	}
}

// NewStaleResultError は後続の操作に追い越された結果を破棄したことを表すエラーを生成する。
func NewStaleResultError() *APIError {
	return &APIError{
		Code:     ErrCodeStaleResult,
		Message:  "より新しい操作の結果が適用されたため、この結果は破棄されました。",
		Category: CategorySystem,
		Action:   "最新の状態を確認してください。",
	}
}

// NewInternalError は分類済みでないエラーをシステムエラーとして包む。
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  fmt.Sprintf("内部エラーが発生しました: %v", err),
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// AsAPIError はerrを *APIError として取り出す。
// *APIError を含まないエラーは NewInternalError で包む。nilにはnilを返す。
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewInternalError(err)
}
