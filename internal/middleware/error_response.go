package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/blogclient/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// フィールド単位の検証エラーはerrorsにフィールド名をキーとして格納する。
type ErrorResponseBody struct {
	Code     string              `json:"code"`
	Message  string              `json:"message"`
	Category string              `json:"category"`
	Action   string              `json:"action"`
	Errors   map[string][]string `json:"errors,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Errors:   apiErr.Fields,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: model.CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	})
}
