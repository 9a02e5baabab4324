// Package handler はローカルビューサーバーのHTTPハンドラーを提供する。
// 各ハンドラーはインテントをストアに渡し、更新後のスナップショットをJSONで返す。
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogclient/internal/middleware"
	"github.com/hitoshi/blogclient/internal/model"
)

// ErrCodeInvalidRequest はリクエストボディやクエリを解釈できない場合のエラーコード。
const ErrCodeInvalidRequest = "INVALID_REQUEST"

// maxRequestBodySize はリクエストボディの上限（1MB）。
const maxRequestBodySize = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをvにデコードする。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     ErrCodeInvalidRequest,
			Message:  "リクエストボディが不正です。",
			Category: model.CategoryValidation,
			Action:   "JSON形式で送信してください。",
		})
		return false
	}
	return true
}

// handleStoreError はストアから返されたエラーを適切なHTTPステータスコードに変換して書き込む。
func handleStoreError(w http.ResponseWriter, logger *slog.Logger, err error) {
	apiErr := model.AsAPIError(err)
	status := mapAPIErrorToHTTPStatus(apiErr)
	if status >= http.StatusInternalServerError {
		logger.Error("store operation failed",
			slog.String("code", apiErr.Code),
			slog.Int("remote_status", apiErr.Status),
			slog.String("error", apiErr.Error()),
		)
	}
	if apiErr.Code == model.ErrCodeInternal {
		middleware.WriteInternalServerError(w)
		return
	}
	middleware.WriteErrorResponse(w, status, apiErr)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case model.ErrCodeUnauthorized, model.ErrCodeNoToken, model.ErrCodeAuthRequired:
		return http.StatusUnauthorized
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeAlreadyInFlight, model.ErrCodeStaleResult:
		return http.StatusConflict
	case model.ErrCodeNetwork, model.ErrCodeAPI, model.ErrCodeDecodeFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
