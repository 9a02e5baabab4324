package api

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/blogclient/internal/model"
)

// normalizeError は非2xxレスポンスを *model.APIError に変換する。
//   - 400, 422 → VALIDATION_FAILED
//   - 401, 403 → UNAUTHORIZED
//   - 404 → NOT_FOUND
//   - その他 → API_ERROR
func normalizeError(status int, body []byte, resource string) *model.APIError {
	fields := parseFieldErrors(body)

	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return model.NewValidationError(status, fields)
	case http.StatusUnauthorized, http.StatusForbidden:
		return model.NewUnauthorizedError(status, fields)
	case http.StatusNotFound:
		return model.NewNotFoundError(resource)
	default:
		apiErr := model.NewRemoteAPIError(status)
		apiErr.Fields = fields
		return apiErr
	}
}

// parseFieldErrors は {"errors": {field: [messages] | message}} 形式のボディを解析する。
// 解析できない場合はnilを返す。
func parseFieldErrors(body []byte) model.FieldErrors {
	if len(body) == 0 {
		return nil
	}

	var envelope struct {
		Errors map[string]json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Errors) == 0 {
		return nil
	}

	fields := make(model.FieldErrors, len(envelope.Errors))
	for field, raw := range envelope.Errors {
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			fields[field] = list
			continue
		}
		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			fields[field] = []string{single}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
