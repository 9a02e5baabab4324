package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAPIError_Error_IncludesFieldsInOrder(t *testing.T) {
	err := NewValidationError(422, FieldErrors{
		"username": {"has already been taken"},
		"email":    {"is invalid", "is too long"},
	})

	got := err.Error()
	want := "email is invalid, is too long; username has already been taken"
	if !strings.HasSuffix(got, want) {
		t.Errorf("Error() = %q, want suffix %q", got, want)
	}
	if !strings.HasPrefix(got, "["+ErrCodeValidation+"]") {
		t.Errorf("Error() = %q, want code prefix", got)
	}
}

func TestAPIError_IsAuth(t *testing.T) {
	tests := []struct {
		err  *APIError
		want bool
	}{
		{NewUnauthorizedError(401, nil), true},
		{NewNoTokenError(), true},
		{NewAuthRequiredError(), true},
		{NewNetworkError("timeout"), false},
		{NewValidationError(422, nil), false},
		{NewNotFoundError("article"), false},
	}
	for _, tt := range tests {
		if got := tt.err.IsAuth(); got != tt.want {
			t.Errorf("%s.IsAuth() = %v, want %v", tt.err.Code, got, tt.want)
		}
	}
}

func TestNoTokenError_Message(t *testing.T) {
	if got := NewNoTokenError().Message; got != "No authentication token found" {
		t.Errorf("Message = %q", got)
	}
}

func TestAsAPIError(t *testing.T) {
	if AsAPIError(nil) != nil {
		t.Error("AsAPIError(nil) should be nil")
	}

	original := NewNotFoundError("article")
	wrapped := fmt.Errorf("fetch failed: %w", original)
	if got := AsAPIError(wrapped); got != original {
		t.Errorf("AsAPIError(wrapped) = %v, want the original error", got)
	}

	got := AsAPIError(errors.New("boom"))
	if got.Code != ErrCodeInternal || got.Category != CategorySystem {
		t.Errorf("AsAPIError(plain) = %+v", got)
	}
}

func TestFieldErrors_AddAndHas(t *testing.T) {
	f := FieldErrors{}
	f.Add("title", "is required")
	f.Add("title", "is too short")

	if !f.Has("title") || len(f["title"]) != 2 {
		t.Errorf("FieldErrors = %v", f)
	}
	if f.Has("body") {
		t.Error("Has(body) should be false")
	}
}
