package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/blogclient/internal/model"
)

type fakeChecker bool

func (f fakeChecker) IsAuthenticated() bool { return bool(f) }

func TestAuthRequiredMiddleware_Unauthenticated(t *testing.T) {
	called := false
	handler := NewAuthRequiredMiddleware(fakeChecker(false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/articles", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("未認証の場合は後続のハンドラーを呼び出してはならない")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeAuthRequired {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeAuthRequired)
	}
}

func TestAuthRequiredMiddleware_Authenticated(t *testing.T) {
	handler := NewAuthRequiredMiddleware(fakeChecker(true))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/articles", nil))

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
}
