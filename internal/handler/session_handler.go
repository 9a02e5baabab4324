package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogclient/internal/auth"
	"github.com/hitoshi/blogclient/internal/form"
	"github.com/hitoshi/blogclient/internal/model"
)

// AuthStoreInterface はセッションハンドラーが必要とする認証ストアのインターフェース。
type AuthStoreInterface interface {
	Login(ctx context.Context, in form.SignIn) (*model.User, error)
	Register(ctx context.Context, in form.SignUp) (*model.User, error)
	FetchCurrentUser(ctx context.Context) (*model.User, error)
	UpdateProfile(ctx context.Context, in form.Profile) (*model.User, error)
	Logout(ctx context.Context)
	Snapshot() auth.State
}

var _ AuthStoreInterface = (*auth.Store)(nil)

// userResponse はビュー向けのユーザー表現。トークンは含めない。
type userResponse struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Bio      *string `json:"bio"`
	Image    *string `json:"image"`
}

// errorView はストアのerror欄のビュー向け表現。
type errorView struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// sessionResponse は認証ストアのスナップショットのビュー向け表現。
type sessionResponse struct {
	User            *userResponse `json:"user"`
	IsAuthenticated bool          `json:"isAuthenticated"`
	HasToken        bool          `json:"hasToken"`
	Loading         bool          `json:"loading"`
	Error           *errorView    `json:"error"`
}

// SessionHandler はセッション関連のHTTPハンドラー。
type SessionHandler struct {
	store  AuthStoreInterface
	logger *slog.Logger
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(store AuthStoreInterface, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// Get はセッションのスナップショットを返す。
// GET /api/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.store.Snapshot()))
}

// Login はサインインする。
// POST /api/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in form.SignIn
	if !decodeJSON(w, r, &in) {
		return
	}
	if _, err := h.store.Login(r.Context(), in); err != nil {
		handleStoreError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(h.store.Snapshot()))
}

// Register はアカウントを登録する。
// POST /api/session/register
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in form.SignUp
	if !decodeJSON(w, r, &in) {
		return
	}
	if _, err := h.store.Register(r.Context(), in); err != nil {
		handleStoreError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(h.store.Snapshot()))
}

// Refresh は保存済みトークンで現在のユーザーを再取得する。
// POST /api/session/refresh
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.FetchCurrentUser(r.Context()); err != nil {
		handleStoreError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(h.store.Snapshot()))
}

// UpdateProfile はプロフィールを更新する。
// PUT /api/session/profile
func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in form.Profile
	if !decodeJSON(w, r, &in) {
		return
	}
	if _, err := h.store.UpdateProfile(r.Context(), in); err != nil {
		handleStoreError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(h.store.Snapshot()))
}

// Logout はログアウトする。失敗しない。
// POST /api/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.store.Logout(r.Context())
	writeJSON(w, http.StatusOK, toSessionResponse(h.store.Snapshot()))
}

func toSessionResponse(s auth.State) sessionResponse {
	resp := sessionResponse{
		IsAuthenticated: s.IsAuthenticated,
		HasToken:        s.Token != "",
		Loading:         s.Loading,
		Error:           toErrorView(s.Error),
	}
	if s.User != nil {
		resp.User = &userResponse{
			Username: s.User.Username,
			Email:    s.User.Email,
			Bio:      s.User.Bio,
			Image:    s.User.Image,
		}
	}
	return resp
}

func toErrorView(e *model.APIError) *errorView {
	if e == nil {
		return nil
	}
	return &errorView{Code: e.Code, Message: e.Message, Errors: e.Fields}
}
