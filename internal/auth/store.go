// Package auth は認証状態ストアを提供する。
// ログイン・登録・現在ユーザー取得・プロフィール更新・ログアウトの各操作は
// 開始時にloadingを立ててerrorをクリアし、完了時に結果を適用する。
package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/blogclient/internal/form"
	"github.com/hitoshi/blogclient/internal/metrics"
	"github.com/hitoshi/blogclient/internal/model"
	"github.com/hitoshi/blogclient/internal/repository"
	"github.com/hitoshi/blogclient/internal/session"
)

// UserAPI は認証ストアが利用するリモートAPIのインターフェース。
type UserAPI interface {
	Login(ctx context.Context, creds model.Credentials) (*model.User, error)
	Register(ctx context.Context, reg model.Registration) (*model.User, error)
	CurrentUser(ctx context.Context, token string) (*model.User, error)
	UpdateUser(ctx context.Context, token string, update model.UserUpdate) (*model.User, error)
}

// State は認証ストアのスナップショット。
type State struct {
	User            *model.User
	Token           string
	IsAuthenticated bool
	Loading         bool
	Error           *model.APIError
}

// Store は認証状態ストア。
// ネットワーク呼び出し中はロックを保持しない。
type Store struct {
	api     UserAPI
	tokens  repository.TokenRepository
	session *session.Session
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	mu      sync.Mutex
	pending int
	err     *model.APIError

	// persistMu はトークンの永続化とセッション適用を一体で行うためのロック。
	persistMu sync.Mutex
}

// NewStore はStoreを生成する。
func NewStore(
	api UserAPI,
	tokens repository.TokenRepository,
	sess *session.Session,
	logger *slog.Logger,
	m metrics.MetricsCollector,
) *Store {
	if m == nil {
		m = metrics.Nop()
	}
	return &Store{
		api:     api,
		tokens:  tokens,
		session: sess,
		logger:  logger,
		metrics: m,
	}
}

// Session はストアが更新するセッションを返す。
func (s *Store) Session() *session.Session {
	return s.session
}

// Login はサインインフォームでログインする。
// 失敗時はサーバーのエラーを保持し、既存のセッションと永続化トークンは変更しない。
func (s *Store) Login(ctx context.Context, in form.SignIn) (*model.User, error) {
	if fields := in.Validate(); fields != nil {
		return nil, model.NewValidationError(0, fields)
	}

	seq := s.start()
	user, err := s.api.Login(ctx, in.Credentials())
	if err != nil {
		return nil, s.fail(seq, err)
	}
	return s.authenticate(ctx, seq, user)
}

// Register はアカウントを登録し、そのままログイン状態にする。
func (s *Store) Register(ctx context.Context, in form.SignUp) (*model.User, error) {
	if fields := in.Validate(); fields != nil {
		return nil, model.NewValidationError(0, fields)
	}

	seq := s.start()
	user, err := s.api.Register(ctx, in.Registration())
	if err != nil {
		return nil, s.fail(seq, err)
	}
	return s.authenticate(ctx, seq, user)
}

// FetchCurrentUser は永続化トークンで現在のユーザーを取得する。
// トークンがない場合はネットワーク呼び出しを行わずNO_TOKENエラーになる。
// 取得に失敗した場合は永続化トークンとセッションをクリアする。
func (s *Store) FetchCurrentUser(ctx context.Context) (*model.User, error) {
	seq := s.start()

	token, err := s.tokens.Load(ctx)
	if err != nil {
		s.logger.Error("トークンの読み込みに失敗しました", slog.String("error", err.Error()))
		return nil, s.fail(seq, err)
	}
	if token == "" {
		return nil, s.fail(seq, model.NewNoTokenError())
	}

	user, err := s.api.CurrentUser(ctx, token)
	if err != nil {
		s.persistMu.Lock()
		if s.session.IsCurrent(seq) {
			if cerr := s.tokens.Clear(ctx); cerr != nil {
				s.logger.Error("トークンの削除に失敗しました", slog.String("error", cerr.Error()))
			}
			s.session.Clear(seq)
		}
		s.persistMu.Unlock()
		return nil, s.fail(seq, err)
	}

	s.persistMu.Lock()
	applied := s.session.Authenticate(seq, user, token)
	s.persistMu.Unlock()
	if !applied {
		return nil, s.stale(seq)
	}

	s.finish(seq, nil)
	return user.Clone(), nil
}

// Restore はプロセス起動時のセッション復元を行う。
// 永続化トークンがなければ何もしない。トークンが拒否された場合は
// ユーザー向けのエラーを残さず未認証に戻る。
func (s *Store) Restore(ctx context.Context) error {
	token, err := s.tokens.Load(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	_, err = s.FetchCurrentUser(ctx)
	if err == nil {
		return nil
	}

	apiErr := model.AsAPIError(err)
	if apiErr.IsAuth() {
		s.mu.Lock()
		if s.err == apiErr {
			s.err = nil
		}
		s.mu.Unlock()
		s.logger.Info("保存済みトークンが拒否されたため未認証状態で起動します",
			slog.String("code", apiErr.Code),
		)
		return nil
	}
	return apiErr
}

// UpdateProfile はプロフィールを部分更新する。トークンは変更しない。
func (s *Store) UpdateProfile(ctx context.Context, in form.Profile) (*model.User, error) {
	if fields := in.Validate(); fields != nil {
		return nil, model.NewValidationError(0, fields)
	}

	seq := s.start()
	token := s.session.Token()
	if token == "" {
		return nil, s.fail(seq, model.NewNoTokenError())
	}

	user, err := s.api.UpdateUser(ctx, token, in.Update())
	if err != nil {
		return nil, s.fail(seq, err)
	}
	if !s.session.UpdateUser(seq, user) {
		return nil, s.stale(seq)
	}

	s.finish(seq, nil)
	return s.session.Snapshot().User, nil
}

// Logout は永続化トークンとセッションを無条件にクリアする。
// 永続化層のエラーはログに記録するだけで失敗にはしない。
func (s *Store) Logout(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	// persistMu取得後に採番し、先に永続化を終えたログインより必ず新しい遷移にする
	seq := s.session.Begin()

	if err := s.tokens.Clear(ctx); err != nil {
		s.logger.Error("ログアウト時のトークン削除に失敗しました", slog.String("error", err.Error()))
	}
	s.session.Clear(seq)
}

// Snapshot は現在の状態のコピーを返す。
func (s *Store) Snapshot() State {
	snap := s.session.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		User:            snap.User,
		Token:           snap.Token,
		IsAuthenticated: snap.IsAuthenticated,
		Loading:         s.pending > 0,
		Error:           s.err,
	}
}

// authenticate はトークンを永続化してからセッションに適用する。
// 後続の操作（ログアウトなど）が先に適用されていた場合は何もしない。
func (s *Store) authenticate(ctx context.Context, seq uint64, user *model.User) (*model.User, error) {
	s.persistMu.Lock()
	if !s.session.IsCurrent(seq) {
		s.persistMu.Unlock()
		return nil, s.stale(seq)
	}
	if err := s.tokens.Save(ctx, user.Token); err != nil {
		// メモリ上のセッションは有効なので続行する
		s.logger.Error("トークンの保存に失敗しました", slog.String("error", err.Error()))
	}
	s.session.Authenticate(seq, user, user.Token)
	s.persistMu.Unlock()

	s.finish(seq, nil)
	return user.Clone(), nil
}

// start は新しいシーケンス番号を取得し、pending状態に入る。
func (s *Store) start() uint64 {
	seq := s.session.Begin()
	s.mu.Lock()
	s.pending++
	s.err = nil
	s.mu.Unlock()
	return seq
}

// finish はpending状態を抜け、必要ならエラーを保持する。
func (s *Store) finish(seq uint64, apiErr *model.APIError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending > 0 {
		s.pending--
	}
	if apiErr != nil && s.session.IsCurrent(seq) {
		s.err = apiErr
	}
}

// fail はエラーを正規化して保持し、呼び出し元に返す。
func (s *Store) fail(seq uint64, err error) *model.APIError {
	apiErr := model.AsAPIError(err)
	s.finish(seq, apiErr)
	return apiErr
}

// stale は追い越された結果を破棄する。
func (s *Store) stale(seq uint64) *model.APIError {
	s.metrics.RecordStaleResult(metrics.ResourceSession)
	s.logger.Debug("古い認証操作の結果を破棄しました", slog.Uint64("seq", seq))
	s.finish(seq, nil)
	return model.NewStaleResultError()
}
