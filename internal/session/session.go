// Package session はプロセス全体で共有する認証セッションを提供する。
// プロセス起動時に1回だけ生成し、状態の更新は認証ストアの遷移からのみ行う。
// 記事ストアなど他のコンポーネントはTokenで現在のトークンを読むだけ。
package session

import (
	"sync"

	"github.com/hitoshi/blogclient/internal/model"
)

// Snapshot はセッションのある時点のコピー。
type Snapshot struct {
	User            *model.User `json:"user"`
	Token           string      `json:"-"`
	IsAuthenticated bool        `json:"isAuthenticated"`
}

// Session は並行安全なセッションコンテキスト。
// 認証ストアの各操作は開始時にBeginでシーケンス番号を受け取り、
// 完了時にその番号で状態を適用する。最後に適用された番号より古い結果は破棄される。
type Session struct {
	mu      sync.RWMutex
	user    *model.User
	token   string
	authed  bool
	nextSeq uint64
	applied uint64
}

// New は初期トークンを保持したSessionを生成する。
// ユーザー情報はまだ検証されていないため未認証として扱う。
func New(initialToken string) *Session {
	return &Session{token: initialToken}
}

// Begin は新しいシーケンス番号を払い出す。
func (s *Session) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	return s.nextSeq
}

// IsCurrent はseqより新しい遷移がまだ適用されていないかを返す。
func (s *Session) IsCurrent(seq uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return seq >= s.applied
}

// Authenticate はログイン成功を適用する。seqが古い場合は何もせずfalseを返す。
func (s *Session) Authenticate(seq uint64, user *model.User, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied {
		return false
	}
	s.applied = seq
	s.user = user.Clone()
	s.token = token
	s.authed = true
	return true
}

// UpdateUser はユーザー情報だけを置き換える。トークンは変更しない。
func (s *Session) UpdateUser(seq uint64, user *model.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied {
		return false
	}
	s.applied = seq
	u := user.Clone()
	if u != nil {
		u.Token = s.token
	}
	s.user = u
	return true
}

// Clear はセッションを未認証に戻す。seqが古い場合は何もせずfalseを返す。
func (s *Session) Clear(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied {
		return false
	}
	s.applied = seq
	s.user = nil
	s.token = ""
	s.authed = false
	return true
}

// Token は現在のトークンを返す。未ログインの場合は空文字列。
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated は認証済みかどうかを返す。
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authed
}

// Snapshot はセッションのコピーを返す。
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		User:            s.user.Clone(),
		Token:           s.token,
		IsAuthenticated: s.authed,
	}
}
