package repository

import (
	"context"
	"sync"
)

// MemoryTokenRepo はプロセス内メモリにトークンを保持するリポジトリ。
// TOKEN_STORE=memory とテストで使用する。
type MemoryTokenRepo struct {
	mu    sync.Mutex
	token string
}

// NewMemoryTokenRepo は初期トークンを指定してMemoryTokenRepoを生成する。
func NewMemoryTokenRepo(initial string) *MemoryTokenRepo {
	return &MemoryTokenRepo{token: initial}
}

func (r *MemoryTokenRepo) Load(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token, nil
}

func (r *MemoryTokenRepo) Save(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
	return nil
}

func (r *MemoryTokenRepo) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = ""
	return nil
}

var _ TokenRepository = (*MemoryTokenRepo)(nil)
