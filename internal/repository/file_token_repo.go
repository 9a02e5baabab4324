package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileTokenRepo はJSONファイルにトークンを保存するリポジトリ。
// 書き込みは一時ファイルからのリネームで行い、途中状態のファイルを残さない。
type FileTokenRepo struct {
	path string
	mu   sync.Mutex
}

type tokenFile struct {
	Token string `json:"token"`
}

// NewFileTokenRepo はFileTokenRepoを生成する。
func NewFileTokenRepo(path string) *FileTokenRepo {
	return &FileTokenRepo{path: path}
}

// Load はファイルからトークンを読み込む。ファイルがない場合は空文字列を返す。
func (r *FileTokenRepo) Load(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	var f tokenFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("failed to parse token file: %w", err)
	}
	return f.Token, nil
}

// Save はトークンをファイルに書き込む（パーミッション0600）。
func (r *FileTokenRepo) Save(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(tokenFile{Token: token})
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// Clear はトークンファイルを削除する。
func (r *FileTokenRepo) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

var _ TokenRepository = (*FileTokenRepo)(nil)
