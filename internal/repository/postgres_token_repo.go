package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresTokenRepo はPostgreSQLのclient_stateテーブルを使用したトークンリポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// Load は保存済みトークンを返す。行がない場合は空文字列を返す。
func (r *PostgresTokenRepo) Load(ctx context.Context) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM client_state WHERE key = $1`,
		TokenKey,
	).Scan(&token)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

// Save はトークンをUPSERTで保存する。
func (r *PostgresTokenRepo) Save(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO client_state (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		TokenKey, token,
	)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Clear はトークンの行を削除する。
func (r *PostgresTokenRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM client_state WHERE key = $1`,
		TokenKey,
	)
	if err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
