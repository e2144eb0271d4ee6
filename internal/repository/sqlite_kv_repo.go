package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteKVRepo はSQLiteを使用したキー・バリューリポジトリ。
// ローカル単一ユーザー運用の既定バックエンド。
type SQLiteKVRepo struct {
	db *sql.DB
}

// NewSQLiteKVRepo はSQLiteKVRepoを生成する。
func NewSQLiteKVRepo(db *sql.DB) *SQLiteKVRepo {
	return &SQLiteKVRepo{db: db}
}

// Get は指定キーの値を返す。見つからない場合はfound=falseを返す。
func (r *SQLiteKVRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = ?`,
		key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get kv entry: %w", err)
	}

	return []byte(value), true, nil
}

// Set は指定キーに値をUPSERTする。
func (r *SQLiteKVRepo) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE
		 SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set kv entry: %w", err)
	}
	return nil
}

// Delete は指定キーを削除する。
func (r *SQLiteKVRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE key = ?`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete kv entry: %w", err)
	}
	return nil
}

// compile-time interface check
var _ KVRepository = (*SQLiteKVRepo)(nil)
