// Package repository はデータ永続化のインターフェースと実装を提供する。
//
// 永続化は名前空間付きキーとJSON値のキー・バリュー形式で行う。
// 各ストアは自分の担当キーのみを書き込む。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// 永続化キー
const (
	KeySessions        = "unsaid-sessions"
	KeyCurrentSession  = "unsaid-current-session"
	KeyMemoryQuestions = "unsaid-memory-questions"
	KeySettings        = "unsaid-settings"
	KeyUser            = "unsaid-user"
	KeyUsage           = "unsaid-usage"
	KeyMemories        = "unsaid-memories"
)

// AllKeys は全永続化キーを返す。
func AllKeys() []string {
	return []string{
		KeySessions,
		KeyCurrentSession,
		KeyMemoryQuestions,
		KeySettings,
		KeyUser,
		KeyUsage,
		KeyMemories,
	}
}

// ErrPersistence は永続化層の読み書き失敗を表す。
// 呼び出し側はerrors.Isで判定し、非致命的な通知として扱う。
var ErrPersistence = errors.New("persistence failure")

// ErrCorrupted は保存済みの値がJSONとして解釈できないことを表す。
var ErrCorrupted = errors.New("corrupted value")

// KVRepository はキー・バリュー形式の永続化インターフェース。
type KVRepository interface {
	// Get は指定キーの値を返す。存在しない場合はfound=falseを返す。
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set は指定キーに値を書き込む。既存の値は上書きする。
	Set(ctx context.Context, key string, value []byte) error

	// Delete は指定キーを削除する。存在しない場合もエラーにならない。
	Delete(ctx context.Context, key string) error
}

// GetJSON は指定キーの値をJSONとしてvにデコードする。
// 値が存在しない場合はfalseを返し、vは変更しない。
func GetJSON(ctx context.Context, repo KVRepository, key string, v any) (bool, error) {
	raw, found, err := repo.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: failed to read %s: %v", ErrPersistence, key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupted, key, err)
	}
	return true, nil
}

// SetJSON はvをJSONにエンコードして指定キーに書き込む。
func SetJSON(ctx context.Context, repo KVRepository, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := repo.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", ErrPersistence, key, err)
	}
	return nil
}

// DeleteKeys は複数キーを順に削除する。
func DeleteKeys(ctx context.Context, repo KVRepository, keys ...string) error {
	for _, key := range keys {
		if err := repo.Delete(ctx, key); err != nil {
			return fmt.Errorf("%w: failed to delete %s: %v", ErrPersistence, key, err)
		}
	}
	return nil
}
