package repository

import (
	"context"
	"sync"
)

// MemoryKVRepo はプロセス内メモリを使用したキー・バリューリポジトリ。
// テストと揮発的な開発用途向け。
type MemoryKVRepo struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKVRepo はMemoryKVRepoを生成する。
func NewMemoryKVRepo() *MemoryKVRepo {
	return &MemoryKVRepo{data: make(map[string][]byte)}
}

// Get は指定キーの値のコピーを返す。
func (r *MemoryKVRepo) Get(_ context.Context, key string) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set は指定キーに値のコピーを書き込む。
func (r *MemoryKVRepo) Set(_ context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	r.data[key] = v
	return nil
}

// Delete は指定キーを削除する。
func (r *MemoryKVRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.data, key)
	return nil
}

// Len は保持しているキー数を返す。テスト用。
func (r *MemoryKVRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// compile-time interface check
var _ KVRepository = (*MemoryKVRepo)(nil)
