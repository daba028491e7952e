package auth

import (
	"context"
	"sync"
	"time"
)

// RefreshTokenRegistry は有効なリフレッシュトークンとユーザーIDの対応を管理する。
// 失効させたトークンは以後IsValidでfalseになる。
type RefreshTokenRegistry interface {
	// Register はトークンをユーザーIDに対応付けて登録する。
	Register(ctx context.Context, token, userID string, expiresAt time.Time) error
	// IsValid はトークンが登録済み・期限内で、userIDに対応付けられているかを返す。
	IsValid(ctx context.Context, token, userID string) (bool, error)
	// Revoke はトークンを削除する。未登録のトークンに対しても成功する。
	Revoke(ctx context.Context, token string) error
	// PurgeExpired は期限切れのエントリを削除し、削除件数を返す。
	PurgeExpired(ctx context.Context) (int64, error)
}

type registryEntry struct {
	userID    string
	expiresAt time.Time
}

// MemoryRegistry はプロセス内メモリのRefreshTokenRegistry。
// プロセス再起動で全トークンが失われる。
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
	now     func() time.Time
}

// NewMemoryRegistry は空のMemoryRegistryを生成する。
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]registryEntry),
		now:     time.Now,
	}
}

// Register はトークンを登録する。同一トークンは上書きされる。
func (r *MemoryRegistry) Register(_ context.Context, token, userID string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[token] = registryEntry{userID: userID, expiresAt: expiresAt}
	return nil
}

// IsValid はトークンの有効性を返す。
func (r *MemoryRegistry) IsValid(_ context.Context, token, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[token]
	if !ok {
		return false, nil
	}
	return e.userID == userID && r.now().Before(e.expiresAt), nil
}

// Revoke はトークンを削除する。
func (r *MemoryRegistry) Revoke(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, token)
	return nil
}

// PurgeExpired は期限切れのトークンを削除する。
func (r *MemoryRegistry) PurgeExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var n int64
	for token, e := range r.entries {
		if !now.Before(e.expiresAt) {
			delete(r.entries, token)
			n++
		}
	}
	return n, nil
}

// RevokeByUserID は指定ユーザーの全トークンを削除する。
func (r *MemoryRegistry) RevokeByUserID(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, e := range r.entries {
		if e.userID == userID {
			delete(r.entries, token)
		}
	}
	return nil
}

// Len は登録中のトークン数を返す。
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

var _ RefreshTokenRegistry = (*MemoryRegistry)(nil)
