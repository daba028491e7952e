// Package repository はデータ永続化のインターフェースと実装を提供する。
// ユーザー・記事・商品はMongoDB、セッションとリフレッシュトークンはPostgreSQLに保存する。
package repository

import (
	"context"
	"time"

	"github.com/Byte-q/used-backend/internal/model"
)

// UserRepository はユーザー（認証主体）の永続化インターフェース。
// 見つからない場合はエラーではなくnilを返す。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByUsername はユーザー名の完全一致で検索する。
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	// FindByEmail はメールアドレスの完全一致で検索する。大文字小文字は区別する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// List は全ユーザーを作成日時の降順で返す。
	List(ctx context.Context) ([]*model.User, error)
	// Create はユーザーを作成し、採番したIDをuser.IDに設定する。
	// 一意制約違反の場合は*DuplicateKeyErrorを返す。
	Create(ctx context.Context, user *model.User) error
	// Update はユーザーの可変フィールドを更新し、更新後の値を返す。
	Update(ctx context.Context, user *model.User) (*model.User, error)
	// DeleteByID は指定IDのユーザーを削除する。削除できた場合はtrueを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// PostRepository は記事の永続化インターフェース。
type PostRepository interface {
	FindByID(ctx context.Context, id string) (*model.Post, error)
	FindBySlug(ctx context.Context, slug string) (*model.Post, error)
	// List は条件に一致する記事を作成日時の降順で返す。
	List(ctx context.Context, filter model.PostFilter) ([]*model.Post, error)
	// Count は条件に一致する記事数を返す。Limit/Offsetは無視する。
	Count(ctx context.Context, filter model.PostFilter) (int64, error)
	Create(ctx context.Context, post *model.Post) error
	Update(ctx context.Context, post *model.Post) (*model.Post, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	// IncrementViews は閲覧数を1増やす。対象が存在した場合はtrueを返す。
	IncrementViews(ctx context.Context, id string) (bool, error)
}

// ProductRepository は商品の永続化インターフェース。
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (*model.Product, error)
	// List は全商品を作成日時の降順で返す。
	List(ctx context.Context) ([]*model.Product, error)
	Create(ctx context.Context, product *model.Product) error
	Update(ctx context.Context, product *model.Product) (*model.Product, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// RefreshTokenStore はリフレッシュトークン登録簿の永続化インターフェース。
// auth.RefreshTokenRegistryの永続化版として使用する。
type RefreshTokenStore interface {
	Register(ctx context.Context, token, userID string, expiresAt time.Time) error
	IsValid(ctx context.Context, token, userID string) (bool, error)
	Revoke(ctx context.Context, token string) error
	PurgeExpired(ctx context.Context) (int64, error)
}
