// Package user はユーザー管理（管理者向けCRUD）のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Byte-q/used-backend/internal/auth"
	"github.com/Byte-q/used-backend/internal/model"
	"github.com/Byte-q/used-backend/internal/repository"
)

// Registrar はパスワードをハッシュ化してユーザーを作成する。
type Registrar interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.User, error)
}

// TokenRevoker はユーザー単位でリフレッシュトークンを失効させる。
type TokenRevoker interface {
	RevokeByUserID(ctx context.Context, userID string) error
}

// UpdateInput はユーザー更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Username *string
	Email    *string
	Password *string
	FullName *string
	ImageURL *string
	Role     *model.Role
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	registrar   Registrar
	hasher      auth.PasswordHasher
	revoker     TokenRevoker
}

// NewService はServiceの新しいインスタンスを生成する。
// revokerはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	registrar Registrar,
	hasher auth.PasswordHasher,
	revoker TokenRevoker,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		registrar:   registrar,
		hasher:      hasher,
		revoker:     revoker,
	}
}

// List は全ユーザーを返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, model.NewStoreFailureError(fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err))
	}
	return users, nil
}

// Get は指定IDのユーザーを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStoreFailureError(fmt.Errorf("ユーザーの取得に失敗しました: %w", err))
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// GetByUsername はユーザー名でユーザーを返す。
func (s *Service) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, model.NewStoreFailureError(fmt.Errorf("ユーザーの取得に失敗しました: %w", err))
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Create は管理者によるユーザー作成。登録処理と同じ経路でパスワードをハッシュ化する。
func (s *Service) Create(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
	return s.registrar.Register(ctx, in)
}

// Update はユーザーを部分更新する。
// ユーザー名・メールアドレスを変更する場合は他ユーザーとの重複を確認する。
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Username != nil && *in.Username != user.Username {
		if err := s.ensureUnique(ctx, user.ID, "username", *in.Username); err != nil {
			return nil, err
		}
		user.Username = *in.Username
	}
	if in.Email != nil && *in.Email != user.Email {
		if err := s.ensureUnique(ctx, user.ID, "email", *in.Email); err != nil {
			return nil, err
		}
		user.Email = *in.Email
	}
	if in.FullName != nil {
		user.FullName = *in.FullName
	}
	if in.ImageURL != nil {
		user.ImageURL = *in.ImageURL
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, model.NewValidationError("role", "unknown role")
		}
		user.Role = *in.Role
	}
	if in.Password != nil {
		digest, err := s.hasher.Hash(*in.Password)
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, model.NewValidationError("password", "password is too long")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = digest
	}

	updated, err := s.userRepo.Update(ctx, user)
	if err != nil {
		var dup *repository.DuplicateKeyError
		if errors.As(err, &dup) {
			return nil, model.NewDuplicateIdentityError(dup.Field)
		}
		return nil, model.NewStoreFailureError(fmt.Errorf("ユーザーの更新に失敗しました: %w", err))
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("ユーザーを更新しました", slog.String("user_id", updated.ID))
	return updated, nil
}

// Delete はユーザーを削除する。
// 削除順序: refresh tokens → sessions → user
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	slog.Info("ユーザー削除を開始します", slog.String("user_id", id))

	if s.revoker != nil {
		if err := s.revoker.RevokeByUserID(ctx, id); err != nil {
			return model.NewStoreFailureError(fmt.Errorf("リフレッシュトークンの失効に失敗しました: %w", err))
		}
	}

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, id); err != nil {
			return model.NewStoreFailureError(fmt.Errorf("セッションの削除に失敗しました: %w", err))
		}
	}

	deleted, err := s.userRepo.DeleteByID(ctx, id)
	if err != nil {
		return model.NewStoreFailureError(fmt.Errorf("ユーザーの削除に失敗しました: %w", err))
	}
	if !deleted {
		return model.NewUserNotFoundError()
	}

	slog.Info("ユーザー削除が完了しました", slog.String("user_id", id))
	return nil
}

func (s *Service) ensureUnique(ctx context.Context, selfID, field, value string) error {
	var (
		other *model.User
		err   error
	)
	if field == "email" {
		other, err = s.userRepo.FindByEmail(ctx, value)
	} else {
		other, err = s.userRepo.FindByUsername(ctx, value)
	}
	if err != nil {
		return model.NewStoreFailureError(fmt.Errorf("ユーザーの取得に失敗しました: %w", err))
	}
	if other != nil && other.ID != selfID {
		return model.NewDuplicateIdentityError(field)
	}
	return nil
}
