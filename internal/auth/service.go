// Package auth はパスワード認証、アクセストークン・リフレッシュトークンの発行と検証、
// セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Byte-q/used-backend/internal/model"
	"github.com/Byte-q/used-backend/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Recorder は認証イベントの計測を行う。
// resultは "success", "failure", "duplicate", "error" のいずれか。
type Recorder interface {
	RecordLogin(result string)
	RecordRefresh(result string)
	RecordRegistration(result string)
}

type noopRecorder struct{}

func (noopRecorder) RecordLogin(string)        {}
func (noopRecorder) RecordRefresh(string)      {}
func (noopRecorder) RecordRegistration(string) {}

// LoginResult はログイン成功時に返すユーザーとトークンの組。
type LoginResult struct {
	User             *model.User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// IssuedToken は単一のトークンと有効期限。
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// Credentials はリクエストから取り出した認証情報。どちらも空でよい。
type Credentials struct {
	SessionID   string
	BearerToken string
}

// RegisterInput はユーザー登録の入力。Roleが空の場合はuserになる。
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
	ImageURL string
	Role     model.Role
}

// LogoutError はログアウト処理の部分的な失敗を表す。
// トークン失効とセッション破棄の失敗を個別に保持する。
type LogoutError struct {
	RevokeErr  error
	SessionErr error
}

func (e *LogoutError) Error() string {
	var parts []string
	if e.RevokeErr != nil {
		parts = append(parts, "revoke refresh token: "+e.RevokeErr.Error())
	}
	if e.SessionErr != nil {
		parts = append(parts, "destroy session: "+e.SessionErr.Error())
	}
	return "logout failed: " + strings.Join(parts, "; ")
}

func (e *LogoutError) Unwrap() []error {
	var errs []error
	if e.RevokeErr != nil {
		errs = append(errs, e.RevokeErr)
	}
	if e.SessionErr != nil {
		errs = append(errs, e.SessionErr)
	}
	return errs
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	hasher      PasswordHasher
	tokens      *TokenIssuer
	config      ServiceConfig
	recorder    Recorder

	dummyOnce   sync.Once
	dummyDigest string
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	hasher PasswordHasher,
	tokens *TokenIssuer,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		tokens:      tokens,
		config:      config,
		recorder:    noopRecorder{},
	}
}

// SetRecorder はメトリクス記録先を設定する。
func (s *Service) SetRecorder(r Recorder) {
	if r == nil {
		r = noopRecorder{}
	}
	s.recorder = r
}

// Login はユーザー名とパスワードを検証し、アクセストークンとリフレッシュトークンを発行する。
// ユーザーが存在しない場合もパスワード不一致と同じInvalidCredentialsを返す。
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		s.recorder.RecordLogin("error")
		return nil, model.NewStoreFailureError(fmt.Errorf("failed to find user: %w", err))
	}

	if user == nil {
		// 応答時間からユーザーの有無を推測されないよう照合だけは行う
		s.hasher.Verify(password, s.timingDigest())
		s.recorder.RecordLogin("failure")
		return nil, model.NewInvalidCredentialsError()
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.recorder.RecordLogin("failure")
		slog.Info("login rejected", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	access, accessExp, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		s.recorder.RecordLogin("error")
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, refreshExp, err := s.tokens.IssueRefreshToken(ctx, user.ID)
	if err != nil {
		s.recorder.RecordLogin("error")
		return nil, model.NewStoreFailureError(err)
	}

	s.recorder.RecordLogin("success")
	slog.Info("user logged in", slog.String("user_id", user.ID))

	return &LoginResult{
		User:             user,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// EstablishSession はユーザーのサーバー側セッションを作成する。
func (s *Service) EstablishSession(ctx context.Context, userID string) (*model.Session, error) {
	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, model.NewStoreFailureError(err)
	}
	return session, nil
}

// Refresh はリフレッシュトークンを検証し、新しいアクセストークンのみを発行する。
// リフレッシュトークン自体はローテーションせず、期限切れかログアウトまで有効なまま残る。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*IssuedToken, error) {
	userID, err := s.tokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, model.ErrInvalidToken) {
			s.recorder.RecordRefresh("failure")
		} else {
			s.recorder.RecordRefresh("error")
		}
		return nil, err
	}

	token, expiresAt, err := s.tokens.IssueAccessToken(userID)
	if err != nil {
		s.recorder.RecordRefresh("error")
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	s.recorder.RecordRefresh("success")
	return &IssuedToken{Token: token, ExpiresAt: expiresAt}, nil
}

// Logout はリフレッシュトークンの失効とセッションの破棄を行う。
// 両方を独立して試み、失敗した場合は*LogoutErrorで個別に報告する。
// 未登録のトークンや存在しないセッションはエラーにならない。
func (s *Service) Logout(ctx context.Context, refreshToken, sessionID string) error {
	var lerr LogoutError

	if refreshToken != "" {
		if err := s.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
			lerr.RevokeErr = fmt.Errorf("failed to revoke refresh token: %w", err)
		}
	}
	if sessionID != "" {
		if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
			lerr.SessionErr = fmt.Errorf("failed to delete session: %w", err)
		}
	}

	if lerr.RevokeErr != nil || lerr.SessionErr != nil {
		return &lerr
	}
	slog.Info("user logged out",
		slog.Bool("token_revoked", refreshToken != ""),
		slog.Bool("session_destroyed", sessionID != ""),
	)
	return nil
}

// Authenticate はセッション、ベアラートークンの順に認証情報を解決する。
// どちらでも解決できない場合は(nil, nil)を返す。
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (*model.Principal, error) {
	if creds.SessionID != "" {
		session, err := s.sessionRepo.FindByID(ctx, creds.SessionID)
		if err != nil {
			return nil, model.NewStoreFailureError(fmt.Errorf("failed to find session: %w", err))
		}
		if session != nil {
			user, err := s.userRepo.FindByID(ctx, session.UserID)
			if err != nil {
				return nil, model.NewStoreFailureError(fmt.Errorf("failed to find user: %w", err))
			}
			if user != nil {
				return &model.Principal{
					User:      user,
					Method:    model.AuthMethodSession,
					SessionID: session.ID,
				}, nil
			}
		}
	}

	if creds.BearerToken != "" {
		userID, err := s.tokens.VerifyAccessToken(creds.BearerToken)
		if err != nil {
			return nil, nil
		}
		user, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return nil, model.NewStoreFailureError(fmt.Errorf("failed to find user: %w", err))
		}
		if user != nil {
			return &model.Principal{User: user, Method: model.AuthMethodBearer}, nil
		}
	}

	return nil, nil
}

// CurrentUser は認証済みユーザーを返す。未認証の場合は(nil, nil)。
func (s *Service) CurrentUser(ctx context.Context, creds Credentials) (*model.User, error) {
	p, err := s.Authenticate(ctx, creds)
	if err != nil || p == nil {
		return nil, err
	}
	return p.User, nil
}

// Register はユーザー名・メールアドレスの重複を確認し、パスワードをハッシュ化して
// ユーザーを作成する。重複時はDuplicateIdentityを返し、ストアは変更しない。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	existing, err := s.userRepo.FindByUsername(ctx, in.Username)
	if err != nil {
		s.recorder.RecordRegistration("error")
		return nil, model.NewStoreFailureError(fmt.Errorf("failed to find user: %w", err))
	}
	if existing != nil {
		s.recorder.RecordRegistration("duplicate")
		return nil, model.NewDuplicateIdentityError("username")
	}

	existing, err = s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		s.recorder.RecordRegistration("error")
		return nil, model.NewStoreFailureError(fmt.Errorf("failed to find user: %w", err))
	}
	if existing != nil {
		s.recorder.RecordRegistration("duplicate")
		return nil, model.NewDuplicateIdentityError("email")
	}

	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		s.recorder.RecordRegistration("failure")
		return nil, model.NewValidationError("role", "unknown role")
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.recorder.RecordRegistration("failure")
		if errors.Is(err, ErrPasswordTooLong) {
			return nil, model.NewValidationError("password", "password is too long")
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: digest,
		FullName:     in.FullName,
		ImageURL:     in.ImageURL,
		Role:         role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		var dup *repository.DuplicateKeyError
		if errors.As(err, &dup) {
			s.recorder.RecordRegistration("duplicate")
			field := dup.Field
			if field == "" {
				field = "username"
			}
			return nil, model.NewDuplicateIdentityError(field)
		}
		s.recorder.RecordRegistration("error")
		return nil, model.NewStoreFailureError(fmt.Errorf("failed to create user: %w", err))
	}

	s.recorder.RecordRegistration("success")
	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// timingDigest はユーザー不在時の照合に使うダミーのダイジェストを返す。
func (s *Service) timingDigest() string {
	s.dummyOnce.Do(func() {
		d, err := s.hasher.Hash("used-backend-timing-equalizer")
		if err == nil {
			s.dummyDigest = d
		}
	})
	return s.dummyDigest
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
