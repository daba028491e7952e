// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Byte-q/used-backend/internal/auth"
	"github.com/Byte-q/used-backend/internal/middleware"
	"github.com/Byte-q/used-backend/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (*auth.LoginResult, error)
	EstablishSession(ctx context.Context, userID string) (*model.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.IssuedToken, error)
	Logout(ctx context.Context, refreshToken, sessionID string) error
	CurrentUser(ctx context.Context, creds auth.Credentials) (*model.User, error)
	Register(ctx context.Context, in auth.RegisterInput) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"fullName" validate:"max=100"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	AccessToken           string       `json:"accessToken"`
	AccessTokenExpiresAt  time.Time    `json:"accessTokenExpiresAt"`
	RefreshToken          string       `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time    `json:"refreshTokenExpiresAt"`
	User                  userResponse `json:"user"`
}

type refreshResponse struct {
	AccessToken          string    `json:"accessToken"`
	AccessTokenExpiresAt time.Time `json:"accessTokenExpiresAt"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func toLoginResponse(res *auth.LoginResult) loginResponse {
	return loginResponse{
		AccessToken:           res.AccessToken,
		AccessTokenExpiresAt:  res.AccessExpiresAt,
		RefreshToken:          res.RefreshToken,
		RefreshTokenExpiresAt: res.RefreshExpiresAt,
		User:                  toUserResponse(res.User),
	}
}

// Login はユーザー名とパスワードでトークンを発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLoginResponse(res))
}

// Session はログインに加えてセッションを作成し、セッションCookieを設定する。
// POST /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.service.EstablishSession(r.Context(), res.User.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.setSessionCookie(w, session)

	writeJSON(w, http.StatusOK, toLoginResponse(res))
}

// RefreshToken はリフレッシュトークンから新しいアクセストークンを発行する。
// リフレッシュトークン自体は再発行しない。
// POST /api/auth/refresh-token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	issued, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:          issued.Token,
		AccessTokenExpiresAt: issued.ExpiresAt,
	})
}

// Logout はリフレッシュトークンを失効させ、セッションを破棄する。
// 失効対象がなくても成功とし、セッションストアの失敗時のみ500を返す。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if apiErr := decodeJSON(r, &req, true); apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	sessionID := middleware.CredentialsFromRequest(r).SessionID
	err := h.service.Logout(r.Context(), req.RefreshToken, sessionID)

	// ログアウト処理の成否にかかわらずCookieはクリアする
	h.clearSessionCookie(w)

	var logoutErr *auth.LogoutError
	if errors.As(err, &logoutErr) {
		if logoutErr.RevokeErr != nil {
			slog.Error("failed to revoke refresh token on logout",
				slog.String("error", logoutErr.RevokeErr.Error()),
			)
		}
		if logoutErr.SessionErr != nil {
			slog.Error("failed to destroy session on logout",
				slog.String("error", logoutErr.SessionErr.Error()),
			)
			middleware.WriteInternalServerError(w)
			return
		}
	} else if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// Me は現在の認証済みユーザー情報を返す。セッションとベアラートークンの両方を受け付ける。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context(), middleware.CredentialsFromRequest(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Register はユーザーを登録し、セッションを作成してログイン状態にする。
// 公開エンドポイントのためロールは常にuserになる。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		ImageURL: req.ImageURL,
		Role:     model.RoleUser,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.service.EstablishSession(r.Context(), user.ID)
	if err != nil {
		// 登録自体は完了しているため、Cookieなしで201を返す
		slog.Warn("failed to establish session after registration",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	} else {
		h.setSessionCookie(w, session)
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
