package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Byte-q/used-backend/internal/auth"
	"github.com/Byte-q/used-backend/internal/model"
)

// SessionCookieName はセッションIDを格納するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストキーの型。パッケージ外との衝突を避けるため非公開型を使用する。
type contextKey string

const (
	userIDContextKey    contextKey = "user_id"
	principalContextKey contextKey = "principal"
	requestAuthKey      contextKey = "request_auth"
)

// Authenticator はリクエストの認証情報を認証主体に解決する。
// auth.Serviceが実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, creds auth.Credentials) (*model.Principal, error)
}

// requestAuth はロギングミドルウェアが外側から参照するための認証結果の受け皿。
type requestAuth struct {
	userID string
	method model.AuthMethod
}

// CredentialsFromRequest はCookieのセッションIDとAuthorizationヘッダーのベアラートークンを取り出す。
func CredentialsFromRequest(r *http.Request) auth.Credentials {
	var creds auth.Credentials
	if c, err := r.Cookie(SessionCookieName); err == nil {
		creds.SessionID = c.Value
	}
	creds.BearerToken = bearerToken(r.Header.Get("Authorization"))
	return creds
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// NewAuthenticateMiddleware はセッションCookieまたはベアラートークンで認証主体を解決し、
// コンテキストに格納するミドルウェアを返す。
// 認証できないリクエストも拒否せずに次へ渡す。拒否はRequireAuth/RequireAdminが行う。
func NewAuthenticateMiddleware(authn Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := CredentialsFromRequest(r)
			if creds.SessionID == "" && creds.BearerToken == "" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := authn.Authenticate(r.Context(), creds)
			if err != nil {
				slog.Error("failed to authenticate request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			}
			if principal == nil || principal.User == nil {
				next.ServeHTTP(w, r)
				return
			}

			if ra, ok := r.Context().Value(requestAuthKey).(*requestAuth); ok {
				ra.userID = principal.User.ID
				ra.method = principal.Method
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAuth は認証済みでないリクエストを401で拒否するミドルウェア。
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin は管理者以外のリクエストを拒否するミドルウェア。
// 未認証は401、権限不足は403を返す。
func RequireAdmin(next http.Handler) http.Handler {
	return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFromContext(r.Context())
		if !p.User.IsAdmin() {
			slog.Warn("admin access denied",
				slog.String("user_id", p.User.ID),
				slog.String("path", r.URL.Path),
			)
			WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// PrincipalFromContext はコンテキストから認証主体を取得する。
func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok || p == nil || p.User == nil {
		return nil, false
	}
	return p, true
}

// ContextWithPrincipal は認証主体とそのユーザーIDをコンテキストに設定する。
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	ctx = context.WithValue(ctx, principalContextKey, p)
	return ContextWithUserID(ctx, p.User.ID)
}

// UserIDFromContext はコンテキストからユーザーIDを取得する。
// ユーザーIDが存在しない場合はエラーを返す。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", errors.New("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はユーザーIDをコンテキストに設定する。テスト用にも使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
