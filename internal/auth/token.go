package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Byte-q/used-backend/internal/model"
)

// InsecureDefaultSecret はJWT_SECRET未設定時に使う署名鍵。開発用途専用。
const InsecureDefaultSecret = "used-backend-insecure-development-secret"

const (
	// DefaultAccessTTL はアクセストークンの既定有効期間。
	DefaultAccessTTL = 900 * time.Second
	// DefaultRefreshTTL はリフレッシュトークンの既定有効期間。
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenType はトークンの用途を表す。
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims はトークンのペイロード。
type Claims struct {
	UserID string    `json:"id"`
	Type   TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// TokenConfig はトークン発行の設定。
type TokenConfig struct {
	Secret     string
	Algorithm  string // HS256, HS384, HS512
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenIssuer はアクセストークンとリフレッシュトークンを発行・検証する。
type TokenIssuer struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	registry   RefreshTokenRegistry
	now        func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
// Secretが空の場合はInsecureDefaultSecretを使い、警告ログを出す。
func NewTokenIssuer(cfg TokenConfig, registry RefreshTokenRegistry) (*TokenIssuer, error) {
	if registry == nil {
		return nil, errors.New("refresh token registry is required")
	}

	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm: %q", cfg.Algorithm)
	}

	secret := cfg.Secret
	if secret == "" {
		slog.Warn("JWT_SECRET is not set; using insecure default signing secret")
		secret = InsecureDefaultSecret
	}

	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}

	return &TokenIssuer{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		registry:   registry,
		now:        time.Now,
	}, nil
}

// IssueAccessToken はアクセストークンを発行する。
func (i *TokenIssuer) IssueAccessToken(userID string) (string, time.Time, error) {
	return i.sign(userID, TokenTypeAccess, i.accessTTL)
}

// IssueRefreshToken はリフレッシュトークンを発行し、登録簿に登録する。
func (i *TokenIssuer) IssueRefreshToken(ctx context.Context, userID string) (string, time.Time, error) {
	token, expiresAt, err := i.sign(userID, TokenTypeRefresh, i.refreshTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := i.registry.Register(ctx, token, userID, expiresAt); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to register refresh token: %w", err)
	}
	return token, expiresAt, nil
}

// VerifyAccessToken は署名と有効期限を検証し、ユーザーIDを返す。
// リフレッシュトークンはアクセストークンとして受け付けない。
func (i *TokenIssuer) VerifyAccessToken(token string) (string, error) {
	claims, err := i.parse(token, TokenTypeAccess)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// VerifyRefreshToken は署名と有効期限に加えて、登録簿に同じユーザーIDで
// 登録されていることを検証する。
func (i *TokenIssuer) VerifyRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := i.parse(token, TokenTypeRefresh)
	if err != nil {
		return "", err
	}
	ok, err := i.registry.IsValid(ctx, token, claims.UserID)
	if err != nil {
		return "", model.NewStoreFailureError(fmt.Errorf("failed to check refresh token: %w", err))
	}
	if !ok {
		return "", model.NewInvalidTokenError()
	}
	return claims.UserID, nil
}

// RevokeRefreshToken はリフレッシュトークンを登録簿から削除する。
func (i *TokenIssuer) RevokeRefreshToken(ctx context.Context, token string) error {
	return i.registry.Revoke(ctx, token)
}

func (i *TokenIssuer) sign(userID string, typ TokenType, ttl time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user ID is required")
	}
	now := i.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, expiresAt, nil
}

func (i *TokenIssuer) parse(token string, want TokenType) (*Claims, error) {
	if token == "" {
		return nil, model.NewInvalidTokenError()
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		invalid := model.NewInvalidTokenError()
		invalid.Err = err
		return nil, invalid
	}
	if claims.Type != want || claims.UserID == "" {
		return nil, model.NewInvalidTokenError()
	}
	return claims, nil
}

// ParseTTL は有効期間の文字列を解釈する。
// 整数のみは秒、末尾m/h/dはそれぞれ分・時間・日。
// 符号付き・解釈できない・0以下・time.Durationに収まらない値の場合はfallbackを返す。
func ParseTTL(s string, fallback time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}

	unit := time.Second
	digits := s
	switch s[len(s)-1] {
	case 'm':
		unit = time.Minute
		digits = s[:len(s)-1]
	case 'h':
		unit = time.Hour
		digits = s[:len(s)-1]
	case 'd':
		unit = 24 * time.Hour
		digits = s[:len(s)-1]
	}

	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return fallback
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 || n > math.MaxInt64/int64(unit) {
		return fallback
	}
	return time.Duration(n) * unit
}
