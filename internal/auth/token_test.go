package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Byte-q/used-backend/internal/model"
)

type failingRegistry struct {
	err error
}

func (f *failingRegistry) Register(context.Context, string, string, time.Time) error { return f.err }
func (f *failingRegistry) IsValid(context.Context, string, string) (bool, error)    { return false, f.err }
func (f *failingRegistry) Revoke(context.Context, string) error                     { return f.err }
func (f *failingRegistry) PurgeExpired(context.Context) (int64, error)              { return 0, f.err }

func newTestIssuer(t *testing.T, registry RefreshTokenRegistry) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenConfig{
		Secret:     "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}, registry)
	require.NoError(t, err)
	return issuer
}

func TestTokenIssuer_AccessTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, NewMemoryRegistry())

	token, exp, err := issuer.IssueAccessToken("user-123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 2*time.Second)

	userID, err := issuer.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestTokenIssuer_RefreshTokenIsRegistered(t *testing.T) {
	ctx := context.Background()
	registry := NewMemoryRegistry()
	issuer := newTestIssuer(t, registry)

	token, _, err := issuer.IssueRefreshToken(ctx, "user-123")
	require.NoError(t, err)
	assert.Equal(t, 1, registry.Len())

	userID, err := issuer.VerifyRefreshToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)

	require.NoError(t, issuer.RevokeRefreshToken(ctx, token))
	_, err = issuer.VerifyRefreshToken(ctx, token)
	assert.True(t, errors.Is(err, model.ErrInvalidToken))
}

func TestTokenIssuer_ForgedUnregisteredRefreshTokenIsRejected(t *testing.T) {
	ctx := context.Background()
	issuer := newTestIssuer(t, NewMemoryRegistry())

	// 同じ鍵で署名された、構造的には正しいが登録されていないトークン
	now := time.Now()
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: uuid.NewString(),
		Type:   TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = issuer.VerifyRefreshToken(ctx, forged)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidToken))
}

func TestTokenIssuer_RefreshTokenBoundToDifferentUserIsRejected(t *testing.T) {
	ctx := context.Background()
	registry := NewMemoryRegistry()
	issuer := newTestIssuer(t, registry)

	token, exp, err := issuer.IssueRefreshToken(ctx, "user-a")
	require.NoError(t, err)
	// 登録簿上の所有者を書き換える
	require.NoError(t, registry.Register(ctx, token, "user-b", exp))

	_, err = issuer.VerifyRefreshToken(ctx, token)
	assert.True(t, errors.Is(err, model.ErrInvalidToken))
}

func TestTokenIssuer_TokenTypesAreNotInterchangeable(t *testing.T) {
	ctx := context.Background()
	issuer := newTestIssuer(t, NewMemoryRegistry())

	access, _, err := issuer.IssueAccessToken("u")
	require.NoError(t, err)
	refresh, _, err := issuer.IssueRefreshToken(ctx, "u")
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(refresh)
	assert.True(t, errors.Is(err, model.ErrInvalidToken))

	_, err = issuer.VerifyRefreshToken(ctx, access)
	assert.True(t, errors.Is(err, model.ErrInvalidToken))
}

func TestTokenIssuer_ExpiredTokenIsRejected(t *testing.T) {
	issuer := newTestIssuer(t, NewMemoryRegistry())
	issued := time.Now().Add(-time.Hour)
	issuer.now = func() time.Time { return issued }

	token, _, err := issuer.IssueAccessToken("u")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.VerifyAccessToken(token)
	assert.True(t, errors.Is(err, model.ErrInvalidToken))
}

func TestTokenIssuer_RejectsForeignSignatures(t *testing.T) {
	issuer := newTestIssuer(t, NewMemoryRegistry())

	other, err := NewTokenIssuer(TokenConfig{Secret: "other-secret"}, NewMemoryRegistry())
	require.NoError(t, err)
	token, _, err := other.IssueAccessToken("u")
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(token)
	assert.True(t, errors.Is(err, model.ErrInvalidToken))

	hs512, err := NewTokenIssuer(TokenConfig{Secret: "test-secret", Algorithm: "HS512"}, NewMemoryRegistry())
	require.NoError(t, err)
	token, _, err = hs512.IssueAccessToken("u")
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(token)
	assert.True(t, errors.Is(err, model.ErrInvalidToken), "アルゴリズム不一致は拒否する")

	userID, err := hs512.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u", userID)
}

func TestTokenIssuer_MalformedTokens(t *testing.T) {
	issuer := newTestIssuer(t, NewMemoryRegistry())

	for _, tok := range []string{"", "abc", "a.b.c", "Bearer xyz"} {
		_, err := issuer.VerifyAccessToken(tok)
		assert.True(t, errors.Is(err, model.ErrInvalidToken), "token %q", tok)
	}
}

func TestTokenIssuer_RegistryFailureIsStoreFailure(t *testing.T) {
	ctx := context.Background()
	registry := NewMemoryRegistry()
	issuer := newTestIssuer(t, registry)

	token, _, err := issuer.IssueRefreshToken(ctx, "u")
	require.NoError(t, err)

	issuer.registry = &failingRegistry{err: errors.New("connection refused")}
	_, err = issuer.VerifyRefreshToken(ctx, token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrStoreFailure))

	_, _, err = issuer.IssueRefreshToken(ctx, "u")
	assert.Error(t, err)
}

func TestNewTokenIssuer_Configuration(t *testing.T) {
	t.Run("未対応のアルゴリズムはエラー", func(t *testing.T) {
		for _, alg := range []string{"RS256", "none", "bogus"} {
			_, err := NewTokenIssuer(TokenConfig{Secret: "s", Algorithm: alg}, NewMemoryRegistry())
			assert.Error(t, err, alg)
		}
	})

	t.Run("登録簿は必須", func(t *testing.T) {
		_, err := NewTokenIssuer(TokenConfig{Secret: "s"}, nil)
		assert.Error(t, err)
	})

	t.Run("鍵未設定時は既定値を使う", func(t *testing.T) {
		issuer, err := NewTokenIssuer(TokenConfig{}, NewMemoryRegistry())
		require.NoError(t, err)
		assert.Equal(t, []byte(InsecureDefaultSecret), issuer.secret)
		assert.Equal(t, "HS256", issuer.method.Alg())
		assert.Equal(t, DefaultAccessTTL, issuer.accessTTL)
		assert.Equal(t, DefaultRefreshTTL, issuer.refreshTTL)
	})
}

func TestParseTTL(t *testing.T) {
	fallback := 42 * time.Second
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"900", 900 * time.Second},
		{" 30 ", 30 * time.Second},
		{"15m", 15 * time.Minute},
		{"2h", 2 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"", fallback},
		{"abc", fallback},
		{"10x", fallback},
		{"1.5h", fallback},
		{"m", fallback},
		{"0", fallback},
		{"-5", fallback},
		{"15s", fallback},
		{"+5", fallback},
		{"+5m", fallback},
		{"106751d", 106751 * 24 * time.Hour},
		{"106752d", fallback},
		{"213504d", fallback},
		{"9223372036854775808", fallback},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTTL(tt.in, fallback))
		})
	}
}
