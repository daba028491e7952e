package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// PostgresRefreshTokenRepo はPostgreSQLを使用したリフレッシュトークン登録簿。
// プロセス再起動後もトークンを有効に保つ場合に使用する。
// トークン文字列そのものではなくSHA-256ダイジェストをキーとして保存する。
type PostgresRefreshTokenRepo struct {
	db *sql.DB
}

// NewPostgresRefreshTokenRepo はPostgresRefreshTokenRepoを生成する。
func NewPostgresRefreshTokenRepo(db *sql.DB) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: db}
}

// Register はトークンとユーザーIDの対応を登録する。
// 同一トークンが既に登録されている場合は上書きする。
func (r *PostgresRefreshTokenRepo) Register(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (token_hash) DO UPDATE
		 SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at`,
		hashToken(token), userID, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to register refresh token: %w", err)
	}
	return nil
}

// IsValid はトークンが登録済みかつ期限内で、指定ユーザーに対応付けられているかを返す。
func (r *PostgresRefreshTokenRepo) IsValid(ctx context.Context, token, userID string) (bool, error) {
	var owner string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM refresh_tokens
		 WHERE token_hash = $1 AND expires_at > now()`,
		hashToken(token),
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	return owner == userID, nil
}

// Revoke はトークンを登録簿から削除する。未登録のトークンでもエラーにならない。
func (r *PostgresRefreshTokenRepo) Revoke(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = $1`,
		hashToken(token),
	)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeByUserID は指定ユーザーの全トークンを削除する。
func (r *PostgresRefreshTokenRepo) RevokeByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke user refresh tokens: %w", err)
	}
	return nil
}

// PurgeExpired は期限切れのトークンを削除し、削除件数を返す。
func (r *PostgresRefreshTokenRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purged count: %w", err)
	}
	return n, nil
}

// hashToken はトークン文字列のSHA-256ダイジェストを16進文字列で返す。
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// compile-time interface check
var _ RefreshTokenStore = (*PostgresRefreshTokenRepo)(nil)
