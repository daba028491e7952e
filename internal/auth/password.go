package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong はハッシュ可能な長さを超えたパスワードを表す。
// 入力の問題であり、これ以外のHashエラーは致命的なものとして扱う。
var ErrPasswordTooLong = errors.New("password is too long")

// PasswordHasher はパスワードの一方向ハッシュと照合を行う。
type PasswordHasher interface {
	// Hash は平文からダイジェストを生成する。呼び出しごとに異なるソルトを使う。
	// 長すぎる入力にはErrPasswordTooLongを返す。
	Hash(plaintext string) (string, error)
	// Verify は平文がダイジェストに一致するかを返す。
	Verify(plaintext, digest string) bool
}

// BcryptHasher はbcryptによるPasswordHasherの実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。
// costがbcryptの許容範囲外の場合はbcrypt.DefaultCostを使う。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash はbcryptダイジェストを生成する。72バイトを超える入力はエラーになる。
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: %w", ErrPasswordTooLong, err)
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify は定数時間比較でダイジェストを照合する。
func (h *BcryptHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

var _ PasswordHasher = (*BcryptHasher)(nil)
