// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限区分を表す。
type Role string

const (
	// RoleUser は一般ユーザー。
	RoleUser Role = "user"
	// RoleAdmin は管理者。
	RoleAdmin Role = "admin"
)

// Valid は定義済みのロールかどうかを返す。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User はサービス利用ユーザー（認証主体）を表す。
// PasswordHashはbcryptダイジェストであり、APIレスポンスには含めない。
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	ImageURL     string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin は管理者ロールかどうかを返す。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// AuthMethod はリクエストがどの方式で認証されたかを表す。
type AuthMethod string

const (
	AuthMethodNone    AuthMethod = ""
	AuthMethodSession AuthMethod = "session"
	AuthMethodBearer  AuthMethod = "bearer"
)

// Principal は認証済みリクエストの主体を表す。
type Principal struct {
	User      *User
	Method    AuthMethod
	SessionID string
}
