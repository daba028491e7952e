package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, content, system
	Action   string // ユーザー向け対処方法
	Field    string // 重複・検証エラーの対象フィールド（任意）
	Err      error  // 原因エラー（レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is はエラーコードが一致すれば同一種別のエラーとみなす。
// errors.Is(err, model.ErrInvalidCredentials) の形で判定できる。
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeDuplicateIdentity  = "DUPLICATE_IDENTITY"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeDuplicateSlug      = "DUPLICATE_SLUG"
	ErrCodeStoreFailure       = "STORE_FAILURE"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// 種別判定用のセンチネル。errors.Isの比較対象としてのみ使う。
var (
	ErrInvalidCredentials = &APIError{Code: ErrCodeInvalidCredentials}
	ErrInvalidToken       = &APIError{Code: ErrCodeInvalidToken}
	ErrDuplicateIdentity  = &APIError{Code: ErrCodeDuplicateIdentity}
	ErrStoreFailure       = &APIError{Code: ErrCodeStoreFailure}
)

// ErrDuplicateKey はリポジトリ層で一意制約違反を表す。
// サービス層でNewDuplicateIdentityError等に変換する。
var ErrDuplicateKey = errors.New("duplicate key")

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// ユーザー不在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewInvalidTokenError はトークン検証失敗エラーを生成する。
// 署名不正・期限切れ・失効済みを区別しない。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "トークンが無効または期限切れです。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewDuplicateIdentityError はユーザー名またはメールアドレスの重複エラーを生成する。
func NewDuplicateIdentityError(field string) *APIError {
	msg := "このユーザー名は既に使用されています。"
	if field == "email" {
		msg = "このメールアドレスは既に登録されています。"
	}
	return &APIError{
		Code:     ErrCodeDuplicateIdentity,
		Message:  msg,
		Category: "validation",
		Action:   "別の値を指定してください。",
		Field:    field,
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
		Field:    field,
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "content",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewPostNotFoundError は記事が見つからない場合のエラーを生成する。
func NewPostNotFoundError(key string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", key),
		Category: "content",
		Action:   "記事IDまたはスラッグを確認してください。",
	}
}

// NewProductNotFoundError は商品が見つからない場合のエラーを生成する。
func NewProductNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", id),
		Category: "content",
		Action:   "商品IDを確認してください。",
	}
}

// NewDuplicateSlugError はスラッグ重複エラーを生成する。
func NewDuplicateSlugError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSlug,
		Message:  fmt.Sprintf("このスラッグは既に使用されています: %s", slug),
		Category: "validation",
		Action:   "別のスラッグを指定してください。",
		Field:    "slug",
	}
}

// NewStoreFailureError はデータストアへのアクセス失敗エラーを生成する。
// 原因エラーはログ用に保持し、レスポンスには含めない。
func NewStoreFailureError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeStoreFailure,
		Message:  "データストアへのアクセスに失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      err,
	}
}
