package repository

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Byte-q/used-backend/internal/model"
)

// ErrMalformedDocument は必須フィールドを欠いたドキュメントを読み込んだ場合のエラー。
var ErrMalformedDocument = errors.New("malformed document")

// DuplicateKeyError は一意インデックス違反を表す。
// Fieldには違反したキー名（username, email, slug）が入る。判別できない場合は空。
type DuplicateKeyError struct {
	Field string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	if e.Field == "" {
		return "duplicate key"
	}
	return fmt.Sprintf("duplicate key: %s", e.Field)
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

// Is はmodel.ErrDuplicateKeyとの比較でtrueを返す。
func (e *DuplicateKeyError) Is(target error) bool {
	return target == model.ErrDuplicateKey
}

// uniqueIndexFields はインデックス名とフィールド名の対応。
var uniqueIndexFields = map[string]string{
	"uniq_username": "username",
	"uniq_email":    "email",
	"uniq_slug":     "slug",
}

// translateWriteError はドライバの一意制約違反（コード11000）をDuplicateKeyErrorに変換する。
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	field := ""
	msg := err.Error()
	for index, f := range uniqueIndexFields {
		if strings.Contains(msg, index) {
			field = f
			break
		}
	}
	return &DuplicateKeyError{Field: field, Err: err}
}

// parseObjectID は16進文字列をObjectIDに変換する。
// 不正な形式の場合はfalseを返し、呼び出し側は「見つからない」として扱う。
func parseObjectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}
