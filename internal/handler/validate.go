package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Byte-q/used-backend/internal/model"
)

// requestValidator はリクエストボディの構造体タグ検証を行う。
// エラーのフィールド名にはjsonタグの名前を使う。
var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate はJSONボディをdstに読み込み、validateタグで検証する。
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if apiErr := decodeJSON(r, dst, false); apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return false
	}
	if apiErr := validateRequest(dst); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return false
	}
	return true
}

// decodeJSON はリクエストボディをdstに読み込む。
// allowEmptyがtrueの場合、空のボディはエラーにしない。
func decodeJSON(r *http.Request, dst any, allowEmpty bool) *model.APIError {
	if r.Body == nil {
		if allowEmpty {
			return nil
		}
		return newInvalidRequestError()
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return newRequestTooLargeError()
	}
	return newInvalidRequestError()
}

// validateRequest は構造体を検証し、最初の違反をValidationエラーとして返す。
func validateRequest(v any) *model.APIError {
	err := requestValidator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return model.NewValidationError(fe.Field(), validationReason(fe))
	}
	return model.NewValidationError("", "invalid request")
}

func validationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
