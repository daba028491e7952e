package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Byte-q/used-backend/internal/middleware"
	"github.com/Byte-q/used-backend/internal/model"
)

const (
	errCodeInvalidRequest  = "INVALID_REQUEST"
	errCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode >= http.StatusInternalServerError {
			slog.Error("service error",
				slog.String("code", apiErr.Code),
				slog.String("error", err.Error()),
			)
		}
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials, model.ErrCodeInvalidToken, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeDuplicateIdentity, model.ErrCodeDuplicateSlug:
		return http.StatusConflict
	case model.ErrCodeUserNotFound, model.ErrCodePostNotFound, model.ErrCodeProductNotFound:
		return http.StatusNotFound
	case model.ErrCodeValidationFailed, errCodeInvalidRequest:
		return http.StatusBadRequest
	case errCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeStoreFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newInvalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     errCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

func newRequestTooLargeError() *model.APIError {
	return &model.APIError{
		Code:     errCodeRequestTooLarge,
		Message:  "リクエストボディが大きすぎます。",
		Category: "validation",
		Action:   "送信するデータを小さくしてください。",
	}
}
