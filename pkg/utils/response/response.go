// Package response 定义 HTTP API 的统一响应结构。
package response

import (
	"net/http"

	"github.com/kart-io/ai-router/pkg/utils/errors"
)

// Response 统一响应结构，Code 为 0 表示成功。
type Response struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	httpCode int
}

// Success 创建成功响应。
func Success(data any) *Response {
	return &Response{
		Code:     errors.OK.Code,
		Message:  "success",
		Data:     data,
		httpCode: http.StatusOK,
	}
}

// Err 由 Errno 创建错误响应，底层原因不会出现在响应中。
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:     e.Code,
		Message:  e.MessageEN,
		httpCode: e.HTTPStatus(),
	}
}

// FromError 将任意错误转换为错误响应。
func FromError(err error) *Response {
	return Err(errors.FromError(err))
}

// WithRequestID 设置请求 ID。
func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

// IsSuccess 是否成功。
func (r *Response) IsSuccess() bool {
	return r.Code == 0
}

// HTTPStatus 返回响应对应的 HTTP 状态码。
// 未显式设置时先查注册表，再按错误码类别推断。
func (r *Response) HTTPStatus() int {
	if r.httpCode != 0 {
		return r.httpCode
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}

	switch errors.GetCategory(r.Code) {
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryPermission:
		return http.StatusForbidden
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
