package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK 成功。
var OK = Register(New(0, http.StatusOK, codes.OK, "Success", "成功"))

// 通用错误 (服务 00)
var (
	ErrBadRequest        = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0), http.StatusBadRequest, codes.InvalidArgument, "Bad request", "请求格式错误"))
	ErrInvalidParam      = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter", "参数无效"))
	ErrValidationFailed  = Register(New(MakeCode(ServiceCommon, CategoryRequest, 4), http.StatusBadRequest, codes.InvalidArgument, "Validation failed", "参数校验失败"))
	ErrRequestTooLarge   = Register(New(MakeCode(ServiceCommon, CategoryRequest, 5), http.StatusRequestEntityTooLarge, codes.InvalidArgument, "Request entity too large", "请求体过大"))
	ErrForbidden         = Register(New(MakeCode(ServiceCommon, CategoryPermission, 0), http.StatusForbidden, codes.PermissionDenied, "Forbidden", "禁止访问"))
	ErrNotFound          = Register(New(MakeCode(ServiceCommon, CategoryResource, 0), http.StatusNotFound, codes.NotFound, "Resource not found", "资源不存在"))
	ErrRateLimitExceeded = Register(New(MakeCode(ServiceCommon, CategoryRateLimit, 1), http.StatusTooManyRequests, codes.ResourceExhausted, "Rate limit exceeded", "超出速率限制"))
	ErrInternal          = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0), http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))
	ErrServiceDisabled   = Register(New(MakeCode(ServiceCommon, CategoryInternal, 4), http.StatusServiceUnavailable, codes.Unavailable, "Feature disabled", "功能未启用"))
	ErrConfigInvalid     = Register(New(MakeCode(ServiceCommon, CategoryConfig, 2), http.StatusInternalServerError, codes.Internal, "Invalid configuration", "配置无效"))
)

// 基础设施错误 (服务 10/11)
var (
	ErrDatabase = Register(New(MakeCode(ServiceInfraDB, CategoryDatabase, 0), http.StatusInternalServerError, codes.Internal, "Database error", "数据库错误"))
	ErrCache    = Register(New(MakeCode(ServiceInfraCache, CategoryCache, 0), http.StatusInternalServerError, codes.Internal, "Cache error", "缓存错误"))
)
