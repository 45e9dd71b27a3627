package errors

import "google.golang.org/grpc/codes"

// AI 路由错误 (服务 21)
var (
	ErrDuplicateIntent = Register(New(MakeCode(ServiceAIRouter, CategoryConflict, 1), 409, codes.AlreadyExists, "Duplicate intent handler", "意图处理器重复注册"))
	ErrInvalidParams   = Register(New(MakeCode(ServiceAIRouter, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid intent parameters", "意图参数无效"))
	ErrHandlerFailure  = Register(New(MakeCode(ServiceAIRouter, CategoryInternal, 1), 500, codes.Internal, "Intent handler failed", "意图处理失败"))
	ErrRouterDisabled  = Register(New(MakeCode(ServiceAIRouter, CategoryInternal, 2), 503, codes.Unavailable, "AI router is disabled", "AI 路由未启用"))
	ErrProviderFailure = Register(New(MakeCode(ServiceLLM, CategoryNetwork, 1), 502, codes.Unavailable, "Model provider request failed", "模型供应商请求失败"))
	ErrProviderTimeout = Register(New(MakeCode(ServiceLLM, CategoryTimeout, 1), 504, codes.DeadlineExceeded, "Model provider timeout", "模型供应商超时"))
	ErrCircuitOpen     = Register(New(MakeCode(ServiceLLM, CategoryNetwork, 2), 503, codes.Unavailable, "Model provider temporarily unavailable", "模型供应商暂不可用"))
)
