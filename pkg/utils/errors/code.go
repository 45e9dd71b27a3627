// Package errors 提供 ai-router 统一的错误码体系。
//
// 错误码格式: AABBCCC (7 位)
//
//   - AA:  服务/模块代码 (00-99)
//   - BB:  类别代码 (00-99)
//   - CCC: 序号 (000-999)
//
// 服务代码 (AA):
//
//   - 00: 通用错误
//   - 10: 数据库基础设施
//   - 11: 缓存基础设施
//   - 20: RAG 知识库
//   - 21: AI 路由
//   - 90: 模型供应商
//
// 类别代码 (BB) 与 HTTP 状态对应:
//
//   - 01: 请求/校验 (400)
//   - 03: 权限 (403)
//   - 04: 资源不存在 (404)
//   - 05: 冲突 (409)
//   - 06: 限流 (429)
//   - 07: 内部错误 (500)
//   - 08: 数据库 (500)
//   - 09: 缓存 (500)
//   - 10: 网络 (502/503)
//   - 11: 超时 (504)
//   - 12: 配置 (500)
package errors

// 服务代码 (AA)
const (
	ServiceCommon     = 0
	ServiceInfraDB    = 10
	ServiceInfraCache = 11
	ServiceRAG        = 20
	ServiceAIRouter   = 21
	ServiceLLM        = 90
)

// 类别代码 (BB)
const (
	CategorySuccess    = 0
	CategoryRequest    = 1
	CategoryAuth       = 2
	CategoryPermission = 3
	CategoryResource   = 4
	CategoryConflict   = 5
	CategoryRateLimit  = 6
	CategoryInternal   = 7
	CategoryDatabase   = 8
	CategoryCache      = 9
	CategoryNetwork    = 10
	CategoryTimeout    = 11
	CategoryConfig     = 12
)

// MakeCode 由服务、类别、序号组合错误码。
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode 拆分错误码。
func ParseCode(code int) (service, category, sequence int) {
	return code / 100000, (code % 100000) / 1000, code % 1000
}

// GetService 返回错误码中的服务代码。
func GetService(code int) int {
	return code / 100000
}

// GetCategory 返回错误码中的类别代码。
func GetCategory(code int) int {
	return (code % 100000) / 1000
}

// IsClientError 类别属于 4xx 范围。
func IsClientError(code int) bool {
	c := GetCategory(code)
	return c >= CategoryRequest && c <= CategoryRateLimit
}

// IsServerError 类别属于 5xx 范围。
func IsServerError(code int) bool {
	c := GetCategory(code)
	return c >= CategoryInternal && c <= CategoryConfig
}
