// Package options 定义各配置项的通用接口和 flag 命名工具。
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join 用 "." 连接前缀，非空时追加结尾的 "."。
// 用于生成 "redis.host"、"cache.redis.host" 这样的 flag 名称。
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}

// IOptions 所有配置项实现的接口。
type IOptions interface {
	// Validate 校验配置，返回全部错误。
	Validate() []error

	// AddFlags 把配置项注册到 flagset。
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}
