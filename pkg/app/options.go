// Package app 定义命令行应用使用的配置接口。
package app

import "github.com/kart-io/ai-router/pkg/app/cliflag"

// CliOptions 可以被 infra/app 装配成命令行的配置。
type CliOptions interface {
	// Flags 按分组返回 flag。
	Flags() cliflag.NamedFlagSets
	// Complete 补齐默认值。
	Complete() error
	// Validate 校验配置，多个错误聚合后返回。
	Validate() error
}
