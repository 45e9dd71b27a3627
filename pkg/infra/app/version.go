package app

import "github.com/kart-io/version"

// GetVersion 返回构建时注入的版本号。
func GetVersion() string {
	return version.Get().GitVersion
}

// GetVersionInfo 返回完整的构建信息。
func GetVersionInfo() version.Info {
	return version.Get()
}
