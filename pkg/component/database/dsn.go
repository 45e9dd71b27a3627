package database

import (
	"fmt"
	"net/url"
	"strings"

	mysqlopts "github.com/kart-io/ai-router/pkg/options/mysql"
	pgopts "github.com/kart-io/ai-router/pkg/options/postgres"
)

// BuildMySQLDSN 生成 MySQL DSN，密码经过转义。
//
//	root:secret@tcp(localhost:3306)/ai_router?charset=utf8mb4&parseTime=True&loc=Local
func BuildMySQLDSN(opts *mysqlopts.Options) string {
	if opts == nil {
		return ""
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		opts.Username,
		url.QueryEscape(opts.Password),
		opts.Host,
		opts.Port,
		opts.Database,
	)
}

// BuildPostgresDSN 生成 key=value 形式的 PostgreSQL DSN。
//
//	host=localhost port=5432 user=postgres password=secret dbname=ai_router sslmode=disable
func BuildPostgresDSN(opts *pgopts.Options) string {
	if opts == nil {
		return ""
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		opts.Host,
		opts.Port,
		opts.Username,
		escapePostgresValue(opts.Password),
		opts.Database,
		opts.SSLMode,
	)
}

// escapePostgresValue 值包含空格、引号或反斜杠时加单引号并转义。
func escapePostgresValue(value string) string {
	if value == "" {
		return "''"
	}
	if !strings.ContainsAny(value, " '\\") {
		return value
	}
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "'", "\\'")
	return "'" + escaped + "'"
}
