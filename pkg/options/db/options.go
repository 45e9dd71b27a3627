// Package db 提供关系型数据库配置项，按 driver 选择 sqlite、mysql 或 postgres。
package db

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ai-router/pkg/options"
	mysqlopts "github.com/kart-io/ai-router/pkg/options/mysql"
	pgopts "github.com/kart-io/ai-router/pkg/options/postgres"
)

var _ options.IOptions = (*Options)(nil)

// 支持的驱动。
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Options 数据库配置。
type Options struct {
	// Driver 数据库驱动。
	Driver string `json:"driver" mapstructure:"driver"`
	// SQLitePath sqlite 数据文件路径，支持 file: URI。
	SQLitePath string `json:"sqlite-path" mapstructure:"sqlite-path"`
	// LogLevel gorm 日志级别：1 silent，2 error，3 warn，4 info。
	LogLevel int `json:"log-level" mapstructure:"log-level"`
	// SlowThreshold 慢查询阈值。
	SlowThreshold time.Duration `json:"slow-threshold" mapstructure:"slow-threshold"`
	// AutoMigrate 启动时迁移表结构。
	AutoMigrate bool `json:"auto-migrate" mapstructure:"auto-migrate"`

	MySQL    *mysqlopts.Options `json:"mysql" mapstructure:"mysql"`
	Postgres *pgopts.Options    `json:"postgres" mapstructure:"postgres"`
}

// NewOptions 返回默认配置：本地 sqlite 文件。
func NewOptions() *Options {
	return &Options{
		Driver:        DriverSQLite,
		SQLitePath:    "ai-router.db",
		LogLevel:      2,
		SlowThreshold: 200 * time.Millisecond,
		AutoMigrate:   true,
		MySQL:         mysqlopts.NewOptions(),
		Postgres:      pgopts.NewOptions(),
	}
}

// AddFlags 注册数据库相关 flag，驱动子配置挂在 db. 前缀下。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "db."
	fs.StringVar(&o.Driver, p+"driver", o.Driver, "Database driver (sqlite, mysql, postgres).")
	fs.StringVar(&o.SQLitePath, p+"sqlite-path", o.SQLitePath, "SQLite database file.")
	fs.IntVar(&o.LogLevel, p+"log-level", o.LogLevel, "GORM log level (1 silent, 2 error, 3 warn, 4 info).")
	fs.DurationVar(&o.SlowThreshold, p+"slow-threshold", o.SlowThreshold, "Slow query threshold.")
	fs.BoolVar(&o.AutoMigrate, p+"auto-migrate", o.AutoMigrate, "Migrate tables at startup.")

	sub := append(append([]string{}, prefixes...), "db")
	if o.MySQL == nil {
		o.MySQL = mysqlopts.NewOptions()
	}
	o.MySQL.AddFlags(fs, sub...)
	if o.Postgres == nil {
		o.Postgres = pgopts.NewOptions()
	}
	o.Postgres.AddFlags(fs, sub...)
}

// Validate 只校验所选驱动的子配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Driver {
	case DriverSQLite:
		if o.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("db.sqlite-path is required for the sqlite driver"))
		}
	case DriverMySQL:
		errs = append(errs, o.MySQL.Validate()...)
	case DriverPostgres:
		errs = append(errs, o.Postgres.Validate()...)
	default:
		errs = append(errs, fmt.Errorf("db.driver %q is not supported", o.Driver))
	}
	if o.LogLevel < 1 || o.LogLevel > 4 {
		errs = append(errs, fmt.Errorf("db.log-level must be between 1 and 4"))
	}
	return errs
}

// Complete 补齐子配置。
func (o *Options) Complete() error {
	if o.MySQL == nil {
		o.MySQL = mysqlopts.NewOptions()
	}
	if o.Postgres == nil {
		o.Postgres = pgopts.NewOptions()
	}
	return nil
}
