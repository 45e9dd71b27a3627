// Package database 按配置打开 gorm 连接，支持 sqlite、mysql 和 postgres。
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/kart-io/logger"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	dbopts "github.com/kart-io/ai-router/pkg/options/db"
)

// pingTimeout 建连后首次探活的超时时间。
const pingTimeout = 5 * time.Second

// Open 打开数据库连接、配置连接池并探活。
// models 非空且开启 AutoMigrate 时执行迁移。
func Open(ctx context.Context, opts *dbopts.Options, models ...any) (*gorm.DB, error) {
	if opts == nil {
		return nil, fmt.Errorf("database options cannot be nil")
	}

	dialector, err := Dialector(opts)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(gormlogger.LogLevel(opts.LogLevel), opts.SlowThreshold, true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	configurePool(sqlDB, opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", opts.Driver, err)
	}

	if opts.AutoMigrate && len(models) > 0 {
		if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	logger.Infow("Database connected", "driver", opts.Driver, "auto_migrate", opts.AutoMigrate)
	return db, nil
}

// Dialector 返回所选驱动的 gorm.Dialector。
func Dialector(opts *dbopts.Options) (gorm.Dialector, error) {
	switch opts.Driver {
	case dbopts.DriverSQLite, "":
		return sqlite.Open(opts.SQLitePath), nil
	case dbopts.DriverMySQL:
		return mysqldriver.Open(BuildMySQLDSN(opts.MySQL)), nil
	case dbopts.DriverPostgres:
		return postgres.Open(BuildPostgresDSN(opts.Postgres)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

type poolSetter interface {
	SetMaxIdleConns(n int)
	SetMaxOpenConns(n int)
	SetConnMaxLifetime(d time.Duration)
}

func configurePool(db poolSetter, opts *dbopts.Options) {
	var idle, open int
	var lifetime time.Duration
	switch opts.Driver {
	case dbopts.DriverMySQL:
		idle, open, lifetime = opts.MySQL.MaxIdleConnections, opts.MySQL.MaxOpenConnections, opts.MySQL.MaxConnectionLifeTime
	case dbopts.DriverPostgres:
		idle, open, lifetime = opts.Postgres.MaxIdleConnections, opts.Postgres.MaxOpenConnections, opts.Postgres.MaxConnectionLifeTime
	default:
		// sqlite 单写者
		open = 1
	}
	if idle > 0 {
		db.SetMaxIdleConns(idle)
	}
	if open > 0 {
		db.SetMaxOpenConns(open)
	}
	if lifetime > 0 {
		db.SetConnMaxLifetime(lifetime)
	}
}

// Close 关闭底层连接。
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 检查连接是否可用。
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
