// Package database 会话记录（gait_sessions）使用的 PostgreSQL 连接
package database

import (
	"database/sql"
	"fmt"
	"wisefido-gait/common/config"

	_ "github.com/lib/pq"
)

// NewPostgresDB 创建PostgreSQL数据库连接
// 只在 DB_ENABLED 打开时调用；会话结束后写一条记录，不在采集路径上。
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数（会话结束时才写库，连接数很小）
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Close 关闭数据库连接，db 为空（未启用数据库）时直接返回
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
