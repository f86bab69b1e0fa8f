// Package database 负责按位置字符串打开关系型存储与 Redis 客户端。
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"persona-chat-go/pkg/log"
)

// MySQLScheme 是 MySQL DSN 位置字符串的前缀。
const MySQLScheme = "mysql://"

// sqlitePragmas 以 DSN 参数形式传给 go-sqlite3，确保每个连接都生效。
const sqlitePragmas = "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"

// Open 根据 location 打开数据库：
// 以 mysql:// 开头时使用 MySQL，其余视为 SQLite 文件路径，并自动创建父目录。
func Open(location string) (*gorm.DB, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("database location is empty")
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	if strings.HasPrefix(location, MySQLScheme) {
		db, err := gorm.Open(mysql.Open(strings.TrimPrefix(location, MySQLScheme)), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect mysql: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
		sqlDB.SetMaxOpenConns(100)          // 设置打开数据库连接的最大数量
		sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间
		log.Info("MySQL database connected successfully")
		return db, nil
	}

	if dir := filepath.Dir(location); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(location)), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", location, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// SQLite 同一时间只允许一个写者，限制为单连接
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", location, err)
	}

	log.Infow("SQLite database opened", "path", location)
	return db, nil
}

// Close 关闭底层连接池。
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + sqlitePragmas
}

// Redact 返回可以写入日志的位置字符串，MySQL DSN 中的密码被替换。
func Redact(location string) string {
	if !strings.HasPrefix(location, MySQLScheme) {
		return location
	}
	cfg, err := mysqldriver.ParseDSN(strings.TrimPrefix(location, MySQLScheme))
	if err != nil {
		return MySQLScheme + "<invalid dsn>"
	}
	if cfg.Passwd != "" {
		cfg.Passwd = "xxxxx"
	}
	return MySQLScheme + cfg.FormatDSN()
}
