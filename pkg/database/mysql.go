// Package database 提供 MySQL 与 Redis 连接的初始化。
package database

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"dropbox-rag-go/pkg/log"
)

// NewMySQL 初始化 MySQL 数据库连接并配置连接池。
func NewMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)           // 空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(100)          // 打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 连接可复用的最大时间

	log.Info("MySQL database connected successfully")
	return db, nil
}
