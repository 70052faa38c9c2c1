package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"ADCTF/models"
)

// Connect 建立 MySQL 连接并配置连接池，返回句柄由调用方持有传递，
// 不使用包级单例。
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}

	// SetConnMaxLifetime 设为 1 小时以规避 MySQL 的 wait_timeout 断连
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate 建表/同步表结构
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Team{},
		&models.Task{},
		&models.Flag{},
		&models.StolenFlag{},
		&models.TeamTaskStatus{},
		&models.GameConfig{},
		&models.Schedule{},
	)
}
