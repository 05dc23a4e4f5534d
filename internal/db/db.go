package db

import (
	"fmt"
	"time"

	"inkwell/internal/logger"
	"inkwell/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init 连接数据库并执行迁移，结果保存在全局 DB
func Init(dsn string) error {
	conn, err := Open(postgres.Open(dsn))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Database connection established")

	if err := Migrate(conn); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("Database migration completed")

	DB = conn
	return nil
}

// Open wraps gorm.Open with the shared gorm configuration.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
}

func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.Post{},
		&models.Comment{},
		&models.PostLike{},
		&models.Notification{},
	)
	if err != nil {
		logger.Error("AutoMigrate failed", zap.Error(err))
	}
	return err
}

func Close() {
	if DB == nil {
		return
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}
}
