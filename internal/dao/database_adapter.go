package dao

import (
	"fmt"
	"time"

	"github.com/gogf/gf/v2/frame/g"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	gormModel "github.com/Malowking/sqlgo/internal/model/gorm"
)

// DBConfig 查询日志数据库配置，来自 database.default
type DBConfig struct {
	Type    string `json:"type"` // mysql 或 pgsql/postgres
	Host    string `json:"host"`
	Port    string `json:"port"`
	User    string `json:"user"`
	Pass    string `json:"pass"`
	Name    string `json:"name"`
	Charset string `json:"charset"` // 仅 MySQL
}

// getDBConfig 读取 gf 的数据库配置
func getDBConfig() *DBConfig {
	cfg := g.DB().GetConfig()
	return &DBConfig{
		Type:    cfg.Type,
		Host:    cfg.Host,
		Port:    cfg.Port,
		User:    cfg.User,
		Pass:    cfg.Pass,
		Name:    cfg.Name,
		Charset: cfg.Charset,
	}
}

// dialector 按类型选择 gorm 驱动
func dialector(config *DBConfig) (gorm.Dialector, error) {
	switch config.Type {
	case "mysql":
		charset := config.Charset
		if charset == "" {
			charset = "utf8mb4"
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
			config.User, config.Pass, config.Host, config.Port, config.Name, charset)
		return mysql.Open(dsn), nil
	case "pgsql", "postgresql", "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			config.Host, config.User, config.Pass, config.Name, config.Port)
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}
}

// initDatabase 连接查询日志库并自动迁移
func initDatabase() (*gorm.DB, error) {
	config := getDBConfig()
	dial, err := dialector(config)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %v", err)
	}
	// 日志写入量小，连接池保持较小
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err = gormModel.Migrate(conn); err != nil {
		return nil, fmt.Errorf("failed to migrate database tables: %v", err)
	}
	return conn, nil
}
