package dao

import (
	"context"

	"github.com/gogf/gf/v2/frame/g"
	"gorm.io/gorm"
)

var db *gorm.DB

// InitDB 初始化查询日志数据库；未配置 database.default 时跳过
func InitDB(ctx context.Context) error {
	if g.Cfg().MustGet(ctx, "database.default").IsEmpty() {
		g.Log().Info(ctx, "database.default not configured, query log disabled")
		return nil
	}
	var err error
	db, err = initDatabase()
	if err != nil {
		return err
	}
	return nil
}

// GetDB 获取数据库实例，未初始化时返回 nil
func GetDB() *gorm.DB {
	return db
}

// Enabled 查询日志是否可用
func Enabled() bool {
	return db != nil
}
