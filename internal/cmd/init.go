package cmd

import (
	"context"

	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/sqlgo/core/cache"
	"github.com/Malowking/sqlgo/core/config"
	"github.com/Malowking/sqlgo/core/errors"
	"github.com/Malowking/sqlgo/internal/dao"
	"github.com/Malowking/sqlgo/internal/service"
)

// initComponents 校验配置并按依赖顺序初始化各组件
// 可选组件（Redis、查询日志库）初始化失败时降级运行
func initComponents(ctx context.Context) (*service.Components, error) {
	g.Log().Info(ctx, "Validating application configuration...")
	if err := config.ValidateConfiguration(ctx); err != nil {
		g.Log().Errorf(ctx, "Configuration validation failed:\n%v", err)
		return nil, errors.Wrap(errors.ErrInvalidParameter, err, "configuration validation failed")
	}

	// Session bindings fall back to memory without redis
	if err := cache.InitRedis(ctx); err != nil {
		g.Log().Warningf(ctx, "Redis unavailable, using in-memory session store: %v", err)
	}

	if err := dao.InitDB(ctx); err != nil {
		g.Log().Warningf(ctx, "Query log database initialization failed, query log disabled: %v", err)
	}

	comps, err := service.Init(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseInit, err, "pipeline initialization failed")
	}

	g.Log().Info(ctx, "✓ All components initialized successfully")
	return comps, nil
}

func closeRedis(ctx context.Context) {
	if err := cache.CloseRedis(ctx); err != nil {
		g.Log().Warningf(ctx, "Failed to close redis: %v", err)
	}
}
