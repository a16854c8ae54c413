package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/redis/go-redis/v9"
)

var (
	rdb *redis.Client
)

// ErrCacheMiss key 不存在
var ErrCacheMiss = errors.New("cache miss")

// InitRedis 初始化Redis客户端，未配置 redis.address 时跳过
func InitRedis(ctx context.Context) error {
	address := g.Cfg().MustGet(ctx, "redis.address", "").String()
	if address == "" {
		g.Log().Info(ctx, "redis.address not set, redis disabled")
		return nil
	}
	password := g.Cfg().MustGet(ctx, "redis.password", "").String()
	db := g.Cfg().MustGet(ctx, "redis.db", 0).Int()
	maxRetries := g.Cfg().MustGet(ctx, "redis.maxRetries", 3).Int()
	poolSize := g.Cfg().MustGet(ctx, "redis.poolSize", 10).Int()
	minIdleConns := g.Cfg().MustGet(ctx, "redis.minIdleConns", 2).Int()

	client := redis.NewClient(&redis.Options{
		Addr:         address,
		Password:     password,
		DB:           db,
		MaxRetries:   maxRetries,
		PoolSize:     poolSize,
		MinIdleConns: minIdleConns,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		g.Log().Errorf(ctx, "Redis connection failed: %v", err)
		_ = client.Close()
		return err
	}

	rdb = client
	g.Log().Infof(ctx, "Redis initialized successfully: %s, DB: %d", address, db)
	return nil
}

// GetRedisClient 获取Redis客户端，未初始化时返回 nil
func GetRedisClient() *redis.Client {
	return rdb
}

// CloseRedis 关闭Redis连接
func CloseRedis(ctx context.Context) error {
	if rdb != nil {
		g.Log().Info(ctx, "Closing Redis connection")
		return rdb.Close()
	}
	return nil
}

// SetJSON 以 JSON 形式写入缓存
func SetJSON(ctx context.Context, client redis.Cmdable, key string, value interface{}, expiration time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, data, expiration).Err()
}

// GetJSON 读取 JSON 缓存到 out，不存在时返回 ErrCacheMiss
func GetJSON(ctx context.Context, client redis.Cmdable, key string, out interface{}) error {
	data, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return sonic.Unmarshal(data, out)
}
