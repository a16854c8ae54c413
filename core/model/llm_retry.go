package model

import (
	"context"
	"strings"
	"time"

	"github.com/Malowking/sqlgo/core/errors"
	"github.com/gogf/gf/v2/frame/g"
)

// SingleModelRetryConfig 单个模型重试配置
type SingleModelRetryConfig struct {
	MaxRetries  int           // 首次调用之后的重试次数
	RetryDelay  time.Duration // 重试前的退避时间
	CallTimeout time.Duration // 单次调用超时，0 表示不限制
}

// DefaultSingleModelRetryConfig 默认重试一次，退避500ms
func DefaultSingleModelRetryConfig() *SingleModelRetryConfig {
	return &SingleModelRetryConfig{
		MaxRetries:  1,
		RetryDelay:  500 * time.Millisecond,
		CallTimeout: 30 * time.Second,
	}
}

// CompleteWithRetry 调用文本生成服务，失败或返回空内容时按退避重试
// 全部失败返回 ErrGenerationUnavailable
func CompleteWithRetry(ctx context.Context, completer Completer, config *SingleModelRetryConfig, req CompletionRequest) (string, error) {
	if config == nil {
		config = DefaultSingleModelRetryConfig()
	}

	var lastErr error
	attempts := config.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			g.Log().Infof(ctx, "[LLM retry] attempt %d/%d after %s", attempt+1, attempts, config.RetryDelay)
			select {
			case <-ctx.Done():
				return "", errors.Wrap(errors.ErrGenerationUnavailable, ctx.Err(), "generation cancelled")
			case <-time.After(config.RetryDelay):
			}
		}

		text, err := callOnce(ctx, completer, config.CallTimeout, req)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err == nil {
			err = errEmptyResponse
		}
		lastErr = err
		g.Log().Warningf(ctx, "[LLM retry] attempt %d/%d failed: %v", attempt+1, attempts, err)

		if ctx.Err() != nil {
			break
		}
	}

	return "", errors.Wrap(errors.ErrGenerationUnavailable, lastErr, "the query generation service is currently unavailable, please try again later")
}

var errEmptyResponse = errors.New(errors.ErrGenerationUnavailable, "empty response from generation service")

func callOnce(ctx context.Context, completer Completer, timeout time.Duration, req CompletionRequest) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return completer.Complete(ctx, req)
}
