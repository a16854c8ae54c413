package common

import (
	"context"
	"runtime/debug"

	"github.com/gogf/gf/v2/frame/g"
)

// RecoverPanic 必须直接 defer 调用，记录 panic 与堆栈后继续执行
func RecoverPanic(ctx context.Context, taskName string) {
	if r := recover(); r != nil {
		g.Log().Criticalf(ctx, "[PANIC RECOVERED] Task: %s\nError: %v\nStack Trace:\n%s",
			taskName, r, debug.Stack())
	}
}

// SafeGo 后台执行 fn，panic 只记录日志
func SafeGo(ctx context.Context, taskName string, fn func()) {
	go func() {
		defer RecoverPanic(ctx, taskName)
		fn()
	}()
}
