package common

import (
	"context"
	"fmt"
	"math"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/lumigem/tripo-gateway/common/logger"
)

var taskGoPool gopool.Pool

func init() {
	taskGoPool = gopool.NewPool("gopool.TaskPool", math.MaxInt32, gopool.NewConfig())
	taskGoPool.SetPanicHandler(func(ctx context.Context, i interface{}) {
		logger.SysError(fmt.Sprintf("panic in gopool.TaskPool: %v", i))
	})
}

// SafeGoroutine 通过 gopool 启动协程，panic 由池统一兜住，不会带崩进程
func SafeGoroutine(f func()) {
	taskGoPool.Go(f)
}

func CtxGo(ctx context.Context, f func()) {
	taskGoPool.CtxGo(ctx, f)
}
