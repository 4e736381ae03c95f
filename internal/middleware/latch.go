package middleware

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// ==================== InFlightLatch 在途闩锁 ====================

// InFlightLatch 单会话单能力的在途调用闩锁
// 外部 AI 调用慢且不便宜：同一会话对同一能力的并发请求直接拒掉，
// 等上一个返回再说
type InFlightLatch struct {
	inflight sync.Map // key -> struct{}
}

// 全局闩锁实例
var globalLatch = &InFlightLatch{}

// GetLatch 获取全局闩锁
func GetLatch() *InFlightLatch {
	return globalLatch
}

// TryAcquire 尝试占用，返回是否成功
func (l *InFlightLatch) TryAcquire(key string) bool {
	_, loaded := l.inflight.LoadOrStore(key, struct{}{})
	return !loaded
}

// Release 释放占用
func (l *InFlightLatch) Release(key string) {
	l.inflight.Delete(key)
}

// ==================== 中间件 ====================

// latchKey 会话 + 能力维度的闩锁键
func latchKey(sessionID, capability string) string {
	return fmt.Sprintf("%s:%s", sessionID, capability)
}

// Latch 拦截同会话同能力的并发请求
// 必须挂在 Session 中间件之后
func Latch(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := latchKey(CurrentSessionID(c), capability)

		if !globalLatch.TryAcquire(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": "上一个请求还在处理中，请稍候",
			})
			return
		}
		defer globalLatch.Release(key)

		c.Next()
	}
}
