package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"selllink/internal/session"
)

// ==================== 会话中间件 ====================

// SessionCookieName 会话 Cookie 名
const SessionCookieName = "selllink_session"

// ctxSessionKey gin 上下文里的会话键
const ctxSessionKey = "draftSession"

// Session 基于 Cookie 的匿名会话
// 无认证体系：首次访问发一个随机会话 ID，草稿跟着 ID 走
func Session(manager *session.Manager, cookieMaxAge int) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookieName)
		if err != nil || id == "" {
			id = uuid.New().String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookieName, id, cookieMaxAge, "/", "", false, true)
		}

		c.Set(ctxSessionKey, manager.Get(id))
		c.Set("sessionID", id)
		c.Next()
	}
}

// CurrentSession 取出当前请求绑定的草稿会话
// 必须在 Session 中间件之后调用
func CurrentSession(c *gin.Context) *session.DraftSession {
	value, _ := c.Get(ctxSessionKey)
	sess, _ := value.(*session.DraftSession)
	return sess
}

// CurrentSessionID 取出当前请求的会话 ID
func CurrentSessionID(c *gin.Context) string {
	return c.GetString("sessionID")
}
