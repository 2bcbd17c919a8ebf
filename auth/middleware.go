package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const CtxCallerKey = "auth_caller"

// Middleware 解析 Bearer token 并把调用者身份写入 gin context。
// singleTenantOwner 非空时走单租户模式：不要求 token，所有请求视为该 owner 发起。
func Middleware(tokens TokenService, singleTenantOwner string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if singleTenantOwner != "" {
			c.Set(CtxCallerKey, singleTenantOwner)
			c.Next()
			return
		}

		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			c.Abort()
			return
		}

		raw := strings.TrimSpace(h[len("Bearer "):])
		claims, err := tokens.Parse(raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(CtxCallerKey, claims.UserID)
		c.Next()
	}
}

// CallerID 读取中间件写入的调用者身份，未认证返回空串。
func CallerID(c *gin.Context) string {
	v, ok := c.Get(CtxCallerKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
