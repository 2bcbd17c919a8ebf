package apperr

import (
	"log"

	"github.com/gin-gonic/gin"
)

// Respond 将错误写回 HTTP 响应。所有 handler 统一走这里。
func Respond(c *gin.Context, err error) {
	kind := KindOf(err)
	if kind == KindInternal {
		// 细节只进日志，不回给调用方
		log.Printf("[internal] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(HTTPStatus(kind), gin.H{
		"error": Message(err),
		"kind":  kind.String(),
	})
}
