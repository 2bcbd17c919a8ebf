package api

import (
	"net/http"
	"time"

	"sceneflow-server/apperr"
	"sceneflow-server/auth"
	"sceneflow-server/models"
	"sceneflow-server/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsPollInterval 进度轮询间隔。
var wsPollInterval = time.Second

// TaskHandler 任务状态查询与进度推送。
type TaskHandler struct {
	Tasks *service.Tasks
}

func (h *TaskHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tasks/:task_id", h.get)
	rg.GET("/tasks/:task_id/ws", h.ProgressWebSocket)
}

func (h *TaskHandler) get(c *gin.Context) {
	t, err := h.Tasks.Get(c.Request.Context(), auth.CallerID(c), c.Param("task_id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": t})
}

// ProgressWebSocket 以 DB 为来源轮询任务并推送变化，直到终态或客户端断开。
// 所有权校验在升级前完成，握手阶段即可拒绝。
func (h *TaskHandler) ProgressWebSocket(c *gin.Context) {
	taskID := c.Param("task_id")
	callerID := auth.CallerID(c)

	t, err := h.Tasks.Get(c.Request.Context(), callerID, taskID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "WebSocket升级失败"})
		return
	}
	defer conn.Close()

	_ = conn.WriteJSON(t)
	if t.Status == models.TaskStatusSuccess || t.Status == models.TaskStatusFailed {
		return
	}

	// 客户端断开时 ReadMessage 立即报错，轮询随之退出
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPollInterval)
	defer ticker.Stop()

	prevStatus := t.Status
	prevProgress := t.Progress

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			cur, err := h.Tasks.Get(c.Request.Context(), callerID, taskID)
			if err != nil {
				continue
			}

			if cur.Status != prevStatus || cur.Progress != prevProgress {
				if err := conn.WriteJSON(cur); err != nil {
					return
				}
				prevStatus = cur.Status
				prevProgress = cur.Progress
			}

			if cur.Status == models.TaskStatusSuccess || cur.Status == models.TaskStatusFailed {
				return
			}
		}
	}
}
