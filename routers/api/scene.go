package api

import (
	"errors"
	"net/http"

	"sceneflow-server/apperr"
	"sceneflow-server/auth"
	"sceneflow-server/models"
	"sceneflow-server/service"

	"github.com/gin-gonic/gin"
)

// SceneHandler 分镜生命周期与批量确认。
type SceneHandler struct {
	Store       service.Store
	Lifecycle   *service.Lifecycle
	Coordinator *service.Coordinator
}

func (h *SceneHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/projects/:project_id/scenes", h.generateScenes)
	rg.POST("/projects/:project_id/scenes/regenerate", h.regenerateScenes)
	rg.GET("/projects/:project_id/scenes", h.list)
	rg.GET("/projects/:project_id/scenes/:scene_id", h.detail)
	rg.POST("/projects/:project_id/scenes/:scene_id/image", h.generateImage)
	rg.POST("/projects/:project_id/scenes/:scene_id/video", h.generateVideo)
	rg.POST("/projects/:project_id/scenes/:scene_id/confirm/:kind", h.confirm)
	rg.POST("/projects/:project_id/confirm-descriptions", h.confirmAllDescriptions)
	rg.POST("/projects/:project_id/confirm-videos", h.confirmAllVideos)
}

func (h *SceneHandler) generateScenes(c *gin.Context) {
	task, err := h.Lifecycle.GenerateScenes(c.Request.Context(), auth.CallerID(c), c.Param("project_id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": task.ID, "message": "分镜脚本生成任务已创建"})
}

func (h *SceneHandler) regenerateScenes(c *gin.Context) {
	var req struct {
		Feedback string `json:"feedback"`
	}
	// feedback 可空，body 缺失也允许
	_ = c.ShouldBindJSON(&req)

	task, err := h.Lifecycle.RegenerateScenes(c.Request.Context(), auth.CallerID(c), c.Param("project_id"), req.Feedback)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": task.ID, "message": "分镜重建任务已创建"})
}

func (h *SceneHandler) list(c *gin.Context) {
	projectID := c.Param("project_id")
	scenes, err := h.Store.ListScenes(c.Request.Context(), projectID)
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project_id":   projectID,
		"scenes":       scenes,
		"total_scenes": len(scenes),
	})
}

func (h *SceneHandler) detail(c *gin.Context) {
	scene, err := h.Store.GetScene(c.Request.Context(), c.Param("project_id"), c.Param("scene_id"))
	if errors.Is(err, models.ErrRowNotFound) {
		apperr.Respond(c, apperr.NotFound("分镜不存在"))
		return
	}
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	image, _ := h.Store.GetArtifact(c.Request.Context(), scene.ID, models.KindImage)
	video, _ := h.Store.GetArtifact(c.Request.Context(), scene.ID, models.KindVideo)
	c.JSON(http.StatusOK, gin.H{"scene": scene, "image": image, "video": video})
}

type generateReq struct {
	Regenerate bool `json:"regenerate"`
}

func (h *SceneHandler) generateImage(c *gin.Context) {
	h.generateTrack(c, models.KindImage)
}

func (h *SceneHandler) generateVideo(c *gin.Context) {
	h.generateTrack(c, models.KindVideo)
}

func (h *SceneHandler) generateTrack(c *gin.Context, kind string) {
	var req generateReq
	_ = c.ShouldBindJSON(&req)

	task, err := h.Lifecycle.Generate(c.Request.Context(), auth.CallerID(c),
		c.Param("project_id"), c.Param("scene_id"), kind, req.Regenerate)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"task_id":  task.ID,
		"scene_id": c.Param("scene_id"),
		"message":  "生成任务已创建",
	})
}

func (h *SceneHandler) confirm(c *gin.Context) {
	err := h.Lifecycle.Confirm(c.Request.Context(), auth.CallerID(c),
		c.Param("project_id"), c.Param("scene_id"), c.Param("kind"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scene_id":  c.Param("scene_id"),
		"kind":      c.Param("kind"),
		"confirmed": true,
	})
}

func (h *SceneHandler) confirmAllDescriptions(c *gin.Context) {
	res, err := h.Coordinator.ConfirmAllDescriptions(c.Request.Context(), auth.CallerID(c), c.Param("project_id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SceneHandler) confirmAllVideos(c *gin.Context) {
	res, err := h.Coordinator.ConfirmAllVideos(c.Request.Context(), auth.CallerID(c), c.Param("project_id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
