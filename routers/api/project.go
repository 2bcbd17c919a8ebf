package api

import (
	"net/http"

	"sceneflow-server/apperr"
	"sceneflow-server/auth"
	"sceneflow-server/service"

	"github.com/gin-gonic/gin"
)

// ProjectHandler 项目 CRUD 与阶段设置。
type ProjectHandler struct {
	Projects *service.Projects
	Stages   *service.StageMachine
}

func (h *ProjectHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/projects", h.create)
	rg.GET("/projects/:project_id", h.get)
	rg.PUT("/projects/:project_id", h.update)
	rg.DELETE("/projects/:project_id", h.remove)
	rg.PUT("/projects/:project_id/stage", h.setStage)
}

type projectReq struct {
	Title     string `json:"title"`
	StoryText string `json:"story_text"`
	Style     string `json:"style"`
}

func (h *ProjectHandler) create(c *gin.Context) {
	var req projectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := h.Projects.Create(c.Request.Context(), auth.CallerID(c), req.Title, req.StoryText, req.Style)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

func (h *ProjectHandler) get(c *gin.Context) {
	detail, err := h.Projects.Get(c.Request.Context(), auth.CallerID(c), c.Param("project_id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *ProjectHandler) update(c *gin.Context) {
	var req projectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := h.Projects.Update(c.Request.Context(), auth.CallerID(c), c.Param("project_id"), req.Title, req.StoryText, req.Style)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

func (h *ProjectHandler) remove(c *gin.Context) {
	if err := h.Projects.Delete(c.Request.Context(), auth.CallerID(c), c.Param("project_id")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "项目已删除"})
}

func (h *ProjectHandler) setStage(c *gin.Context) {
	var req struct {
		Stage string `json:"stage"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Stages.SetStage(c.Request.Context(), auth.CallerID(c), c.Param("project_id"), req.Stage); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project_id": c.Param("project_id"), "stage": req.Stage})
}
