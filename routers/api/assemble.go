package api

import (
	"fmt"
	"net/http"

	"sceneflow-server/apperr"
	"sceneflow-server/auth"
	"sceneflow-server/service"

	"github.com/gin-gonic/gin"
)

// AssembleHandler 整片导出。
type AssembleHandler struct {
	Assembler *service.Assembler
}

func (h *AssembleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/projects/:project_id/assemble", h.assemble)
}

func (h *AssembleHandler) assemble(c *gin.Context) {
	result, err := h.Assembler.Assemble(c.Request.Context(), auth.CallerID(c), c.Param("project_id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, "video/mp4", result.Data)
}
