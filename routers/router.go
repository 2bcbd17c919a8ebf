package routers

import (
	"sceneflow-server/auth"
	"sceneflow-server/routers/api"
	"sceneflow-server/service"

	"github.com/gin-gonic/gin"
)

type Deps struct {
	Tokens            auth.TokenService
	SingleTenantOwner string // 空 = 多租户，要求 Bearer token

	Store       service.Store
	Projects    *service.Projects
	Stages      *service.StageMachine
	Lifecycle   *service.Lifecycle
	Coordinator *service.Coordinator
	Assembler   *service.Assembler
	Tasks       *service.Tasks
}

func InitRouter(d Deps) *gin.Engine {
	r := gin.Default()

	projectH := &api.ProjectHandler{Projects: d.Projects, Stages: d.Stages}
	sceneH := &api.SceneHandler{Store: d.Store, Lifecycle: d.Lifecycle, Coordinator: d.Coordinator}
	assembleH := &api.AssembleHandler{Assembler: d.Assembler}
	taskH := &api.TaskHandler{Tasks: d.Tasks}

	v1 := r.Group("/v1/api")
	v1.Use(auth.Middleware(d.Tokens, d.SingleTenantOwner))
	{
		projectH.RegisterRoutes(v1)
		sceneH.RegisterRoutes(v1)
		assembleH.RegisterRoutes(v1)
		taskH.RegisterRoutes(v1)
	}

	return r
}
