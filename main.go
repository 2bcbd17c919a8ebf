package main

import (
	"fmt"
	"time"

	"sceneflow-server/auth"
	"sceneflow-server/config"
	"sceneflow-server/models"
	"sceneflow-server/routers"
	"sceneflow-server/service"
)

func main() {
	config.InitConfig()
	fmt.Println("Server starting on port", config.AppConfig.Server.Port)
	models.InitDB()
	fmt.Println("Database initialized")

	service.InitQueue()
	fmt.Println("Queue initialized")

	storage := service.InitMinIO()

	store := models.NewGormStore(models.GormDB)

	var owner auth.Ownership = auth.TenantOwnership{}
	singleTenantOwner := ""
	if config.AppConfig.Auth.SingleTenant {
		owner = auth.SingleTenantOwnership{}
		singleTenantOwner = config.AppConfig.Auth.OwnerID
	}

	generator := service.NewWorkerClient()
	stages := service.NewStageMachine(store, owner)
	lifecycle := service.NewLifecycle(store, owner, storage, generator, service.EnqueueTask)
	coordinator := service.NewCoordinator(store, owner, stages)
	projects := service.NewProjects(store, owner, storage)
	tasks := service.NewTasks(store, owner)
	assembler := service.NewAssembler(store, owner, storage,
		&service.FFmpegConcatenator{Path: config.AppConfig.Assemble.FFmpegPath},
		time.Duration(config.AppConfig.Assemble.TimeoutSeconds)*time.Second,
		config.AppConfig.Assemble.WorkDir,
	)

	processor := service.NewProcessor(store, lifecycle)
	processor.StartProcessor(5)

	r := routers.InitRouter(routers.Deps{
		Tokens: auth.TokenService{
			Secret:   []byte(config.AppConfig.Auth.Secret),
			Issuer:   config.AppConfig.Auth.Issuer,
			Duration: 24 * time.Hour,
		},
		SingleTenantOwner: singleTenantOwner,
		Store:             store,
		Projects:          projects,
		Stages:            stages,
		Lifecycle:         lifecycle,
		Coordinator:       coordinator,
		Assembler:         assembler,
		Tasks:             tasks,
	})
	r.Run(config.AppConfig.Server.Port)
}
