package service

import (
	"context"

	"sceneflow-server/models"
)

// Store 是工作流核心依赖的持久化能力，由 models.GormStore 实现。
// 测试中用内存实现替换。
type Store interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	UpdateProjectFields(ctx context.Context, id string, fields map[string]interface{}) error
	SetStage(ctx context.Context, id string, stage string) error
	SetStageIfNot(ctx context.Context, id string, stage string) (bool, error)
	DeleteProjectRow(ctx context.Context, id string) error

	CreateScenes(ctx context.Context, scenes []models.Scene) error
	ListScenes(ctx context.Context, projectID string) ([]models.Scene, error)
	GetScene(ctx context.Context, projectID, sceneID string) (*models.Scene, error)
	DeleteScenesByProject(ctx context.Context, projectID string) error
	StartTrack(ctx context.Context, sceneID, kind string, allowRestart bool) (bool, error)
	ResolveTrack(ctx context.Context, sceneID, kind, status, errMsg string) error
	ConfirmTrack(ctx context.Context, sceneID, kind string) (bool, error)

	GetArtifact(ctx context.Context, sceneID, kind string) (*models.MediaArtifact, error)
	CreateArtifact(ctx context.Context, a *models.MediaArtifact) error
	DeleteArtifactRow(ctx context.Context, id string) error
	ListArtifactsByProject(ctx context.Context, projectID string) ([]models.MediaArtifact, error)

	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, id, status string, progress int, message, errMsg string) error
}
