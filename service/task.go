package service

import (
	"context"
	"errors"

	"sceneflow-server/apperr"
	"sceneflow-server/auth"
	"sceneflow-server/models"
)

// Tasks 任务读取。任务归属于项目，读取前校验调用者对项目的所有权，
// 与其他资源走同一套 guard。
type Tasks struct {
	guard
}

func NewTasks(store Store, owner auth.Ownership) *Tasks {
	return &Tasks{guard{store: store, owner: owner}}
}

func (t *Tasks) Get(ctx context.Context, callerID, taskID string) (*models.Task, error) {
	task, err := t.store.GetTask(ctx, taskID)
	if errors.Is(err, models.ErrRowNotFound) {
		return nil, apperr.NotFound("任务不存在")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if _, err := t.ownedProject(ctx, callerID, task.ProjectID); err != nil {
		return nil, err
	}
	return task, nil
}
