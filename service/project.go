package service

import (
	"context"
	"log"

	"sceneflow-server/apperr"
	"sceneflow-server/auth"
	"sceneflow-server/models"

	"github.com/google/uuid"
)

// Projects 项目 CRUD。删除是一个有序补偿序列：
// 对象存储 -> 产物记录 -> 分镜行 -> 项目行。中途失败只会留下孤儿行
// （可恢复），不会留下孤儿存储对象。
type Projects struct {
	guard
	storage ObjectStorage
}

func NewProjects(store Store, owner auth.Ownership, storage ObjectStorage) *Projects {
	return &Projects{guard: guard{store: store, owner: owner}, storage: storage}
}

func (ps *Projects) Create(ctx context.Context, callerID, title, storyText, style string) (*models.Project, error) {
	p := &models.Project{
		ID:        uuid.NewString(),
		OwnerID:   callerID,
		Title:     title,
		StoryText: storyText,
		Style:     style,
		Stage:     models.StageDraft,
	}
	if err := ps.store.CreateProject(ctx, p); err != nil {
		return nil, apperr.Internal(err)
	}
	return p, nil
}

// ProjectDetail 项目 + 有序分镜集合 + 产物。
type ProjectDetail struct {
	Project   *models.Project                   `json:"project"`
	Scenes    []models.Scene                    `json:"scenes"`
	Artifacts map[string][]models.MediaArtifact `json:"artifacts"` // scene_id -> 产物
}

func (ps *Projects) Get(ctx context.Context, callerID, projectID string) (*ProjectDetail, error) {
	p, err := ps.ownedProject(ctx, callerID, projectID)
	if err != nil {
		return nil, err
	}
	scenes, err := ps.store.ListScenes(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	artifacts, err := ps.store.ListArtifactsByProject(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	byScene := make(map[string][]models.MediaArtifact)
	for _, a := range artifacts {
		byScene[a.SceneID] = append(byScene[a.SceneID], a)
	}
	return &ProjectDetail{Project: p, Scenes: scenes, Artifacts: byScene}, nil
}

// Update 更新标题/故事文本/风格（仅非空字段）。
func (ps *Projects) Update(ctx context.Context, callerID, projectID, title, storyText, style string) (*models.Project, error) {
	if _, err := ps.ownedProject(ctx, callerID, projectID); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if title != "" {
		fields["title"] = title
	}
	if storyText != "" {
		fields["story_text"] = storyText
	}
	if style != "" {
		fields["style"] = style
	}
	if len(fields) > 0 {
		if err := ps.store.UpdateProjectFields(ctx, projectID, fields); err != nil {
			return nil, apperr.Internal(err)
		}
	}
	p, err := ps.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return p, nil
}

// Delete 级联删除项目。
func (ps *Projects) Delete(ctx context.Context, callerID, projectID string) error {
	if _, err := ps.ownedProject(ctx, callerID, projectID); err != nil {
		return err
	}
	artifacts, err := ps.store.ListArtifactsByProject(ctx, projectID)
	if err != nil {
		return apperr.Internal(err)
	}
	for _, a := range artifacts {
		if err := ps.storage.Delete(ctx, a.ObjectPath); err != nil {
			// 存储对象删除失败则中止，下一次删除重试整个序列
			return apperr.Internal(err)
		}
		if err := ps.store.DeleteArtifactRow(ctx, a.ID); err != nil {
			return apperr.Internal(err)
		}
	}
	if err := ps.store.DeleteScenesByProject(ctx, projectID); err != nil {
		return apperr.Internal(err)
	}
	if err := ps.store.DeleteProjectRow(ctx, projectID); err != nil {
		return apperr.Internal(err)
	}
	log.Printf("项目 %s 已删除", projectID)
	return nil
}
