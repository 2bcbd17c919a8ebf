package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"sceneflow-server/apperr"
	"sceneflow-server/auth"
	"sceneflow-server/models"
)

// guard 封装 项目读取 + 所有权校验，工作流服务共用。
// 所有权校验无条件执行，单租户部署由 Ownership 实现决定恒为真。
type guard struct {
	store Store
	owner auth.Ownership
}

func (g guard) ownedProject(ctx context.Context, callerID, projectID string) (*models.Project, error) {
	p, err := g.store.GetProject(ctx, projectID)
	if errors.Is(err, models.ErrRowNotFound) {
		return nil, apperr.NotFound("项目不存在")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !g.owner.IsOwner(p.OwnerID, callerID) {
		return nil, apperr.Unauthorized("没有该项目的操作权限")
	}
	return p, nil
}

// StageMachine 是项目阶段推进的唯一裁决者。阶段只前进不回退，
// 唯一的回退路径是 RegenerateScenes 显式重置。
type StageMachine struct {
	guard
}

func NewStageMachine(store Store, owner auth.Ownership) *StageMachine {
	return &StageMachine{guard{store: store, owner: owner}}
}

// SetStage 显式设置项目阶段。未知字面值、回退、前置条件不满足均拒绝。
func (m *StageMachine) SetStage(ctx context.Context, callerID, projectID, stage string) error {
	if !models.ValidStage(stage) {
		return apperr.InvalidStage(fmt.Sprintf("未知的阶段: %q", stage))
	}
	p, err := m.ownedProject(ctx, callerID, projectID)
	if err != nil {
		return err
	}

	cur, target := models.StageRank(p.Stage), models.StageRank(stage)
	if target == cur {
		return nil // 幂等
	}
	if target < cur {
		return apperr.Precondition("阶段不允许回退")
	}

	scenes, err := m.store.ListScenes(ctx, projectID)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := checkStagePrecondition(p, scenes, stage); err != nil {
		return err
	}
	if err := m.store.SetStage(ctx, projectID, stage); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// checkStagePrecondition 阶段合法性是 当前状态+分镜聚合 的纯函数，
// 绝不从无关写入中隐式推断。
func checkStagePrecondition(p *models.Project, scenes []models.Scene, stage string) error {
	switch stage {
	case models.StageDraft:
		return nil
	case models.StageScenes:
		if p.StoryText == "" {
			return apperr.Precondition("项目没有故事文本，无法进入 scenes 阶段")
		}
	case models.StageImages, models.StageVideos:
		if len(scenes) == 0 {
			return apperr.Precondition("项目还没有分镜")
		}
	case models.StageCompleted:
		if !allVideosConfirmed(scenes) {
			return apperr.Precondition("还有分镜视频未确认，无法进入 completed 阶段")
		}
	}
	return nil
}

func allVideosConfirmed(scenes []models.Scene) bool {
	if len(scenes) == 0 {
		return false
	}
	for _, s := range scenes {
		if !s.VideoConfirmed {
			return false
		}
	}
	return true
}

// CompleteIfAllConfirmed 重新读取分镜集合（不使用任何缓存视图），
// 全部视频已确认时把项目置为 completed。幂等：已是 completed 时无副作用。
// 返回本次调用是否实际完成了转换。
func (m *StageMachine) CompleteIfAllConfirmed(ctx context.Context, projectID string) (bool, error) {
	scenes, err := m.store.ListScenes(ctx, projectID)
	if err != nil {
		return false, apperr.Internal(err)
	}
	if !allVideosConfirmed(scenes) {
		return false, nil
	}
	changed, err := m.store.SetStageIfNot(ctx, projectID, models.StageCompleted)
	if err != nil {
		return false, apperr.Internal(err)
	}
	if changed {
		log.Printf("项目 %s 全部视频已确认，进入 completed 阶段", projectID)
	}
	return changed, nil
}
