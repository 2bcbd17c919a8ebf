package service

import (
	"context"

	"sceneflow-server/apperr"
	"sceneflow-server/auth"
	"sceneflow-server/models"
)

// Coordinator 对项目的全部分镜执行批量确认。
// 分镜集合始终按 order_index 顺序读取，逐个做条件置位（单行原子），
// 单个分镜不满足条件只计入 skipped，绝不中断整批。
type Coordinator struct {
	guard
	stages *StageMachine
}

func NewCoordinator(store Store, owner auth.Ownership, stages *StageMachine) *Coordinator {
	return &Coordinator{guard: guard{store: store, owner: owner}, stages: stages}
}

// BulkResult 一次批量确认的统计。Changed 只计本次调用翻转的标记，
// 与是否触发了 completed 转换无关。
type BulkResult struct {
	Changed   int  `json:"changed"`
	Skipped   int  `json:"skipped"`
	Completed bool `json:"completed"`
}

// ConfirmAllDescriptions 把所有未确认的分镜描述置为已确认，返回变更数。
func (co *Coordinator) ConfirmAllDescriptions(ctx context.Context, callerID, projectID string) (*BulkResult, error) {
	return co.confirmAll(ctx, callerID, projectID, models.KindDescription)
}

// ConfirmAllVideos 把所有视频已生成完成的分镜置为已确认；未完成的跳过。
// 之后重新读取整个分镜集合（读己之写），全部已确认则触发 completed 转换。
func (co *Coordinator) ConfirmAllVideos(ctx context.Context, callerID, projectID string) (*BulkResult, error) {
	res, err := co.confirmAll(ctx, callerID, projectID, models.KindVideo)
	if err != nil {
		return nil, err
	}
	completed, err := co.stages.CompleteIfAllConfirmed(ctx, projectID)
	if err != nil {
		return nil, err
	}
	res.Completed = completed
	return res, nil
}

func (co *Coordinator) confirmAll(ctx context.Context, callerID, projectID, kind string) (*BulkResult, error) {
	if _, err := co.ownedProject(ctx, callerID, projectID); err != nil {
		return nil, err
	}
	scenes, err := co.store.ListScenes(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	res := &BulkResult{}
	for _, s := range scenes {
		changed, err := co.store.ConfirmTrack(ctx, s.ID, kind)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if changed {
			res.Changed++
			continue
		}
		if !s.TrackConfirmed(kind) {
			// 条件不满足（未生成完成），静默跳过
			res.Skipped++
		}
	}
	return res, nil
}
