package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"sceneflow-server/apperr"
	"sceneflow-server/auth"
	"sceneflow-server/models"

	"github.com/google/uuid"
)

// EnqueueFunc 把生成任务推入执行队列（生产环境为 asynq，测试中可直接同步执行）。
type EnqueueFunc func(taskID string) error

// Lifecycle 管理单个分镜的三条生成轨道（描述/图片/视频）：
// none -> processing -> {completed | failed}，确认位只能从 completed 置起。
type Lifecycle struct {
	guard
	storage   ObjectStorage
	generator Generator
	enqueue   EnqueueFunc
}

func NewLifecycle(store Store, owner auth.Ownership, storage ObjectStorage, gen Generator, enqueue EnqueueFunc) *Lifecycle {
	return &Lifecycle{
		guard:     guard{store: store, owner: owner},
		storage:   storage,
		generator: gen,
		enqueue:   enqueue,
	}
}

// Generate 启动一个分镜的图片/视频生成。轨道必须处于 none/failed，
// 或显式要求重新生成（regenerate=true，此时清除确认位并删除旧产物）。
func (l *Lifecycle) Generate(ctx context.Context, callerID, projectID, sceneID, kind string, regenerate bool) (*models.Task, error) {
	if kind != models.KindImage && kind != models.KindVideo {
		return nil, apperr.Precondition(fmt.Sprintf("轨道 %q 不支持生成", kind))
	}
	if _, err := l.ownedProject(ctx, callerID, projectID); err != nil {
		return nil, err
	}
	scene, err := l.store.GetScene(ctx, projectID, sceneID)
	if errors.Is(err, models.ErrRowNotFound) {
		return nil, apperr.NotFound("分镜不存在")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	// 状态检查 -> processing 是一次条件更新，并发重复触发只会有一个生效
	started, err := l.store.StartTrack(ctx, sceneID, kind, regenerate)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !started {
		if scene.TrackStatus(kind) == models.TrackStatusProcessing {
			return nil, apperr.Precondition("该轨道正在生成中")
		}
		return nil, apperr.Precondition("该轨道已有生成结果，重新生成请显式指定 regenerate")
	}

	// 清除旧产物：先删对象存储，再删记录，避免孤儿对象
	if err := l.removeArtifact(ctx, sceneID, kind); err != nil {
		_ = l.store.ResolveTrack(ctx, sceneID, kind, models.TrackStatusFailed, "清除旧产物失败")
		return nil, apperr.Internal(err)
	}

	taskType := models.TaskTypeGenerateImage
	if kind == models.KindVideo {
		taskType = models.TaskTypeGenerateVideo
	}
	task := &models.Task{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		SceneID:   sceneID,
		Type:      taskType,
		Status:    models.TaskStatusPending,
		Message:   "生成任务排队中",
	}
	if err := l.store.CreateTask(ctx, task); err != nil {
		_ = l.store.ResolveTrack(ctx, sceneID, kind, models.TrackStatusFailed, "任务创建失败")
		return nil, apperr.Internal(err)
	}
	if err := l.enqueue(task.ID); err != nil {
		_ = l.store.ResolveTrack(ctx, sceneID, kind, models.TrackStatusFailed, "任务入队失败")
		_ = l.store.UpdateTask(ctx, task.ID, models.TaskStatusFailed, 0, "", "任务入队失败")
		return nil, apperr.Internal(err)
	}
	return task, nil
}

// Confirm 确认一条轨道。只有 completed 可以确认；重复确认是 no-op。
func (l *Lifecycle) Confirm(ctx context.Context, callerID, projectID, sceneID, kind string) error {
	if !models.ValidKind(kind) {
		return apperr.Precondition(fmt.Sprintf("未知的轨道: %q", kind))
	}
	if _, err := l.ownedProject(ctx, callerID, projectID); err != nil {
		return err
	}
	scene, err := l.store.GetScene(ctx, projectID, sceneID)
	if errors.Is(err, models.ErrRowNotFound) {
		return apperr.NotFound("分镜不存在")
	}
	if err != nil {
		return apperr.Internal(err)
	}

	changed, err := l.store.ConfirmTrack(ctx, sceneID, kind)
	if err != nil {
		return apperr.Internal(err)
	}
	if !changed {
		if scene.TrackConfirmed(kind) {
			return nil // 幂等
		}
		return apperr.Precondition("该轨道尚未生成完成，不能确认")
	}
	return nil
}

// GenerateScenes 为项目生成首个分镜集合。要求有故事文本，阶段不超过 scenes。
func (l *Lifecycle) GenerateScenes(ctx context.Context, callerID, projectID string) (*models.Task, error) {
	p, err := l.ownedProject(ctx, callerID, projectID)
	if err != nil {
		return nil, err
	}
	if p.StoryText == "" {
		return nil, apperr.Precondition("项目没有故事文本，无法生成分镜")
	}
	if models.StageRank(p.Stage) > models.StageRank(models.StageScenes) {
		return nil, apperr.Precondition("项目已进入后续阶段，请使用重新生成")
	}
	return l.createSceneTask(ctx, projectID, models.TaskTypeGenerateScenes, "")
}

// RegenerateScenes 重建整个分镜集合：旧分镜的描述与自由文本反馈作为上下文
// 传给生成服务，旧集合（含产物）被删除。跨生成服务边界不具事务性，
// 生成成功但持久化失败时旧集合已不可恢复，由操作者重试。
func (l *Lifecycle) RegenerateScenes(ctx context.Context, callerID, projectID, feedback string) (*models.Task, error) {
	p, err := l.ownedProject(ctx, callerID, projectID)
	if err != nil {
		return nil, err
	}
	if p.StoryText == "" {
		return nil, apperr.Precondition("项目没有故事文本，无法生成分镜")
	}
	return l.createSceneTask(ctx, projectID, models.TaskTypeRegenerateScenes, feedback)
}

func (l *Lifecycle) createSceneTask(ctx context.Context, projectID, taskType, feedback string) (*models.Task, error) {
	task := &models.Task{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Type:      taskType,
		Status:    models.TaskStatusPending,
		Message:   "分镜脚本生成任务排队中",
		Feedback:  feedback,
	}
	if err := l.store.CreateTask(ctx, task); err != nil {
		return nil, apperr.Internal(err)
	}
	if err := l.enqueue(task.ID); err != nil {
		_ = l.store.UpdateTask(ctx, task.ID, models.TaskStatusFailed, 0, "", "任务入队失败")
		return nil, apperr.Internal(err)
	}
	return task, nil
}

// ---------- 任务执行（processor 调用，不做所有权校验） ----------

// RunSceneGeneration 执行 generate_scenes / regenerate_scenes 任务。
func (l *Lifecycle) RunSceneGeneration(ctx context.Context, task *models.Task) error {
	p, err := l.store.GetProject(ctx, task.ProjectID)
	if err != nil {
		return fmt.Errorf("project not found: %w", err)
	}

	var prior []string
	if task.Type == models.TaskTypeRegenerateScenes {
		old, err := l.store.ListScenes(ctx, task.ProjectID)
		if err != nil {
			return err
		}
		for _, s := range old {
			prior = append(prior, s.Description)
		}
	}

	descriptions, err := l.generator.GenerateSceneDescriptions(ctx, p.StoryText, p.Style, prior, task.Feedback)
	if err != nil {
		return err
	}

	// 破坏性步骤：从这里开始旧集合不再保留
	if task.Type == models.TaskTypeRegenerateScenes {
		if err := l.removeProjectScenes(ctx, task.ProjectID); err != nil {
			return err
		}
	}

	scenes := make([]models.Scene, 0, len(descriptions))
	for i, desc := range descriptions {
		scenes = append(scenes, models.Scene{
			ID:          uuid.NewString(),
			ProjectID:   task.ProjectID,
			OrderIndex:  i,
			Description: desc,
			ImageStatus: models.TrackStatusNone,
			VideoStatus: models.TrackStatusNone,
		})
	}
	if err := l.store.CreateScenes(ctx, scenes); err != nil {
		return fmt.Errorf("批量创建分镜失败: %w", err)
	}
	if err := l.store.SetStage(ctx, task.ProjectID, models.StageScenes); err != nil {
		return err
	}
	log.Printf("项目 %s 生成 %d 个分镜", task.ProjectID, len(scenes))
	return nil
}

// RunTrackGeneration 执行 generate_image / generate_video 任务，
// 并把轨道落到 completed / failed —— 无论生成调用如何退出，
// 状态都不会停留在 processing。
func (l *Lifecycle) RunTrackGeneration(ctx context.Context, task *models.Task) (err error) {
	kind := models.KindImage
	if task.Type == models.TaskTypeGenerateVideo {
		kind = models.KindVideo
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generation panicked: %v", r)
		}
		if err != nil {
			if rerr := l.store.ResolveTrack(context.WithoutCancel(ctx), task.SceneID, kind, models.TrackStatusFailed, err.Error()); rerr != nil {
				log.Printf("标记轨道失败出错 scene=%s: %v", task.SceneID, rerr)
			}
		}
	}()

	p, err := l.store.GetProject(ctx, task.ProjectID)
	if err != nil {
		return fmt.Errorf("project not found: %w", err)
	}
	scene, err := l.store.GetScene(ctx, task.ProjectID, task.SceneID)
	if err != nil {
		return fmt.Errorf("scene not found: %w", err)
	}

	var data []byte
	var objectPath, contentType string
	switch kind {
	case models.KindImage:
		data, err = l.generator.GenerateImage(ctx, scene.Description, p.Style, ImageOptions{})
		objectPath = fmt.Sprintf("scenes/%s/image-%s.png", scene.ID, uuid.NewString())
		contentType = "image/png"
	case models.KindVideo:
		imageURL := ""
		if a, aerr := l.store.GetArtifact(ctx, scene.ID, models.KindImage); aerr == nil && a != nil {
			if u, uerr := l.storage.SignedURL(ctx, a.ObjectPath, time.Hour); uerr == nil {
				imageURL = u
			}
		}
		data, err = l.generator.GenerateVideo(ctx, scene.Description, p.Style, imageURL, VideoOptions{})
		objectPath = fmt.Sprintf("scenes/%s/video-%s.mp4", scene.ID, uuid.NewString())
		contentType = "video/mp4"
	}
	if err != nil {
		return err
	}

	if err = l.storage.Upload(ctx, objectPath, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return fmt.Errorf("上传产物失败: %w", err)
	}
	artifact := &models.MediaArtifact{
		ID:          uuid.NewString(),
		SceneID:     scene.ID,
		Kind:        kind,
		ObjectPath:  objectPath,
		ContentType: contentType,
		ByteSize:    int64(len(data)),
	}
	if err = l.store.CreateArtifact(ctx, artifact); err != nil {
		// 记录写入失败则回收刚上传的对象
		if derr := l.storage.Delete(ctx, objectPath); derr != nil {
			log.Printf("回收对象失败 %s: %v", objectPath, derr)
		}
		return fmt.Errorf("记录产物失败: %w", err)
	}

	if err = l.store.ResolveTrack(ctx, scene.ID, kind, models.TrackStatusCompleted, ""); err != nil {
		return fmt.Errorf("更新轨道状态失败: %w", err)
	}
	log.Printf("分镜 %s %s 生成完成: %s", scene.ID, kind, objectPath)
	return nil
}

// removeArtifact 删除某分镜某种类的当前产物（对象存储在前，记录在后）。
func (l *Lifecycle) removeArtifact(ctx context.Context, sceneID, kind string) error {
	a, err := l.store.GetArtifact(ctx, sceneID, kind)
	if err != nil {
		return err
	}
	if a == nil {
		return nil
	}
	if err := l.storage.Delete(ctx, a.ObjectPath); err != nil {
		return fmt.Errorf("删除旧对象失败 %s: %w", a.ObjectPath, err)
	}
	return l.store.DeleteArtifactRow(ctx, a.ID)
}

// removeProjectScenes 级联删除项目的全部分镜：对象 -> 产物记录 -> 分镜行。
func (l *Lifecycle) removeProjectScenes(ctx context.Context, projectID string) error {
	artifacts, err := l.store.ListArtifactsByProject(ctx, projectID)
	if err != nil {
		return err
	}
	for _, a := range artifacts {
		if err := l.storage.Delete(ctx, a.ObjectPath); err != nil {
			return fmt.Errorf("删除对象失败 %s: %w", a.ObjectPath, err)
		}
		if err := l.store.DeleteArtifactRow(ctx, a.ID); err != nil {
			return err
		}
	}
	return l.store.DeleteScenesByProject(ctx, projectID)
}
