package models

import "time"

// 任务状态（异步生成执行记录）
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusSuccess    = "finished"
	TaskStatusFailed     = "failed"
)

// 任务类型
const (
	TaskTypeGenerateScenes   = "generate_scenes"   // 故事 -> 分镜描述（批量建分镜）
	TaskTypeRegenerateScenes = "regenerate_scenes" // 带反馈重建整个分镜集合
	TaskTypeGenerateImage    = "generate_image"    // 描述 -> 分镜图片
	TaskTypeGenerateVideo    = "generate_video"    // 描述/图片 -> 分镜视频
)

// Task 记录一次异步生成的执行情况，供任务查询接口与 WebSocket 推送使用。
type Task struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID string `gorm:"type:varchar(64);index" json:"projectId"`
	SceneID   string `gorm:"type:varchar(64);index" json:"sceneId,omitempty"`
	Type      string `gorm:"type:varchar(32)" json:"type"`
	Status    string `gorm:"type:varchar(16)" json:"status"`
	Progress  int    `json:"progress"`
	Message   string `json:"message"`
	Error     string `gorm:"type:text" json:"error,omitempty"`
	// Feedback 仅 regenerate_scenes 使用，作为生成上下文传给 worker
	Feedback  string    `gorm:"type:text" json:"feedback,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Task) TableName() string {
	return "task"
}
