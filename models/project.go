package models

import "time"

// 项目阶段常量（工作流推进顺序，只允许前进）
const (
	StageDraft     = "draft"     // 已创建，仅有故事文本
	StageScenes    = "scenes"    // 分镜描述已生成
	StageImages    = "images"    // 分镜图片生成中/已生成
	StageVideos    = "videos"    // 分镜视频生成中/已生成
	StageCompleted = "completed" // 所有分镜视频已确认，可整片导出
)

// stageOrder 定义阶段先后，用于禁止回退。
var stageOrder = map[string]int{
	StageDraft:     0,
	StageScenes:    1,
	StageImages:    2,
	StageVideos:    3,
	StageCompleted: 4,
}

// ValidStage 判断阶段字面值是否合法。
func ValidStage(stage string) bool {
	_, ok := stageOrder[stage]
	return ok
}

// StageRank 返回阶段序号，非法值返回 -1。
func StageRank(stage string) int {
	if r, ok := stageOrder[stage]; ok {
		return r
	}
	return -1
}

type Project struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OwnerID   string    `gorm:"type:varchar(64);index" json:"ownerId"`
	Title     string    `json:"title"`
	StoryText string    `gorm:"type:text" json:"storyText"`
	Style     string    `json:"style"`
	Stage     string    `gorm:"type:varchar(16)" json:"stage"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Project) TableName() string {
	return "project"
}
