package models

import "time"

// 分镜生成轨道状态
const (
	TrackStatusNone       = "none"
	TrackStatusProcessing = "processing"
	TrackStatusCompleted  = "completed"
	TrackStatusFailed     = "failed"
)

// 轨道种类（description 没有独立状态列，有文本即视为 completed）
const (
	KindDescription = "description"
	KindImage       = "image"
	KindVideo       = "video"
)

// ValidKind 判断轨道种类字面值是否合法。
func ValidKind(kind string) bool {
	switch kind {
	case KindDescription, KindImage, KindVideo:
		return true
	}
	return false
}

type Scene struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID string `gorm:"type:varchar(64);index" json:"projectId"`
	// OrderIndex 决定最终拼接顺序，项目内唯一且连续（从 0 起）
	OrderIndex int `gorm:"column:order_index" json:"orderIndex"`

	Description          string `gorm:"type:text" json:"description"`
	DescriptionConfirmed bool   `json:"descriptionConfirmed"`

	ImageStatus    string `gorm:"type:varchar(16)" json:"imageStatus"`
	ImageConfirmed bool   `json:"imageConfirmed"`

	VideoStatus    string `gorm:"type:varchar(16)" json:"videoStatus"`
	VideoConfirmed bool   `json:"videoConfirmed"`

	// LastError 保留最近一次生成失败的原因，供前端展示
	LastError string `gorm:"type:text" json:"lastError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Scene) TableName() string {
	return "scene"
}

// TrackStatus 返回指定轨道的当前状态。description 轨道由文本推导。
func (s *Scene) TrackStatus(kind string) string {
	switch kind {
	case KindDescription:
		if s.Description != "" {
			return TrackStatusCompleted
		}
		return TrackStatusNone
	case KindImage:
		return s.ImageStatus
	case KindVideo:
		return s.VideoStatus
	}
	return TrackStatusNone
}

// TrackConfirmed 返回指定轨道的确认标记。
func (s *Scene) TrackConfirmed(kind string) bool {
	switch kind {
	case KindDescription:
		return s.DescriptionConfirmed
	case KindImage:
		return s.ImageConfirmed
	case KindVideo:
		return s.VideoConfirmed
	}
	return false
}
