package models

import "time"

// MediaArtifact 一个分镜当前的生成产物（图片或视频）。
// 同一分镜同一种类最多只有一条记录：重新生成时先删旧的（对象存储 + 记录），
// 再写入新的，避免遗留孤儿对象。
type MediaArtifact struct {
	ID      string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SceneID string `gorm:"type:varchar(64);index:idx_scene_kind,unique" json:"sceneId"`
	// Kind 取 KindImage / KindVideo
	Kind        string    `gorm:"type:varchar(16);index:idx_scene_kind,unique" json:"kind"`
	ObjectPath  string    `gorm:"type:varchar(512)" json:"objectPath"`
	ContentType string    `gorm:"type:varchar(64)" json:"contentType"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	ByteSize    int64     `json:"byteSize"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (MediaArtifact) TableName() string {
	return "media_artifact"
}
