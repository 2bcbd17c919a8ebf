package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"sceneflow-server/config"

	_ "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var GormDB *gorm.DB

func InitDB() {
	if config.AppConfig == nil {
		log.Fatal("config.AppConfig is nil, call config.InitConfig first")
	}
	dsn := config.AppConfig.MySQL.DSN
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("打开数据库失败: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		log.Fatalf("连接数据库失败: %v", err)
	}

	GormDB, err = gorm.Open(mysql.New(mysql.Config{
		Conn: db,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("GORM 初始化失败: %v", err)
	}

	if err := GormDB.AutoMigrate(&Project{}, &Scene{}, &MediaArtifact{}, &Task{}); err != nil {
		log.Fatalf("自动建表失败: %v", err)
	}
	log.Println("数据库连接成功")
}

// ErrRowNotFound 由 GormStore 返回，service 层映射为 apperr.NotFound。
var ErrRowNotFound = errors.New("row not found")

// GormStore 是持久化层，所有写入都是单行条件更新，
// 保证状态检查 -> 置位 对单个分镜而言是原子的。
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// ---------- Project ----------

func (s *GormStore) CreateProject(ctx context.Context, p *Project) error {
	return s.DB.WithContext(ctx).Create(p).Error
}

func (s *GormStore) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := s.DB.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRowNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) UpdateProjectFields(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return s.DB.WithContext(ctx).Model(&Project{}).Where("id = ?", id).Updates(fields).Error
}

func (s *GormStore) SetStage(ctx context.Context, id string, stage string) error {
	return s.UpdateProjectFields(ctx, id, map[string]interface{}{"stage": stage})
}

// SetStageIfNot 仅当当前阶段不是 stage 时写入，返回是否实际变更。
// completed 转换的幂等性依赖这里。
func (s *GormStore) SetStageIfNot(ctx context.Context, id string, stage string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&Project{}).
		Where("id = ? AND stage <> ?", id, stage).
		Updates(map[string]interface{}{"stage": stage, "updated_at": time.Now()})
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) DeleteProjectRow(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Delete(&Project{}, "id = ?", id).Error
}

// ---------- Scene ----------

func (s *GormStore) CreateScenes(ctx context.Context, scenes []Scene) error {
	if len(scenes) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Create(&scenes).Error
}

// ListScenes 始终按 order_index 升序返回，报告与拼接顺序由此决定。
func (s *GormStore) ListScenes(ctx context.Context, projectID string) ([]Scene, error) {
	var scenes []Scene
	err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("order_index ASC").
		Find(&scenes).Error
	return scenes, err
}

func (s *GormStore) GetScene(ctx context.Context, projectID, sceneID string) (*Scene, error) {
	var sc Scene
	err := s.DB.WithContext(ctx).First(&sc, "id = ? AND project_id = ?", sceneID, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRowNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *GormStore) DeleteScenesByProject(ctx context.Context, projectID string) error {
	return s.DB.WithContext(ctx).Delete(&Scene{}, "project_id = ?", projectID).Error
}

func trackColumns(kind string) (statusCol, confirmedCol string, err error) {
	switch kind {
	case KindImage:
		return "image_status", "image_confirmed", nil
	case KindVideo:
		return "video_status", "video_confirmed", nil
	case KindDescription:
		return "", "description_confirmed", nil
	}
	return "", "", fmt.Errorf("unknown track kind: %s", kind)
}

// StartTrack 把轨道置为 processing，同时清除确认标记与上次错误。
// allowRestart=false 时仅允许从 none/failed 启动；条件不满足返回 changed=false。
func (s *GormStore) StartTrack(ctx context.Context, sceneID, kind string, allowRestart bool) (bool, error) {
	statusCol, confirmedCol, err := trackColumns(kind)
	if err != nil || statusCol == "" {
		return false, fmt.Errorf("track %q has no generation status", kind)
	}
	q := s.DB.WithContext(ctx).Model(&Scene{}).Where("id = ?", sceneID)
	if allowRestart {
		// 重新生成：只要不在 processing 中即可
		q = q.Where(statusCol+" <> ?", TrackStatusProcessing)
	} else {
		q = q.Where(statusCol+" IN ?", []string{TrackStatusNone, TrackStatusFailed})
	}
	res := q.Updates(map[string]interface{}{
		statusCol:    TrackStatusProcessing,
		confirmedCol: false,
		"last_error": "",
		"updated_at": time.Now(),
	})
	return res.RowsAffected > 0, res.Error
}

// ResolveTrack 把 processing 中的轨道落到 completed 或 failed。
func (s *GormStore) ResolveTrack(ctx context.Context, sceneID, kind, status, errMsg string) error {
	statusCol, _, err := trackColumns(kind)
	if err != nil || statusCol == "" {
		return fmt.Errorf("track %q has no generation status", kind)
	}
	return s.DB.WithContext(ctx).Model(&Scene{}).Where("id = ?", sceneID).
		Updates(map[string]interface{}{
			statusCol:    status,
			"last_error": errMsg,
			"updated_at": time.Now(),
		}).Error
}

// ConfirmTrack 条件置位确认标记：仅当轨道为 completed 且尚未确认。
// 返回是否实际变更（幂等调用第二次返回 false）。
func (s *GormStore) ConfirmTrack(ctx context.Context, sceneID, kind string) (bool, error) {
	statusCol, confirmedCol, err := trackColumns(kind)
	if err != nil {
		return false, err
	}
	q := s.DB.WithContext(ctx).Model(&Scene{}).
		Where("id = ?", sceneID).
		Where(confirmedCol+" = ?", false)
	if statusCol == "" {
		// description：有文本即视为 completed
		q = q.Where("description <> ''")
	} else {
		q = q.Where(statusCol+" = ?", TrackStatusCompleted)
	}
	res := q.Updates(map[string]interface{}{
		confirmedCol: true,
		"updated_at": time.Now(),
	})
	return res.RowsAffected > 0, res.Error
}

// ---------- MediaArtifact ----------

func (s *GormStore) GetArtifact(ctx context.Context, sceneID, kind string) (*MediaArtifact, error) {
	var a MediaArtifact
	err := s.DB.WithContext(ctx).First(&a, "scene_id = ? AND kind = ?", sceneID, kind).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *GormStore) CreateArtifact(ctx context.Context, a *MediaArtifact) error {
	return s.DB.WithContext(ctx).Create(a).Error
}

func (s *GormStore) DeleteArtifactRow(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Delete(&MediaArtifact{}, "id = ?", id).Error
}

func (s *GormStore) ListArtifactsByProject(ctx context.Context, projectID string) ([]MediaArtifact, error) {
	var list []MediaArtifact
	err := s.DB.WithContext(ctx).
		Joins("JOIN scene ON scene.id = media_artifact.scene_id").
		Where("scene.project_id = ?", projectID).
		Find(&list).Error
	return list, err
}

// ---------- Task ----------

func (s *GormStore) CreateTask(ctx context.Context, t *Task) error {
	return s.DB.WithContext(ctx).Create(t).Error
}

func (s *GormStore) GetTask(ctx context.Context, id string) (*Task, error) {
	var t Task
	err := s.DB.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRowNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) UpdateTask(ctx context.Context, id, status string, progress int, message, errMsg string) error {
	return s.DB.WithContext(ctx).Model(&Task{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"progress":   progress,
			"message":    message,
			"error":      errMsg,
			"updated_at": time.Now(),
		}).Error
}
