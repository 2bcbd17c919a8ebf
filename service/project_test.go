package service

import (
	"context"
	"testing"

	"sceneflow-server/apperr"
	"sceneflow-server/auth"
	"sceneflow-server/models"
)

func TestProjectUpdateKeepsEmptyFields(t *testing.T) {
	store := newMemStore()
	seedProject(t, store, models.StageDraft)
	ps := NewProjects(store, auth.TenantOwnership{}, newFakeStorage())

	p, err := ps.Update(context.Background(), "alice", "p1", "新标题", "", "")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.Title != "新标题" {
		t.Fatalf("Title = %q", p.Title)
	}
	// 空字段不覆盖原值
	if p.StoryText != "从前有座山" {
		t.Fatalf("StoryText 被清空: %q", p.StoryText)
	}
}

func TestProjectDeleteCascades(t *testing.T) {
	store := newMemStore()
	seedProject(t, store, models.StageImages)
	scenes := seedScenes(t, store, "p1", 2)
	storage := newFakeStorage()
	storage.put("scenes/a.png", []byte("x"))
	store.artifacts["a1"] = &models.MediaArtifact{
		ID: "a1", SceneID: scenes[0].ID, Kind: models.KindImage, ObjectPath: "scenes/a.png",
	}
	ps := NewProjects(store, auth.TenantOwnership{}, storage)
	ctx := context.Background()

	if err := ps.Delete(ctx, "alice", "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.GetProject(ctx, "p1"); err == nil {
		t.Fatal("项目行未删除")
	}
	if got, _ := store.ListScenes(ctx, "p1"); len(got) != 0 {
		t.Fatalf("分镜残留 %d 行", len(got))
	}
	if storage.has("scenes/a.png") {
		t.Fatal("存储对象未删除")
	}
}

func TestProjectOwnershipEnforced(t *testing.T) {
	store := newMemStore()
	seedProject(t, store, models.StageDraft)
	ps := NewProjects(store, auth.TenantOwnership{}, newFakeStorage())

	if _, err := ps.Get(context.Background(), "mallory", "p1"); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("期望 unauthorized, got %v", err)
	}
	if err := ps.Delete(context.Background(), "mallory", "p1"); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("期望 unauthorized, got %v", err)
	}

	// 单租户实现放行任意调用者
	single := NewProjects(store, auth.SingleTenantOwnership{}, newFakeStorage())
	if _, err := single.Get(context.Background(), "anyone", "p1"); err != nil {
		t.Fatalf("单租户应放行, got %v", err)
	}
}
