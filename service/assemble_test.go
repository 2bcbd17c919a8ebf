package service

import (
	"context"
	"os"
	"strings"
	"testing"

	"sceneflow-server/apperr"
	"sceneflow-server/auth"
	"sceneflow-server/models"
)

// seedCompletedProject 构造一个 completed 项目：order_index 乱序写入，
// 每个分镜一个视频产物，内容即标注字母。
func seedCompletedProject(t *testing.T, store *memStore, storage *fakeStorage) {
	t.Helper()
	p := &models.Project{ID: "p1", OwnerID: "alice", Title: "山海故事", Stage: models.StageCompleted}
	if err := store.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	// 故意乱序：order_index 2,0,1 对应内容 B,A,C 之外的排列
	rows := []struct {
		id    string
		order int
		body  string
	}{
		{"s-x", 2, "CCC"},
		{"s-y", 0, "AAA"},
		{"s-z", 1, "BBB"},
	}
	var scenes []models.Scene
	for _, r := range rows {
		scenes = append(scenes, models.Scene{
			ID: r.id, ProjectID: "p1", OrderIndex: r.order,
			VideoStatus: models.TrackStatusCompleted, VideoConfirmed: true,
		})
		path := "scenes/" + r.id + "/video.mp4"
		storage.put(path, []byte(r.body))
		store.artifacts["art-"+r.id] = &models.MediaArtifact{
			ID: "art-" + r.id, SceneID: r.id, Kind: models.KindVideo, ObjectPath: path,
		}
	}
	if err := store.CreateScenes(context.Background(), scenes); err != nil {
		t.Fatalf("CreateScenes: %v", err)
	}
}

func TestAssembleOrdersByOrderIndex(t *testing.T) {
	store := newMemStore()
	storage := newFakeStorage()
	seedCompletedProject(t, store, storage)
	concat := &fakeConcat{}
	a := NewAssembler(store, auth.TenantOwnership{}, storage, concat, 0, t.TempDir())

	res, err := a.Assemble(context.Background(), "alice", "p1")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if res.SceneCount != 3 {
		t.Fatalf("SceneCount = %d", res.SceneCount)
	}
	// 拼接结果按 order_index 升序，而不是写入顺序
	if got := string(res.Data); got != "AAABBBCCC" {
		t.Fatalf("拼接结果 = %q, 期望 AAABBBCCC", got)
	}
	// 清单本身也按顺序列出分镜文件
	wantLines := []string{
		"ffconcat version 1.0",
		"file 'scene-0000.mp4'",
		"file 'scene-0001.mp4'",
		"file 'scene-0002.mp4'",
	}
	gotLines := strings.Split(strings.TrimSpace(concat.lastManifest), "\n")
	if len(gotLines) != len(wantLines) {
		t.Fatalf("清单 = %q", concat.lastManifest)
	}
	for i := range wantLines {
		if gotLines[i] != wantLines[i] {
			t.Fatalf("清单第 %d 行 = %q, 期望 %q", i, gotLines[i], wantLines[i])
		}
	}
	if res.Filename != "山海故事.mp4" {
		t.Fatalf("Filename = %q", res.Filename)
	}
}

func TestAssembleRequiresCompletedStage(t *testing.T) {
	store := newMemStore()
	storage := newFakeStorage()
	seedCompletedProject(t, store, storage)
	store.projects["p1"].Stage = models.StageVideos
	a := NewAssembler(store, auth.TenantOwnership{}, storage, &fakeConcat{}, 0, t.TempDir())

	_, err := a.Assemble(context.Background(), "alice", "p1")
	wantKind(t, err, apperr.KindPreconditionFailed)
}

func TestAssembleNoArtifacts(t *testing.T) {
	store := newMemStore()
	p := &models.Project{ID: "p1", OwnerID: "alice", Stage: models.StageCompleted}
	_ = store.CreateProject(context.Background(), p)
	seedScenes(t, store, "p1", 2) // 有分镜但没有视频产物
	a := NewAssembler(store, auth.TenantOwnership{}, newFakeStorage(), &fakeConcat{}, 0, t.TempDir())

	_, err := a.Assemble(context.Background(), "alice", "p1")
	wantKind(t, err, apperr.KindNoArtifacts)
}

func TestAssembleFetchFailureAborts(t *testing.T) {
	store := newMemStore()
	storage := newFakeStorage()
	seedCompletedProject(t, store, storage)
	// 删除中间那个分镜（order_index=1）的对象，下载即失败
	_ = storage.Delete(context.Background(), "scenes/s-z/video.mp4")
	workDir := t.TempDir()
	a := NewAssembler(store, auth.TenantOwnership{}, storage, &fakeConcat{}, 0, workDir)

	_, err := a.Assemble(context.Background(), "alice", "p1")
	wantKind(t, err, apperr.KindFetchFailed)
	// 失败路径同样清理工作区
	assertWorkDirEmpty(t, workDir)
}

func TestAssembleConcatFailureCleansWorkspace(t *testing.T) {
	store := newMemStore()
	storage := newFakeStorage()
	seedCompletedProject(t, store, storage)
	workDir := t.TempDir()
	a := NewAssembler(store, auth.TenantOwnership{}, storage, &fakeConcat{fail: true}, 0, workDir)

	_, err := a.Assemble(context.Background(), "alice", "p1")
	wantKind(t, err, apperr.KindConcatenationFailed)
	assertWorkDirEmpty(t, workDir)
}

func TestAssembleSuccessCleansWorkspace(t *testing.T) {
	store := newMemStore()
	storage := newFakeStorage()
	seedCompletedProject(t, store, storage)
	workDir := t.TempDir()
	a := NewAssembler(store, auth.TenantOwnership{}, storage, &fakeConcat{}, 0, workDir)

	if _, err := a.Assemble(context.Background(), "alice", "p1"); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	assertWorkDirEmpty(t, workDir)
}

func assertWorkDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("工作区未清理, 残留 %d 项", len(entries))
	}
}

func TestOutputFilename(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"", "story_video.mp4"},
		{"   ", "story_video.mp4"},
		{`<>:"/\|?*`, "story_video.mp4"},
		{"My Story", "My_Story.mp4"},
		{"a/b:c", "abc.mp4"},
	}
	for _, c := range cases {
		if got := outputFilename(c.title); got != c.want {
			t.Errorf("outputFilename(%q) = %q, 期望 %q", c.title, got, c.want)
		}
	}
}
