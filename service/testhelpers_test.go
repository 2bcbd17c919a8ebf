package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"sceneflow-server/models"
)

// memStore 内存实现 Store，语义与 GormStore 一致（条件更新返回是否变更）。
type memStore struct {
	mu        sync.Mutex
	projects  map[string]*models.Project
	scenes    map[string]*models.Scene
	artifacts map[string]*models.MediaArtifact
	tasks     map[string]*models.Task
}

func newMemStore() *memStore {
	return &memStore{
		projects:  make(map[string]*models.Project),
		scenes:    make(map[string]*models.Scene),
		artifacts: make(map[string]*models.MediaArtifact),
		tasks:     make(map[string]*models.Task),
	}
}

func (m *memStore) CreateProject(_ context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memStore) GetProject(_ context.Context, id string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, models.ErrRowNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) UpdateProjectFields(_ context.Context, id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return models.ErrRowNotFound
	}
	for k, v := range fields {
		switch k {
		case "title":
			p.Title = v.(string)
		case "story_text":
			p.StoryText = v.(string)
		case "style":
			p.Style = v.(string)
		case "stage":
			p.Stage = v.(string)
		}
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) SetStage(ctx context.Context, id, stage string) error {
	return m.UpdateProjectFields(ctx, id, map[string]interface{}{"stage": stage})
}

func (m *memStore) SetStageIfNot(_ context.Context, id, stage string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok || p.Stage == stage {
		return false, nil
	}
	p.Stage = stage
	return true, nil
}

func (m *memStore) DeleteProjectRow(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	return nil
}

func (m *memStore) CreateScenes(_ context.Context, scenes []models.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range scenes {
		cp := scenes[i]
		m.scenes[cp.ID] = &cp
	}
	return nil
}

func (m *memStore) ListScenes(_ context.Context, projectID string) ([]models.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Scene
	for _, s := range m.scenes {
		if s.ProjectID == projectID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *memStore) GetScene(_ context.Context, projectID, sceneID string) (*models.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenes[sceneID]
	if !ok || s.ProjectID != projectID {
		return nil, models.ErrRowNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) DeleteScenesByProject(_ context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.scenes {
		if s.ProjectID == projectID {
			delete(m.scenes, id)
		}
	}
	return nil
}

func (m *memStore) StartTrack(_ context.Context, sceneID, kind string, allowRestart bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenes[sceneID]
	if !ok {
		return false, nil
	}
	var status *string
	var confirmed *bool
	switch kind {
	case models.KindImage:
		status, confirmed = &s.ImageStatus, &s.ImageConfirmed
	case models.KindVideo:
		status, confirmed = &s.VideoStatus, &s.VideoConfirmed
	default:
		return false, fmt.Errorf("track %q has no generation status", kind)
	}
	if allowRestart {
		if *status == models.TrackStatusProcessing {
			return false, nil
		}
	} else if *status != models.TrackStatusNone && *status != models.TrackStatusFailed {
		return false, nil
	}
	*status = models.TrackStatusProcessing
	*confirmed = false
	s.LastError = ""
	return true, nil
}

func (m *memStore) ResolveTrack(_ context.Context, sceneID, kind, status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenes[sceneID]
	if !ok {
		return models.ErrRowNotFound
	}
	switch kind {
	case models.KindImage:
		s.ImageStatus = status
	case models.KindVideo:
		s.VideoStatus = status
	default:
		return fmt.Errorf("track %q has no generation status", kind)
	}
	s.LastError = errMsg
	return nil
}

func (m *memStore) ConfirmTrack(_ context.Context, sceneID, kind string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenes[sceneID]
	if !ok {
		return false, nil
	}
	switch kind {
	case models.KindDescription:
		if s.Description == "" || s.DescriptionConfirmed {
			return false, nil
		}
		s.DescriptionConfirmed = true
	case models.KindImage:
		if s.ImageStatus != models.TrackStatusCompleted || s.ImageConfirmed {
			return false, nil
		}
		s.ImageConfirmed = true
	case models.KindVideo:
		if s.VideoStatus != models.TrackStatusCompleted || s.VideoConfirmed {
			return false, nil
		}
		s.VideoConfirmed = true
	default:
		return false, fmt.Errorf("unknown track kind: %s", kind)
	}
	return true, nil
}

func (m *memStore) GetArtifact(_ context.Context, sceneID, kind string) (*models.MediaArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.artifacts {
		if a.SceneID == sceneID && a.Kind == kind {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateArtifact(_ context.Context, a *models.MediaArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.artifacts[a.ID] = &cp
	return nil
}

func (m *memStore) DeleteArtifactRow(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.artifacts, id)
	return nil
}

func (m *memStore) ListArtifactsByProject(_ context.Context, projectID string) ([]models.MediaArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MediaArtifact
	for _, a := range m.artifacts {
		s, ok := m.scenes[a.SceneID]
		if ok && s.ProjectID == projectID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) CreateTask(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memStore) GetTask(_ context.Context, id string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, models.ErrRowNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) UpdateTask(_ context.Context, id, status string, progress int, message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return models.ErrRowNotFound
	}
	t.Status = status
	t.Progress = progress
	t.Message = message
	t.Error = errMsg
	return nil
}

// fakeStorage 内存对象存储。
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(_ context.Context, objectPath string, reader io.Reader, _ int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return err
	}
	f.objects[objectPath] = buf.Bytes()
	return nil
}

func (f *fakeStorage) Download(_ context.Context, objectPath string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectPath]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", objectPath)
	}
	return data, nil
}

func (f *fakeStorage) Delete(_ context.Context, objectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectPath)
	return nil
}

func (f *fakeStorage) SignedURL(_ context.Context, objectPath string, _ time.Duration) (string, error) {
	return "https://signed.example/" + objectPath, nil
}

func (f *fakeStorage) has(objectPath string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[objectPath]
	return ok
}

func (f *fakeStorage) put(objectPath string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objectPath] = data
}

// stubGenerator 固定返回的生成服务。
type stubGenerator struct {
	descriptions []string
	imageData    []byte
	videoData    []byte
	err          error

	// 记录最近一次 storyboard 调用的上下文
	lastPrior    []string
	lastFeedback string
}

func (g *stubGenerator) GenerateSceneDescriptions(_ context.Context, _, _ string, prior []string, feedback string) ([]string, error) {
	g.lastPrior = prior
	g.lastFeedback = feedback
	if g.err != nil {
		return nil, g.err
	}
	return g.descriptions, nil
}

func (g *stubGenerator) GenerateImage(context.Context, string, string, ImageOptions) ([]byte, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.imageData, nil
}

func (g *stubGenerator) GenerateVideo(context.Context, string, string, string, VideoOptions) ([]byte, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.videoData, nil
}

// fakeConcat 解析清单并把清单里各文件内容按顺序拼进输出文件。
// fail=true 时模拟工具非零退出（不产出输出）。
type fakeConcat struct {
	fail bool
	// 记录最近一次收到的清单内容
	lastManifest string
}

func (f *fakeConcat) Concatenate(_ context.Context, manifestPath, outputPath string) error {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return err
	}
	f.lastManifest = string(raw)
	if f.fail {
		return fmt.Errorf("exit status 1")
	}
	dir := filepath.Dir(manifestPath)
	var out bytes.Buffer
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "file '") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		out.Write(data)
	}
	return os.WriteFile(outputPath, out.Bytes(), 0o644)
}
