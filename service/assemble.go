package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sceneflow-server/apperr"
	"sceneflow-server/auth"
	"sceneflow-server/models"
)

// DefaultConcatTimeout 拼接子进程的默认超时。
const DefaultConcatTimeout = 120 * time.Second

const defaultOutputName = "story_video.mp4"

// Concatenator 外部媒体拼接工具能力，测试中用假实现替换。
// manifestPath 指向按分镜顺序排列的 ffconcat 清单。
type Concatenator interface {
	Concatenate(ctx context.Context, manifestPath, outputPath string) error
}

// AssemblyResult 整片装配结果。组合文件不回写存储，持久化由调用方负责。
type AssemblyResult struct {
	Data       []byte
	Filename   string
	SceneCount int
}

// Assembler 整片装配管线：下载每个分镜已确认的视频产物，按 order_index
// 拼接为单个交付文件。临时工作区在任何退出路径上都会被清理。
type Assembler struct {
	guard
	storage ObjectStorage
	concat  Concatenator
	timeout time.Duration
	workDir string // 工作区父目录，空则系统默认
}

func NewAssembler(store Store, owner auth.Ownership, storage ObjectStorage, concat Concatenator, timeout time.Duration, workDir string) *Assembler {
	if timeout <= 0 {
		timeout = DefaultConcatTimeout
	}
	return &Assembler{
		guard:   guard{store: store, owner: owner},
		storage: storage,
		concat:  concat,
		timeout: timeout,
		workDir: workDir,
	}
}

// Assemble 执行装配。前置条件：项目处于 completed 阶段，且至少有一个
// 分镜存在视频产物。除临时磁盘占用外无持久副作用。
func (a *Assembler) Assemble(ctx context.Context, callerID, projectID string) (*AssemblyResult, error) {
	p, err := a.ownedProject(ctx, callerID, projectID)
	if err != nil {
		return nil, err
	}
	if p.Stage != models.StageCompleted {
		return nil, apperr.Precondition("项目尚未进入 completed 阶段，不能导出整片")
	}

	// 选取有视频产物的分镜，拼接顺序 = order_index 升序（ListScenes 已排序）
	scenes, err := a.store.ListScenes(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	artifacts, err := a.store.ListArtifactsByProject(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	videoBySceneID := make(map[string]models.MediaArtifact)
	for _, art := range artifacts {
		if art.Kind == models.KindVideo {
			videoBySceneID[art.SceneID] = art
		}
	}

	type entry struct {
		orderIndex int
		objectPath string
	}
	var entries []entry
	for _, s := range scenes {
		if art, ok := videoBySceneID[s.ID]; ok {
			entries = append(entries, entry{orderIndex: s.OrderIndex, objectPath: art.ObjectPath})
		}
	}
	if len(entries) == 0 {
		return nil, apperr.NoArtifacts("项目没有任何分镜视频，无法导出")
	}

	// 每次调用独占一个唯一命名的工作区，成功或失败都整体删除；
	// 删除失败只记日志，不覆盖主结果。
	workspace, err := os.MkdirTemp(a.workDir, "assemble-")
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer func() {
		if rerr := os.RemoveAll(workspace); rerr != nil {
			log.Printf("清理装配工作区失败 %s: %v", workspace, rerr)
		}
	}()

	// 逐个下载，任何一个失败立即中止（不产出部分拼接结果）
	var manifest strings.Builder
	manifest.WriteString("ffconcat version 1.0\n")
	for _, e := range entries {
		data, err := a.storage.Download(ctx, e.objectPath)
		if err != nil {
			return nil, apperr.FetchFailed(e.orderIndex, err)
		}
		name := fmt.Sprintf("scene-%04d.mp4", e.orderIndex)
		if err := os.WriteFile(filepath.Join(workspace, name), data, 0o644); err != nil {
			return nil, apperr.FetchFailed(e.orderIndex, err)
		}
		fmt.Fprintf(&manifest, "file '%s'\n", name)
	}

	manifestPath := filepath.Join(workspace, "manifest.ffconcat")
	if err := os.WriteFile(manifestPath, []byte(manifest.String()), 0o644); err != nil {
		return nil, apperr.Internal(err)
	}

	outputPath := filepath.Join(workspace, "combined.mp4")
	concatCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.concat.Concatenate(concatCtx, manifestPath, outputPath); err != nil {
		return nil, apperr.ConcatFailed(err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, apperr.ConcatFailed(fmt.Errorf("拼接工具未产出输出文件: %w", err))
	}

	return &AssemblyResult{
		Data:       data,
		Filename:   outputFilename(p.Title),
		SceneCount: len(entries),
	}, nil
}

// outputFilename 由项目标题导出下载文件名，标题为空时用默认名。
func outputFilename(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return defaultOutputName
	}
	var b strings.Builder
	for _, r := range title {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			// 文件名非法字符直接丢弃
		default:
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" {
		return defaultOutputName
	}
	return name + ".mp4"
}
