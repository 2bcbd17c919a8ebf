package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"sceneflow-server/apperr"
	"sceneflow-server/config"
)

type ImageOptions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type VideoOptions struct {
	Resolution string `json:"resolution"`
	FPS        int    `json:"fps"`
}

// Generator 是外部生成服务能力（文本 -> 分镜描述、描述 -> 图、描述/图 -> 视频）。
// 失败以 apperr.Upstream 报告，携带 worker 的错误信息。
type Generator interface {
	GenerateSceneDescriptions(ctx context.Context, story, style string, prior []string, feedback string) ([]string, error)
	GenerateImage(ctx context.Context, description, style string, opts ImageOptions) ([]byte, error)
	GenerateVideo(ctx context.Context, description, style, imageURL string, opts VideoOptions) ([]byte, error)
}

// WorkerClient 调用生成 worker：POST /v1/generate 拿 job_id，
// 轮询 GET /v1/jobs/{job_id} 直到终态，再取回产物。
type WorkerClient struct {
	Endpoint string
	Timeout  time.Duration
	HTTP     *http.Client
}

func NewWorkerClient() *WorkerClient {
	cfg := config.AppConfig.Worker
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &WorkerClient{
		Endpoint: cfg.Addr,
		Timeout:  timeout,
		HTTP:     &http.Client{},
	}
}

func (w *WorkerClient) GenerateSceneDescriptions(ctx context.Context, story, style string, prior []string, feedback string) ([]string, error) {
	result, err := w.run(ctx, "generate_storyboard", map[string]interface{}{
		"story_text":         story,
		"style":              style,
		"prior_descriptions": prior,
		"feedback":           feedback,
	})
	if err != nil {
		return nil, err
	}
	raw, err := w.fetchResource(ctx, result.ResourceURL)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Scenes []struct {
			Description string `json:"description"`
		} `json:"scenes"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperr.Upstream("生成服务返回的分镜数据无法解析", err)
	}
	if len(payload.Scenes) == 0 {
		return nil, apperr.Upstream("生成服务未返回任何分镜", nil)
	}
	descriptions := make([]string, 0, len(payload.Scenes))
	for _, s := range payload.Scenes {
		descriptions = append(descriptions, s.Description)
	}
	return descriptions, nil
}

func (w *WorkerClient) GenerateImage(ctx context.Context, description, style string, opts ImageOptions) ([]byte, error) {
	if opts.Width <= 0 {
		opts.Width = 1024
	}
	if opts.Height <= 0 {
		opts.Height = 1024
	}
	result, err := w.run(ctx, "generate_image", map[string]interface{}{
		"prompt":       description,
		"style":        style,
		"image_width":  opts.Width,
		"image_height": opts.Height,
	})
	if err != nil {
		return nil, err
	}
	return w.fetchResource(ctx, result.ResourceURL)
}

func (w *WorkerClient) GenerateVideo(ctx context.Context, description, style, imageURL string, opts VideoOptions) ([]byte, error) {
	if opts.Resolution == "" {
		opts.Resolution = "1280x720"
	}
	if opts.FPS <= 0 {
		opts.FPS = 24
	}
	result, err := w.run(ctx, "generate_video", map[string]interface{}{
		"prompt":     description,
		"style":      style,
		"image_url":  imageURL,
		"resolution": opts.Resolution,
		"fps":        opts.FPS,
	})
	if err != nil {
		return nil, err
	}
	return w.fetchResource(ctx, result.ResourceURL)
}

type jobResult struct {
	ResourceURL string
}

// pollInterval 任务状态轮询间隔。
var pollInterval = 3 * time.Second

// run 发起一次有界的生成调用：dispatch + poll，超时即失败。
func (w *WorkerClient) run(ctx context.Context, jobType string, params map[string]interface{}) (*jobResult, error) {
	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	jobID, err := w.dispatch(ctx, jobType, params)
	if err != nil {
		return nil, err
	}
	log.Printf("生成任务已提交, type=%s job=%s, 开始轮询结果", jobType, jobID)
	return w.poll(ctx, jobID)
}

func (w *WorkerClient) dispatch(ctx context.Context, jobType string, params map[string]interface{}) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"type":       jobType,
		"parameters": params,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint+"/v1/generate", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.HTTP.Do(req)
	if err != nil {
		return "", apperr.Upstream("生成服务不可达", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return "", apperr.Upstream(fmt.Sprintf("生成服务返回状态码 %d", resp.StatusCode), nil)
	}

	var respData struct {
		ID    string `json:"id"`
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", apperr.Upstream("生成服务响应解析失败", err)
	}
	if respData.ID != "" {
		return respData.ID, nil
	}
	if respData.JobID != "" {
		return respData.JobID, nil
	}
	return "", apperr.Upstream("生成服务响应缺少 job id", nil)
}

func (w *WorkerClient) poll(ctx context.Context, jobID string) (*jobResult, error) {
	jobURL := fmt.Sprintf("%s/v1/jobs/%s", w.Endpoint, jobID)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, apperr.Upstream("生成调用超时", ctx.Err())
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, jobURL, nil)
			if err != nil {
				continue
			}
			resp, err := w.HTTP.Do(req)
			if err != nil {
				// ctx 超时会在上面的 case 捕获，这里只是网络抖动，继续轮询
				log.Printf("轮询网络错误(重试中): %v", err)
				continue
			}
			// 4xx 说明任务不存在或请求不合法，重试不会恢复
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				resp.Body.Close()
				return nil, apperr.Upstream(fmt.Sprintf("生成任务查询返回状态码 %d", resp.StatusCode), nil)
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				log.Printf("轮询返回状态码 %d(重试中)", resp.StatusCode)
				continue
			}

			var job struct {
				Status string `json:"status"`
				Error  string `json:"error"`
				Result struct {
					ResourceURL string `json:"resource_url"`
				} `json:"result"`
			}
			err = json.NewDecoder(resp.Body).Decode(&job)
			resp.Body.Close()
			if err != nil {
				log.Printf("轮询响应解析失败: %v", err)
				continue
			}

			switch job.Status {
			case "finished", "success", "completed", "succeeded":
				return &jobResult{ResourceURL: job.Result.ResourceURL}, nil
			case "failed", "error":
				return nil, apperr.Upstream("生成服务执行失败: "+job.Error, nil)
			}
			// 其他状态继续轮询
		}
	}
}

// fetchResource 下载 worker 产出的资源。
func (w *WorkerClient) fetchResource(ctx context.Context, resourceURL string) ([]byte, error) {
	if resourceURL == "" {
		return nil, apperr.Upstream("生成结果缺少资源地址", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resourceURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return nil, apperr.Upstream("下载生成结果失败", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream(fmt.Sprintf("下载生成结果状态码 %d", resp.StatusCode), nil)
	}
	return io.ReadAll(resp.Body)
}
