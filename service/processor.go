package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"sceneflow-server/config"
	"sceneflow-server/models"

	"github.com/hibiken/asynq"
)

// Processor 消费生成任务队列。每个任务必定落到 finished/failed，
// panic 也会被捕获并记为失败，不会留下停在 processing 的任务。
type Processor struct {
	store     Store
	lifecycle *Lifecycle
}

func NewProcessor(store Store, lifecycle *Lifecycle) *Processor {
	return &Processor{store: store, lifecycle: lifecycle}
}

// StartProcessor 启动任务消费者。
func (p *Processor) StartProcessor(concurrency int) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     config.AppConfig.Redis.Addr,
			Password: config.AppConfig.Redis.Password,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeGenerateTask, p.HandleGenerateTask)

	log.Printf("Starting Task Processor with concurrency %d...", concurrency)
	go func() {
		if err := srv.Run(mux); err != nil {
			log.Fatalf("could not run server: %v", err)
		}
	}()
}

// HandleGenerateTask 核心处理逻辑。
func (p *Processor) HandleGenerateTask(ctx context.Context, t *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	task, err := p.store.GetTask(ctx, payload.TaskID)
	if err != nil {
		return fmt.Errorf("task not found: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Processing Task: %s | Type: %s", task.ID, task.Type)
	if err := p.store.UpdateTask(ctx, task.ID, models.TaskStatusProcessing, 10, "生成中", ""); err != nil {
		log.Printf("UpdateTask processing failed: %v", err)
	}

	runErr := p.run(ctx, task)
	if runErr != nil {
		log.Printf("任务 %s 执行失败: %v", task.ID, runErr)
		if err := p.store.UpdateTask(context.WithoutCancel(ctx), task.ID, models.TaskStatusFailed, 100, "", runErr.Error()); err != nil {
			log.Printf("标记任务失败出错: %v", err)
		}
		// 业务失败不重试，结果已落库
		return nil
	}

	if err := p.store.UpdateTask(ctx, task.ID, models.TaskStatusSuccess, 100, "完成", ""); err != nil {
		log.Printf("标记任务完成出错: %v", err)
	}
	log.Printf("Task %s completed successfully", task.ID)
	return nil
}

func (p *Processor) run(ctx context.Context, task *models.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	switch task.Type {
	case models.TaskTypeGenerateScenes, models.TaskTypeRegenerateScenes:
		return p.lifecycle.RunSceneGeneration(ctx, task)
	case models.TaskTypeGenerateImage, models.TaskTypeGenerateVideo:
		return p.lifecycle.RunTrackGeneration(ctx, task)
	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}
