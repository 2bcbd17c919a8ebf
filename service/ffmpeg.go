package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// FFmpegConcatenator 通过 ffmpeg concat demuxer 拼接分镜视频。
// 超时由调用方通过 ctx 控制，超时即子进程被杀并视为失败。
type FFmpegConcatenator struct {
	Path string // ffmpeg 可执行文件，空则 "ffmpeg"
}

func (f *FFmpegConcatenator) Concatenate(ctx context.Context, manifestPath, outputPath string) error {
	bin := f.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("ffmpeg 超时: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg 退出异常: %w; stderr: %s", err, truncate(stderr.String(), 2000))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
