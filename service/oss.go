package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"path/filepath"
	"time"

	"sceneflow-server/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorage 是持久对象存储能力（MinIO），assembly 与生成结果落盘都走这里。
type ObjectStorage interface {
	Upload(ctx context.Context, objectPath string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, objectPath string) ([]byte, error)
	Delete(ctx context.Context, objectPath string) error
	SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

// MinioStorage 基于 minio-go 的实现。
type MinioStorage struct {
	Client *minio.Client
	Bucket string
}

// InitMinIO 初始化连接，在 main.go 中调用。
func InitMinIO() *MinioStorage {
	cfg := config.AppConfig.MinIO
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}
	log.Println("MinIO 连接成功")
	return &MinioStorage{Client: client, Bucket: cfg.Bucket}
}

func (m *MinioStorage) ensureBucket(ctx context.Context) error {
	exists, err := m.Client.BucketExists(ctx, m.Bucket)
	if err != nil {
		return fmt.Errorf("检查 Bucket 失败: %w", err)
	}
	if !exists {
		if err := m.Client.MakeBucket(ctx, m.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("创建 Bucket 失败: %w", err)
		}
		log.Printf("Bucket '%s' 已创建", m.Bucket)
	}
	return nil
}

func (m *MinioStorage) Upload(ctx context.Context, objectPath string, reader io.Reader, size int64, contentType string) error {
	if err := m.ensureBucket(ctx); err != nil {
		return err
	}
	if contentType == "" {
		contentType = ContentTypeByExt(objectPath)
	}
	_, err := m.Client.PutObject(ctx, m.Bucket, objectPath, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("上传到 MinIO 失败: %w", err)
	}
	return nil
}

func (m *MinioStorage) Download(ctx context.Context, objectPath string) ([]byte, error) {
	obj, err := m.Client.GetObject(ctx, m.Bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("读取 MinIO 对象失败: %w", err)
	}
	defer obj.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, obj); err != nil {
		return nil, fmt.Errorf("下载 MinIO 对象失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *MinioStorage) Delete(ctx context.Context, objectPath string) error {
	return m.Client.RemoveObject(ctx, m.Bucket, objectPath, minio.RemoveObjectOptions{})
}

// SignedURL 生成预签名访问 URL。
func (m *MinioStorage) SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	reqParams := make(url.Values)
	u, err := m.Client.PresignedGetObject(ctx, m.Bucket, objectPath, ttl, reqParams)
	if err != nil {
		return "", fmt.Errorf("生成签名 URL 失败: %w", err)
	}
	return u.String(), nil
}

// ContentTypeByExt 根据扩展名确定 ContentType。
func ContentTypeByExt(objectPath string) string {
	switch filepath.Ext(objectPath) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	}
	return "application/octet-stream"
}
