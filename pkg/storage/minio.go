// Package storage提供了与对象存储服务（如 MinIO）交互的功能，用于归档导出的会话文档。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"persona-chat-go/internal/config"
	"persona-chat-go/pkg/log"
)

// DefaultURLExpiry 是预签名下载链接的默认有效期。
const DefaultURLExpiry = 60 * time.Minute

// ArchivedExport 描述一次已归档的导出。
type ArchivedExport struct {
	Bucket    string    `json:"bucket"`
	Object    string    `json:"object"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExportArchive 将导出文档写入对象存储并返回预签名下载链接。
type ExportArchive interface {
	PutExport(ctx context.Context, sessionID string, document []byte) (*ArchivedExport, error)
}

type minioArchive struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	now    func() time.Time
}

// NewExportArchive 初始化 MinIO 客户端并确保指定的存储桶存在。
// cfg.Endpoint 为空时返回 (nil, nil)，表示不启用归档。
func NewExportArchive(ctx context.Context, cfg config.MinIOConfig) (ExportArchive, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}

	// 1. 初始化 MinIO 客户端
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	// 2. 检查存储桶 (Bucket) 是否存在，如果不存在则创建
	bucketName := cfg.BucketName
	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", bucketName)
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", bucketName)
	} else {
		log.Infof("存储桶 '%s' 已存在", bucketName)
	}

	expiry := DefaultURLExpiry
	if cfg.URLExpiryMin > 0 {
		expiry = time.Duration(cfg.URLExpiryMin) * time.Minute
	}
	return &minioArchive{client: client, bucket: bucketName, expiry: expiry, now: time.Now}, nil
}

// PutExport 上传导出文档并生成预签名下载链接。
func (a *minioArchive) PutExport(ctx context.Context, sessionID string, document []byte) (*ArchivedExport, error) {
	now := a.now()
	object := ObjectName(sessionID, now)
	_, err := a.client.PutObject(ctx, a.bucket, object, bytes.NewReader(document), int64(len(document)), minio.PutObjectOptions{
		ContentType: "application/json; charset=utf-8",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload export: %w", err)
	}

	presignedURL, err := a.client.PresignedGetObject(ctx, a.bucket, object, a.expiry, nil)
	if err != nil {
		log.Errorf("Error generating presigned URL: %s", err)
		return nil, err
	}
	return &ArchivedExport{
		Bucket:    a.bucket,
		Object:    object,
		URL:       presignedURL.String(),
		ExpiresAt: now.Add(a.expiry),
	}, nil
}

// ObjectName 返回导出文档的对象名：exports/{sessionID}/conversa_{YYYYMMDD_HHMMSS}.json。
func ObjectName(sessionID string, at time.Time) string {
	return fmt.Sprintf("exports/%s/conversa_%s.json", sessionID, at.Format("20060102_150405"))
}
