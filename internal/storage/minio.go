package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/logger"
)

// MinIO 提供对象存储功能，归档简历原文
type MinIO struct {
	client        *minio.Client
	cfg           *config.MinIOConfig
	rawTextBucket string
}

// NewMinIO 创建MinIO客户端并确保归档桶存在
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	rawTextBucket := cfg.RawTextBucket
	if rawTextBucket == "" {
		rawTextBucket = "resume-raw-text"
	}

	m := &MinIO{
		client:        client,
		cfg:           cfg,
		rawTextBucket: rawTextBucket,
	}

	if err := m.ensureBucketExists(rawTextBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保原文归档桶 %s 存在失败: %w", rawTextBucket, err)
	}

	logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", rawTextBucket).Msg("MinIO客户端初始化成功")
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		if err := m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		logger.Info().Str("bucket", bucketName).Msg("存储桶创建成功")
	}
	return nil
}

// rawTextObjectName 归档对象按租户分目录
func rawTextObjectName(ownerID, resumeID string) string {
	return fmt.Sprintf("%s/%s.txt", ownerID, resumeID)
}

// ArchiveRawText 归档简历原文，返回对象路径和内容MD5
func (m *MinIO) ArchiveRawText(ctx context.Context, ownerID, resumeID, text string) (string, string, error) {
	objectName := rawTextObjectName(ownerID, resumeID)

	sum := md5.Sum([]byte(text))
	textMD5 := hex.EncodeToString(sum[:])

	reader := bytes.NewReader([]byte(text))
	_, err := m.client.PutObject(ctx, m.rawTextBucket, objectName, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return "", "", fmt.Errorf("归档简历原文失败: %w", err)
	}

	return objectName, textMD5, nil
}

// GetRawText 读取归档的简历原文
func (m *MinIO) GetRawText(ctx context.Context, objectName string) (string, error) {
	obj, err := m.client.GetObject(ctx, m.rawTextBucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("读取归档对象失败: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("读取归档内容失败: %w", err)
	}
	return string(data), nil
}

// DeleteRawText 删除归档的简历原文
func (m *MinIO) DeleteRawText(ctx context.Context, ownerID, resumeID string) error {
	objectName := rawTextObjectName(ownerID, resumeID)
	err := m.client.RemoveObject(ctx, m.rawTextBucket, objectName, minio.RemoveObjectOptions{})
	if err != nil && !strings.Contains(err.Error(), "NoSuchKey") {
		return fmt.Errorf("删除归档对象失败: %w", err)
	}
	return nil
}
