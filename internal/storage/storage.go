package storage

import (
	"context"
	"errors"
	"fmt"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"
)

// Storage 聚合所有存储组件。
// MySQL和Qdrant是必需组件，Redis和MinIO缺失时降级运行。
type Storage struct {
	MySQL  *MySQL
	Redis  *Redis
	MinIO  *MinIO
	Qdrant *Qdrant
}

// NewStorage 按配置初始化存储组件
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	s := &Storage{}

	var err error
	s.MySQL, err = NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}

	s.Qdrant, err = NewQdrant(&cfg.Qdrant)
	if err != nil {
		s.MySQL.Close()
		return nil, fmt.Errorf("初始化Qdrant失败: %w", err)
	}

	// Redis不可用时凭证读取直接回源MySQL
	s.Redis, err = NewRedisAdapter(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("初始化Redis失败，租户凭证缓存不可用")
		s.Redis = nil
	}

	// MinIO不可用时跳过原文归档
	s.MinIO, err = NewMinIO(&cfg.MinIO)
	if err != nil {
		logger.Warn().Err(err).Msg("初始化MinIO失败，简历原文归档不可用")
		s.MinIO = nil
	}

	return s, nil
}

// Close 关闭所有存储连接
func (s *Storage) Close() {
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
}

// GetTenantCredential 实现 llm.CredentialStore，读穿缓存：
// Redis命中直接返回；未命中回源MySQL并回填(含负缓存)。
func (s *Storage) GetTenantCredential(ctx context.Context, ownerID string) (*types.LLMConfig, error) {
	if s.Redis != nil {
		cred, err := s.Redis.GetCachedCredential(ctx, ownerID)
		if err == nil {
			return cred, nil
		}
		if errors.Is(err, types.ErrNotFound) {
			// 负缓存命中：该租户确实没有配置凭证
			return nil, types.ErrNotFound
		}
		if !errors.Is(err, ErrNotFound) {
			logger.Ctx(ctx).Warn().Err(err).Msg("凭证缓存读取异常，回源MySQL")
		}
	}

	row, err := s.MySQL.GetTenantCredentialRow(ctx, ownerID)
	if errors.Is(err, types.ErrNotFound) {
		if s.Redis != nil {
			_ = s.Redis.SetCachedCredential(ctx, ownerID, nil)
		}
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cred := &types.LLMConfig{
		APIKey:  row.APIKey,
		Model:   row.Model,
		BaseURL: row.BaseURL,
	}
	if s.Redis != nil {
		_ = s.Redis.SetCachedCredential(ctx, ownerID, cred)
	}
	return cred, nil
}

// InvalidateTenantCredential 凭证变更后让缓存失效
func (s *Storage) InvalidateTenantCredential(ctx context.Context, ownerID string) {
	if s.Redis != nil {
		if err := s.Redis.InvalidateCredential(ctx, ownerID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("owner_id", ownerID).Msg("失效凭证缓存失败")
		}
	}
}
