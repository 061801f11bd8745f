package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"
)

// CredentialStore 租户凭证读取接口，由storage层实现
type CredentialStore interface {
	// GetTenantCredential 返回租户自备的LLM凭证，未配置时返回 types.ErrNotFound
	GetTenantCredential(ctx context.Context, ownerID string) (*types.LLMConfig, error)
}

// Factory 按"请求覆盖 > 租户凭证 > 服务默认"的顺序解析LLM凭证并构造聊天模型。
// 同一请求内解析结果不变，模型实例不做跨请求复用。
type Factory struct {
	cfg   *config.Config
	store CredentialStore
}

// NewFactory 创建凭证解析工厂，store可为nil(此时跳过租户凭证层)
func NewFactory(cfg *config.Config, store CredentialStore) *Factory {
	return &Factory{cfg: cfg, store: store}
}

// Resolve 解析本次请求生效的LLM配置。
// 三层都未命中时返回 types.ErrCredentialMissing。
func (f *Factory) Resolve(ctx context.Context, ownerID string, override types.LLMConfig) (types.LLMConfig, error) {
	// 第一层：请求级覆盖
	if strings.TrimSpace(override.APIKey) != "" {
		return f.withDefaults(override), nil
	}

	// 第二层：租户自备凭证
	if f.store != nil && ownerID != "" {
		cred, err := f.store.GetTenantCredential(ctx, ownerID)
		if err == nil && cred != nil && strings.TrimSpace(cred.APIKey) != "" {
			resolved := *cred
			// 请求可以只覆盖模型而沿用租户密钥
			if strings.TrimSpace(override.Model) != "" {
				resolved.Model = override.Model
			}
			return f.withDefaults(resolved), nil
		}
		if err != nil && err != types.ErrNotFound {
			logger.Ctx(ctx).Warn().Err(err).Str("owner_id", ownerID).Msg("读取租户凭证失败，回退到服务默认凭证")
		}
	}

	// 第三层：服务默认配置
	if strings.TrimSpace(f.cfg.LLM.APIKey) != "" {
		resolved := types.LLMConfig{
			APIKey:  f.cfg.LLM.APIKey,
			Model:   override.Model,
			BaseURL: f.cfg.LLM.BaseURL,
		}
		return f.withDefaults(resolved), nil
	}

	return types.LLMConfig{}, types.ErrCredentialMissing
}

// withDefaults 填充缺省的模型名和端点
func (f *Factory) withDefaults(c types.LLMConfig) types.LLMConfig {
	if strings.TrimSpace(c.Model) == "" {
		c.Model = f.cfg.LLM.Model
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = f.cfg.LLM.BaseURL
	}
	return c
}

// ModelForTask 解析凭证并构造对应任务的聊天模型。
// taskName用于选择任务专用模型(配置了task_models时)。
func (f *Factory) ModelForTask(ctx context.Context, taskName string, ownerID string, override types.LLMConfig) (model.ToolCallingChatModel, types.LLMConfig, error) {
	resolved, err := f.Resolve(ctx, ownerID, override)
	if err != nil {
		return nil, types.LLMConfig{}, err
	}

	// 未显式指定模型时允许按任务路由
	if strings.TrimSpace(override.Model) == "" {
		resolved.Model = f.cfg.GetModelForTask(taskName)
	}

	logger.Ctx(ctx).Debug().
		Str("task", taskName).
		Str("model", resolved.Model).
		Str("api_key", tracing.MaskPII(resolved.APIKey)).
		Msg("LLM凭证解析完成")

	chatModel, err := NewOpenAICompatChatModel(resolved.APIKey, resolved.Model, resolved.BaseURL,
		WithTemperature(f.cfg.LLM.Temperature))
	if err != nil {
		return nil, types.LLMConfig{}, fmt.Errorf("构造聊天模型失败: %w", err)
	}
	return chatModel, resolved, nil
}

// CredentialIdentity 返回凭证的非敏感标识，用于缓存键隔离不同租户的凭证。
// 相同密钥得到相同标识，但标识不可逆推出密钥。
func CredentialIdentity(apiKey string) string {
	if apiKey == "" {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:8])
}
