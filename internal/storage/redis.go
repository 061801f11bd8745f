package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"
)

// ErrNotFound Redis键不存在时返回，对redis.Nil的封装
var ErrNotFound = redis.Nil

var redisTracer = otel.Tracer("resume-agent-go/storage/redis")

// 租户凭证缓存键前缀
const credentialKeyPrefix = "credential:owner:"

// Redis 封装Redis客户端，当前用作租户凭证的读穿缓存
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis地址不能为空")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子，记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("启用Redis追踪失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	return r.Client.Close()
}

// credentialTTL 凭证缓存过期时间
func (r *Redis) credentialTTL() time.Duration {
	minutes := r.config.CredentialTTLMinutes
	if minutes <= 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}

// 缓存中的负缓存标记，区分"未配置凭证"和"缓存未命中"
const credentialNegativeMarker = "__none__"

// GetCachedCredential 读取缓存的租户凭证。
// 返回 (nil, types.ErrNotFound) 表示缓存了"该租户没有凭证"这一事实；
// 返回 (nil, ErrNotFound) 表示缓存未命中，需要回源。
func (r *Redis) GetCachedCredential(ctx context.Context, ownerID string) (*types.LLMConfig, error) {
	ctx, span := redisTracer.Start(ctx, "Redis.GetCachedCredential",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(semconv.DBSystemRedis))
	defer span.End()

	key := credentialKeyPrefix + ownerID
	span.SetAttributes(attribute.String("db.redis.key", tracing.SafeRedisKey(key)))
	val, err := r.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		span.SetStatus(codes.Ok, "cache miss")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("读取凭证缓存失败: %w", err)
	}

	if val == credentialNegativeMarker {
		span.SetStatus(codes.Ok, "negative cache hit")
		return nil, types.ErrNotFound
	}

	var cred types.LLMConfig
	if err := json.Unmarshal([]byte(val), &cred); err != nil {
		// 缓存内容损坏按未命中处理，删除脏键
		r.Client.Del(ctx, key)
		span.SetStatus(codes.Ok, "corrupt cache entry dropped")
		return nil, ErrNotFound
	}

	span.SetStatus(codes.Ok, "cache hit")
	return &cred, nil
}

// SetCachedCredential 写入租户凭证缓存，cred为nil时写入负缓存标记
func (r *Redis) SetCachedCredential(ctx context.Context, ownerID string, cred *types.LLMConfig) error {
	key := credentialKeyPrefix + ownerID

	var payload string
	if cred == nil {
		payload = credentialNegativeMarker
	} else {
		data, err := json.Marshal(cred)
		if err != nil {
			return fmt.Errorf("序列化凭证失败: %w", err)
		}
		payload = string(data)
	}

	if err := r.Client.Set(ctx, key, payload, r.credentialTTL()).Err(); err != nil {
		return fmt.Errorf("写入凭证缓存失败: %w", err)
	}
	return nil
}

// InvalidateCredential 删除租户凭证缓存，凭证更新后调用
func (r *Redis) InvalidateCredential(ctx context.Context, ownerID string) error {
	return r.Client.Del(ctx, credentialKeyPrefix+ownerID).Err()
}
