package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"

	"resume-agent-go/internal/logger"
)

const (
	defaultMaxRetries  = 2
	defaultCallTimeout = 60 * time.Second
)

// Call 用系统提示词和用户输入调用模型，带重试和退避。
// 只对网络类错误重试，模型返回的业务错误直接上抛。
func Call(ctx context.Context, chatModel model.ToolCallingChatModel, systemContent string, userContent string) (string, error) {
	messages := []*einoschema.Message{
		{Role: "system", Content: systemContent},
		{Role: "user", Content: userContent},
	}

	retryDelay := 2 * time.Second

	var response *einoschema.Message
	var err error

	for retry := 0; retry <= defaultMaxRetries; retry++ {
		if retry > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("上下文已取消: %w", ctx.Err())
			case <-time.After(retryDelay):
				retryDelay *= 2
				logger.Ctx(ctx).Warn().Int("retry", retry).Msg("重试LLM调用")
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
		response, err = chatModel.Generate(callCtx, messages)
		cancel()

		if err == nil {
			break
		}

		if !isRetryableError(err) || retry >= defaultMaxRetries {
			return "", fmt.Errorf("LLM调用失败: %w", err)
		}
	}

	return response.Content, nil
}

// CallJSON 调用模型并将输出解析到目标结构。
// 解析失败返回 *types.ParseFailure。
func CallJSON(ctx context.Context, chatModel model.ToolCallingChatModel, systemContent string, userContent string, v interface{}) error {
	raw, err := Call(ctx, chatModel, systemContent, userContent)
	if err != nil {
		return err
	}
	return ParseInto(raw, v)
}

// isRetryableError 判断错误是否应该重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503")
}
