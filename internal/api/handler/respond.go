package handler

import (
	"errors"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/types"
)

// ownerIDKey 认证中间件写入请求上下文的租户ID键名
const ownerIDKey = "owner_id"

// ownerID 从请求上下文取出认证中间件写入的租户ID。
// 取不到说明路由没挂认证中间件，直接拒绝。
func ownerID(c *app.RequestContext) (string, bool) {
	v, exists := c.Get(ownerIDKey)
	if !exists {
		c.JSON(consts.StatusUnauthorized, map[string]interface{}{"error": "未授权访问"})
		return "", false
	}
	id, ok := v.(string)
	if !ok || id == "" {
		c.JSON(consts.StatusUnauthorized, map[string]interface{}{"error": "未授权访问"})
		return "", false
	}
	return id, true
}

// statusForError 业务错误到HTTP状态码的映射。
// 检索后端不可用与"查无结果"严格区分：前者503，后者是正常的空列表200。
func statusForError(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return consts.StatusNotFound
	case errors.Is(err, types.ErrInsufficientInput),
		errors.Is(err, types.ErrValidationRejected):
		return consts.StatusUnprocessableEntity
	case errors.Is(err, types.ErrRetrievalUnavailable):
		return consts.StatusServiceUnavailable
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return consts.StatusUnsupportedMediaType
	case errors.Is(err, types.ErrCredentialMissing):
		return consts.StatusBadRequest
	default:
		return consts.StatusInternalServerError
	}
}

func writeError(c *app.RequestContext, err error) {
	status := statusForError(err)
	if status == consts.StatusInternalServerError {
		logger.Error().Err(err).Msg("请求处理失败")
	}
	c.JSON(status, map[string]interface{}{"error": err.Error()})
}

// queryInt 解析整型查询参数，缺失或非法时返回默认值
func queryInt(c *app.RequestContext, key string, def int) int {
	s := c.Query(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// llmOverride 从请求头提取单次请求的LLM凭证覆盖。
// 覆盖优先于租户存储凭证和进程默认凭证。
func llmOverride(c *app.RequestContext) types.LLMConfig {
	return types.LLMConfig{
		APIKey:  string(c.GetHeader("X-LLM-Key")),
		Model:   string(c.GetHeader("X-LLM-Model")),
		BaseURL: string(c.GetHeader("X-LLM-Base-URL")),
	}
}
