package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"resume-agent-go/internal/logger"
)

// ownerIDKey 与 handler 包约定的上下文键
const ownerIDKey = "owner_id"

// TenantAuth 基于 X-API-Key 请求头的租户认证。
// 合法的Key映射到租户ID并写入请求上下文，后续所有数据访问都以该ID过滤。
func TenantAuth(tenantKeys map[string]string) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:X-API-Key", ""),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			tenantID, ok := tenantKeys[key]
			if !ok || tenantID == "" {
				return false, nil
			}
			c.Set(ownerIDKey, tenantID)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			logger.Ctx(ctx).Warn().
				Str("path", string(c.Path())).
				Msg("API Key认证失败")
			c.JSON(consts.StatusUnauthorized, map[string]interface{}{"error": "无效的API Key"})
			c.Abort()
		}),
	)
}
