package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"
	"resume-agent-go/internal/vectorstore"
)

// StatsProvider 仪表盘数据来源
type StatsProvider interface {
	DashboardStats(ctx context.Context, ownerID string) (*types.DashboardStats, error)
}

var _ StatsProvider = (*vectorstore.Client)(nil)

// ChunkCounter 向量索引中的分块总数，用于仪表盘展示索引规模
type ChunkCounter interface {
	CountResumeChunks(ctx context.Context, ownerID string) (int64, error)
}

var _ ChunkCounter = (*storage.Qdrant)(nil)

// DashboardHandler 租户仪表盘统计
type DashboardHandler struct {
	stats  StatsProvider
	chunks ChunkCounter
}

// NewDashboardHandler 创建仪表盘处理器。chunks 为 nil 时省略索引规模字段
func NewDashboardHandler(stats StatsProvider, chunks ChunkCounter) *DashboardHandler {
	return &DashboardHandler{stats: stats, chunks: chunks}
}

// HandleStats 聚合统计：简历总数、各工作流执行次数与最近活动。
// 向量索引分块计数是附加信息，失败不影响主统计返回。
func (h *DashboardHandler) HandleStats(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	stats, err := h.stats.DashboardStats(ctx, owner)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := map[string]interface{}{"stats": stats}
	if h.chunks != nil {
		count, err := h.chunks.CountResumeChunks(ctx, owner)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("owner_id", owner).Msg("统计向量分块数失败")
		} else {
			resp["indexed_chunks"] = count
		}
	}
	c.JSON(consts.StatusOK, resp)
}
