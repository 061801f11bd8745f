package handler

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/types"
	"resume-agent-go/internal/vectorstore"
)

// JobStore 岗位处理器依赖的检索层能力
type JobStore interface {
	StoreJob(ctx context.Context, ownerID, title, description, level, category string, requiredSkills []string) (string, error)
	GetJob(ctx context.Context, ownerID, jobID string) (*models.JobDefinition, error)
	ListJobs(ctx context.Context, ownerID string, limit, offset int) ([]models.JobDefinition, error)
	SearchJobs(ctx context.Context, ownerID, query string, limit int) ([]types.RankedJob, error)
	DeleteJob(ctx context.Context, ownerID, jobID string) (bool, error)
}

var _ JobStore = (*vectorstore.Client)(nil)

// JobHandler 岗位定义的HTTP处理器
type JobHandler struct {
	store        JobStore
	defaultLimit int
}

func NewJobHandler(store JobStore, defaultLimit int) *JobHandler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &JobHandler{store: store, defaultLimit: defaultLimit}
}

type storeJobRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Level          string   `json:"level"`
	Category       string   `json:"category"`
	RequiredSkills []string `json:"required_skills"`
}

// HandleStore 岗位入库
func (h *JobHandler) HandleStore(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	var req storeJobRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "请求体格式错误"})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "岗位标题不能为空"})
		return
	}

	jobID, err := h.store.StoreJob(ctx, owner, req.Title, req.Description, req.Level, req.Category, req.RequiredSkills)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"job_id": jobID,
		"title":  req.Title,
		"status": "stored",
	})
}

// HandleList 岗位列表。带 q 参数时走语义检索
func (h *JobHandler) HandleList(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	limit := queryInt(c, "limit", h.defaultLimit)

	if query := strings.TrimSpace(c.Query("q")); query != "" {
		results, err := h.store.SearchJobs(ctx, owner, query, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(consts.StatusOK, map[string]interface{}{"results": results})
		return
	}

	jobs, err := h.store.ListJobs(ctx, owner, limit, queryInt(c, "offset", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"jobs": jobs})
}

// HandleGet 单个岗位详情
func (h *JobHandler) HandleGet(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	job, err := h.store.GetJob(ctx, owner, c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"job": job})
}

// HandleDelete 删除岗位定义及其向量
func (h *JobHandler) HandleDelete(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	existed, err := h.store.DeleteJob(ctx, owner, c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !existed {
		c.JSON(consts.StatusNotFound, map[string]interface{}{"error": types.ErrNotFound.Error()})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"deleted": true})
}
