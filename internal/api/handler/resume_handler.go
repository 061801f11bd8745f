package handler

import (
	"context"
	"io"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/types"
	"resume-agent-go/internal/vectorstore"
)

// ResumeStore 简历处理器依赖的检索层能力
type ResumeStore interface {
	StoreResume(ctx context.Context, ownerID, filename, text string) (string, error)
	GetResume(ctx context.Context, ownerID, resumeID string) (*models.ResumeDocument, error)
	GetResumeText(ctx context.Context, ownerID, resumeID string) (string, error)
	ListResumes(ctx context.Context, ownerID string, limit, offset int) ([]models.ResumeDocument, error)
	SearchResumes(ctx context.Context, ownerID, query string, limit int) ([]types.RankedDocument, error)
	DeleteResume(ctx context.Context, ownerID, resumeID string) (bool, error)
	MatchResumeToJobs(ctx context.Context, ownerID, resumeID string, limit int) ([]types.RankedJob, error)
}

var _ ResumeStore = (*vectorstore.Client)(nil)

// ResumeHandler 简历入库、检索与岗位匹配的HTTP处理器
type ResumeHandler struct {
	extractor    *parser.TextExtractor
	store        ResumeStore
	defaultLimit int
}

// NewResumeHandler 创建简历处理器。extractor 为 nil 时文件上传端点不可用
func NewResumeHandler(extractor *parser.TextExtractor, store ResumeStore, defaultLimit int) *ResumeHandler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &ResumeHandler{
		extractor:    extractor,
		store:        store,
		defaultLimit: defaultLimit,
	}
}

type storeResumeRequest struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

type storeResumeResponse struct {
	ResumeID string `json:"resume_id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

// HandleStore 纯文本简历入库
func (h *ResumeHandler) HandleStore(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	var req storeResumeRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "请求体格式错误"})
		return
	}

	resumeID, err := h.store.StoreResume(ctx, owner, req.Filename, req.Text)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(consts.StatusOK, storeResumeResponse{
		ResumeID: resumeID,
		Filename: req.Filename,
		Status:   "stored",
	})
}

// HandleUpload 文件上传入库：提取文本后走与纯文本相同的入库路径
func (h *ResumeHandler) HandleUpload(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	if h.extractor == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]interface{}{"error": "文本提取器未初始化"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "文件未找到"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": "打开文件失败"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": "读取文件失败"})
		return
	}

	text, err := h.extractor.Extract(ctx, data, fileHeader.Header.Get("Content-Type"), fileHeader.Filename)
	if err != nil {
		writeError(c, err)
		return
	}

	resumeID, err := h.store.StoreResume(ctx, owner, fileHeader.Filename, text)
	if err != nil {
		writeError(c, err)
		return
	}

	logger.Ctx(ctx).Info().
		Str("owner_id", owner).
		Str("resume_id", resumeID).
		Str("filename", fileHeader.Filename).
		Int("file_size", len(data)).
		Msg("简历文件入库完成")

	c.JSON(consts.StatusOK, storeResumeResponse{
		ResumeID: resumeID,
		Filename: fileHeader.Filename,
		Status:   "stored",
	})
}

// HandleList 简历列表。带 q 参数时走语义检索，否则按时间倒序分页
func (h *ResumeHandler) HandleList(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	limit := queryInt(c, "limit", h.defaultLimit)

	if query := strings.TrimSpace(c.Query("q")); query != "" {
		results, err := h.store.SearchResumes(ctx, owner, query, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(consts.StatusOK, map[string]interface{}{"results": results})
		return
	}

	docs, err := h.store.ListResumes(ctx, owner, limit, queryInt(c, "offset", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"resumes": docs})
}

// HandleGet 单份简历详情，include_text=true 时附带原文
func (h *ResumeHandler) HandleGet(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	resumeID := c.Param("resume_id")

	doc, err := h.store.GetResume(ctx, owner, resumeID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := map[string]interface{}{"resume": doc}
	if c.Query("include_text") == "true" {
		text, err := h.store.GetResumeText(ctx, owner, resumeID)
		if err != nil {
			writeError(c, err)
			return
		}
		resp["text"] = text
	}
	c.JSON(consts.StatusOK, resp)
}

// HandleDelete 删除简历（文档、向量、归档一并清理）
func (h *ResumeHandler) HandleDelete(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	existed, err := h.store.DeleteResume(ctx, owner, c.Param("resume_id"))
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

// HandleMatch 用已入库简历的向量检索最匹配的岗位
func (h *ResumeHandler) HandleMatch(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	matches, err := h.store.MatchResumeToJobs(ctx, owner, c.Param("resume_id"), queryInt(c, "limit", h.defaultLimit))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"matches": matches})
}
