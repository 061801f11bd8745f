package handler

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-agent-go/internal/orchestrator"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/types"
	"resume-agent-go/internal/vectorstore"
)

// PipelineRunner 流水线编排入口
type PipelineRunner interface {
	Run(ctx context.Context, task types.TaskType, in orchestrator.Inputs, override types.LLMConfig) orchestrator.Result
}

var _ PipelineRunner = (*orchestrator.Orchestrator)(nil)

// PipelineStore 流水线处理器用来把ID解析成文本的检索层能力
type PipelineStore interface {
	GetResumeText(ctx context.Context, ownerID, resumeID string) (string, error)
	GetResume(ctx context.Context, ownerID, resumeID string) (*models.ResumeDocument, error)
	GetJob(ctx context.Context, ownerID, jobID string) (*models.JobDefinition, error)
}

var _ PipelineStore = (*vectorstore.Client)(nil)

// PipelineHandler LLM工作流的HTTP入口。接收文本或已入库的ID，
// ID在进入编排器之前解析成文本。
type PipelineHandler struct {
	runner PipelineRunner
	store  PipelineStore
}

func NewPipelineHandler(runner PipelineRunner, store PipelineStore) *PipelineHandler {
	return &PipelineHandler{runner: runner, store: store}
}

type pipelineRequest struct {
	ResumeID    string `json:"resume_id"`
	JobID       string `json:"job_id"`
	Filename    string `json:"filename"`
	ResumeText  string `json:"resume_text"`
	JobText     string `json:"job_text"`
	ProfileText string `json:"profile_text"`
	Threshold   int    `json:"threshold"`
}

// HandleRun 执行指定任务的流水线。
// 编排器保证不会抛出：success/rejected/error 三种结局都以结构化Result返回，
// 这里只做ID到文本的解析和HTTP状态码映射。
func (h *PipelineHandler) HandleRun(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	task := types.TaskType(c.Param("task"))
	switch task {
	case types.TaskQuality, types.TaskSkillGap, types.TaskScreen,
		types.TaskGenerate, types.TaskLinkedInConvert:
	default:
		c.JSON(consts.StatusBadRequest, map[string]interface{}{
			"error": types.ErrUnknownTask.Error() + ": " + string(task),
		})
		return
	}

	var req pipelineRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "请求体格式错误"})
		return
	}

	in := orchestrator.Inputs{
		OwnerID:     owner,
		Filename:    req.Filename,
		ResumeID:    req.ResumeID,
		JobID:       req.JobID,
		ResumeText:  req.ResumeText,
		JobText:     req.JobText,
		ProfileText: req.ProfileText,
		Threshold:   req.Threshold,
	}

	// resume_id/job_id 引用已入库内容，优先于随请求携带的文本
	if req.ResumeID != "" {
		text, err := h.store.GetResumeText(ctx, owner, req.ResumeID)
		if err != nil {
			writeError(c, err)
			return
		}
		in.ResumeText = text
		if in.Filename == "" {
			if doc, err := h.store.GetResume(ctx, owner, req.ResumeID); err == nil {
				in.Filename = doc.Filename
			}
		}
	}
	if req.JobID != "" {
		job, err := h.store.GetJob(ctx, owner, req.JobID)
		if err != nil {
			writeError(c, err)
			return
		}
		in.JobText = renderJobText(job)
	}

	result := h.runner.Run(ctx, task, in, llmOverride(c))
	c.JSON(statusForResult(result), result)
}

func statusForResult(result orchestrator.Result) int {
	switch result.Status {
	case orchestrator.StatusSuccess:
		return consts.StatusOK
	case orchestrator.StatusRejected:
		return consts.StatusUnprocessableEntity
	default:
		return consts.StatusInternalServerError
	}
}

// renderJobText 把岗位定义拼成工作流可用的JD文本
func renderJobText(job *models.JobDefinition) string {
	var b strings.Builder
	b.WriteString(job.Title)
	if job.Level != "" {
		b.WriteString(" (" + job.Level + ")")
	}
	b.WriteString("\n\n")
	b.WriteString(job.Description)
	return b.String()
}
