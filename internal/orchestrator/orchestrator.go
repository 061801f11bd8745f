package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"
	"resume-agent-go/internal/workflow"
)

var orchTracer = otel.Tracer("resume-agent-go/orchestrator")

// Status 一次流水线调用的结局
type Status string

const (
	// StatusSuccess 正常完成
	StatusSuccess Status = "success"
	// StatusRejected 被门控拒绝(非简历/输入不足)，带结构化反馈
	StatusRejected Status = "rejected"
	// StatusError 其他失败，只带错误描述
	StatusError Status = "error"
)

// Inputs 流水线输入。各任务只读取自己需要的字段。
type Inputs struct {
	OwnerID     string
	Filename    string
	ResumeID    string
	JobID       string
	ResumeText  string
	JobText     string
	ProfileText string
	Threshold   int
}

// Result 流水线调用的统一返回。Run对任何输入都不panic不冒错：
// 门控拒绝进Rejection，其余失败进Error。
type Result struct {
	Task      types.TaskType `json:"task"`
	Status    Status         `json:"status"`
	Data      interface{}    `json:"data,omitempty"`
	Rejection string         `json:"rejection,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type taskRunner func(ctx context.Context, in Inputs, override types.LLMConfig) (interface{}, error)

// Orchestrator 任务分发器：任务标识到已编译图的稳定映射。
// 映射在构造时建好，之后只读，可被并发请求共享。
type Orchestrator struct {
	engine  *workflow.Engine
	runners map[types.TaskType]taskRunner
}

// New 创建编排器并装配分发表
func New(engine *workflow.Engine) *Orchestrator {
	o := &Orchestrator{engine: engine}
	o.runners = map[types.TaskType]taskRunner{
		types.TaskQuality: func(ctx context.Context, in Inputs, override types.LLMConfig) (interface{}, error) {
			return engine.RunQuality(ctx, workflow.QualityInput{
				OwnerID: in.OwnerID, Filename: in.Filename, ResumeText: in.ResumeText, Config: override,
			})
		},
		types.TaskSkillGap: func(ctx context.Context, in Inputs, override types.LLMConfig) (interface{}, error) {
			return engine.RunSkillGap(ctx, workflow.SkillGapInput{
				OwnerID: in.OwnerID, Filename: in.Filename, ResumeText: in.ResumeText, JobText: in.JobText, Config: override,
			})
		},
		types.TaskScreen: func(ctx context.Context, in Inputs, override types.LLMConfig) (interface{}, error) {
			return engine.RunScreen(ctx, workflow.ScreenInput{
				OwnerID: in.OwnerID, Filename: in.Filename, ResumeID: in.ResumeID, JobID: in.JobID,
				ResumeText: in.ResumeText, JobText: in.JobText, Threshold: in.Threshold, Config: override,
			})
		},
		types.TaskGenerate: func(ctx context.Context, in Inputs, override types.LLMConfig) (interface{}, error) {
			return engine.RunGenerate(ctx, workflow.GenerateInput{
				OwnerID: in.OwnerID, Filename: in.Filename, ProfileText: in.ProfileText, Config: override,
			})
		},
		types.TaskLinkedInConvert: func(ctx context.Context, in Inputs, override types.LLMConfig) (interface{}, error) {
			return engine.RunConvert(ctx, workflow.ConvertInput{
				OwnerID: in.OwnerID, Filename: in.Filename, ProfileText: in.ProfileText, Config: override,
			})
		},
	}
	return o
}

// Run 流水线统一入口。对未知任务、图内panic、节点失败都返回结构化Result，
// 调用方(路由层)永远拿不到异常。
func (o *Orchestrator) Run(ctx context.Context, task types.TaskType, in Inputs, override types.LLMConfig) (result Result) {
	ctx, span := orchTracer.Start(ctx, "Orchestrator.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("pipeline.task", string(task)),
		attribute.String("tenant.id", in.OwnerID),
	)

	result = Result{Task: task}

	defer func() {
		if r := recover(); r != nil {
			logger.Ctx(ctx).Error().
				Interface("panic", r).
				Str("task", string(task)).
				Bytes("stack", debug.Stack()).
				Msg("流水线panic被编排器兜住")
			span.SetStatus(codes.Error, "panic")
			result = Result{
				Task:   task,
				Status: StatusError,
				Error:  fmt.Sprintf("流水线内部错误: %v", r),
			}
		}
	}()

	runner, ok := o.runners[task]
	if !ok {
		span.SetStatus(codes.Error, "unknown task")
		result.Status = StatusError
		result.Error = fmt.Sprintf("%s: %q", types.ErrUnknownTask, task)
		return result
	}

	data, err := runner(ctx, in, override)
	switch {
	case err == nil:
		result.Status = StatusSuccess
		result.Data = data
	case types.IsGateError(err):
		// 门控拒绝是结构化结局：部分结果(如校验报告)照常带回
		span.AddEvent("gate_rejected")
		result.Status = StatusRejected
		result.Rejection = err.Error()
		result.Data = data
	default:
		logger.Ctx(ctx).Error().Err(err).Str("task", string(task)).Msg("流水线执行失败")
		span.SetStatus(codes.Error, err.Error())
		result.Status = StatusError
		result.Error = err.Error()
	}

	if result.Status != StatusError {
		span.SetStatus(codes.Ok, "")
	}
	return result
}
