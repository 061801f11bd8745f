package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"resume-agent-go/internal/llm"
	"resume-agent-go/internal/types"
)

// QualityInput 质量评分流水线的输入
type QualityInput struct {
	OwnerID    string
	Filename   string
	ResumeText string
	Config     types.LLMConfig
}

// QualityReport 逐节点评报告，score节点的产物
type QualityReport struct {
	Strengths       []string          `json:"strengths"`
	Weaknesses      []string          `json:"weaknesses"`
	SectionFeedback map[string]string `json:"section_feedback"`
	RewriteExamples []string          `json:"rewrite_examples"`
	OverallComment  string            `json:"overall_comment"`
}

// QualityResult 质量评分流水线的最终产物。
// 被门控拒绝时只有Validation；score节点解析失败时Report为空、NodeError带原因。
type QualityResult struct {
	Validation *types.ValidationResult `json:"validation"`
	Report     *QualityReport          `json:"report,omitempty"`
	Warning    string                  `json:"warning,omitempty"`
	NodeError  string                  `json:"error,omitempty"`
}

type qualityState struct {
	input     QualityInput
	chatModel model.ToolCallingChatModel
	rejected  bool
	result    QualityResult
}

// buildQualityGraph 编译质量评分图: validate → score → end
func (e *Engine) buildQualityGraph() *Graph[qualityState] {
	return NewGraph("quality",
		Node[qualityState]{
			Name: "validate",
			Run: func(ctx context.Context, s *qualityState) error {
				validation, err := e.validateResume(ctx, s.chatModel, s.input.ResumeText)
				if err != nil {
					// 校验结果是门控决策的输入，解析失败不能降级
					return err
				}
				s.result.Validation = validation

				if validation.Classification == types.ClassNotResume {
					s.rejected = true
					return errHalt
				}
				switch validation.Classification {
				case types.ClassInvalidOrIncomplete, types.ClassValidButWeak:
					s.result.Warning = fmt.Sprintf("简历质量偏弱(%s)，点评结果可能有限", validation.Classification)
				}
				return nil
			},
		},
		Node[qualityState]{
			Name: "score",
			Run: func(ctx context.Context, s *qualityState) error {
				var report QualityReport
				err := llm.CallJSON(ctx, s.chatModel, qualityScoreSystemPrompt, s.input.ResumeText, &report)
				var parseErr *types.ParseFailure
				if errors.As(err, &parseErr) {
					// 点评不是门控，解析失败降级为带错误说明的部分结果
					warnParseIssue(ctx, "quality", "score", err)
					s.result.NodeError = parseErr.Error()
					return nil
				}
				if err != nil {
					return err
				}
				s.result.Report = &report
				return nil
			},
		},
	)
}

// RunQuality 执行质量评分流水线。
// 输入为空直接短路；被判定为非简历时返回部分结果和 types.ErrValidationRejected。
func (e *Engine) RunQuality(ctx context.Context, in QualityInput) (*QualityResult, error) {
	if isBlank(in.ResumeText) {
		return nil, types.ErrInsufficientInput
	}

	chatModel, _, err := e.resolver.ModelForTask(ctx, string(types.TaskQuality), in.OwnerID, in.Config)
	if err != nil {
		return nil, err
	}

	state := &qualityState{input: in, chatModel: chatModel}
	if err := e.quality.Execute(ctx, state); err != nil {
		return nil, err
	}

	if state.rejected {
		e.logActivity(ctx, in.OwnerID, types.ActivityQuality, in.Filename, state.result.Validation.TotalScore, string(types.ClassNotResume))
		return &state.result, types.ErrValidationRejected
	}

	e.logActivity(ctx, in.OwnerID, types.ActivityQuality, in.Filename, state.result.Validation.TotalScore, string(state.result.Validation.Classification))
	return &state.result, nil
}
