package workflow

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	"resume-agent-go/internal/llm"
	"resume-agent-go/internal/types"
)

// GenerateInput 简历生成流水线的输入，素材是自由文本的个人背景描述
type GenerateInput struct {
	OwnerID     string
	Filename    string
	ProfileText string
	Config      types.LLMConfig
}

// GenerateResult 简历生成产物。
// OutputValidation 是对生成结果跑质量校验的非致命附注，弱也照样返回简历。
// 素材被门控拒绝时Resume为空，RejectionReason携带模型给出的拒绝原因。
type GenerateResult struct {
	Resume           *types.StructuredResume `json:"resume"`
	OutputValidation *types.ValidationResult `json:"output_validation,omitempty"`
	RejectionReason  string                  `json:"rejection_reason,omitempty"`
}

type generateState struct {
	input     GenerateInput
	chatModel model.ToolCallingChatModel
	rejected  bool
	reason    string
	result    GenerateResult
}

type profileRelevanceOutput struct {
	IsRelevant bool   `json:"is_relevant"`
	Reason     string `json:"reason"`
}

// buildGenerateGraph 编译简历生成图: validate_input_profile → draft_sections → end
func (e *Engine) buildGenerateGraph() *Graph[generateState] {
	return NewGraph("generate",
		Node[generateState]{
			Name: "validate_input_profile",
			Run: func(ctx context.Context, s *generateState) error {
				var out profileRelevanceOutput
				// 相关性判断是门控决策的输入，解析失败不能降级
				if err := llm.CallJSON(ctx, s.chatModel, profileRelevancePrompt, s.input.ProfileText, &out); err != nil {
					return err
				}
				if !out.IsRelevant {
					s.rejected = true
					s.reason = out.Reason
					return errHalt
				}
				return nil
			},
		},
		Node[generateState]{
			Name: "draft_sections",
			Run: func(ctx context.Context, s *generateState) error {
				return e.draftSections(ctx, s.chatModel, s.input.ProfileText, &s.result)
			},
		},
	)
}

// draftSections 共享的起草节点：生成结构化简历，再对产物跑一遍质量校验作非致命附注。
// 领英转换图复用同一节点逻辑。
func (e *Engine) draftSections(ctx context.Context, chatModel model.ToolCallingChatModel, profileText string, result *GenerateResult) error {
	resume, err := e.draftStructuredResume(ctx, chatModel, profileText)
	if err != nil {
		return err
	}
	result.Resume = resume

	validation, err := e.validateResume(ctx, chatModel, renderResumeText(resume))
	if err != nil {
		// 产物校验只是附注，失败不影响返回简历
		warnParseIssue(ctx, "generate", "output_validation", err)
		return nil
	}
	result.OutputValidation = validation
	return nil
}

// RunGenerate 执行简历生成流水线。
// 素材为空直接短路；素材与职业背景无关时返回带拒绝原因的部分结果和 types.ErrValidationRejected。
func (e *Engine) RunGenerate(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	if isBlank(in.ProfileText) {
		return nil, types.ErrInsufficientInput
	}

	chatModel, _, err := e.resolver.ModelForTask(ctx, string(types.TaskGenerate), in.OwnerID, in.Config)
	if err != nil {
		return nil, err
	}

	state := &generateState{input: in, chatModel: chatModel}
	if err := e.generate.Execute(ctx, state); err != nil {
		return nil, err
	}

	if state.rejected {
		state.result.RejectionReason = state.reason
		return &state.result, types.ErrValidationRejected
	}

	score := 0
	if state.result.OutputValidation != nil {
		score = state.result.OutputValidation.TotalScore
	}
	e.logActivity(ctx, in.OwnerID, types.ActivityGenerate, in.Filename, score, "")
	return &state.result, nil
}
