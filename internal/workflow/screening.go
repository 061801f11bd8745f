package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"resume-agent-go/internal/llm"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/types"
)

// ScreenInput 自动初筛流水线的输入。Threshold为0时用引擎默认分数线。
type ScreenInput struct {
	OwnerID    string
	Filename   string
	ResumeID   string
	JobID      string
	ResumeText string
	JobText    string
	Threshold  int
	Config     types.LLMConfig
}

// ScreenResult 初筛产物
type ScreenResult struct {
	Decision            types.ScreeningDecision `json:"decision"`
	FitScore            int                     `json:"fit_score"`
	Threshold           int                     `json:"threshold"`
	Rationale           string                  `json:"rationale"`
	MatchedRequirements []string                `json:"matched_requirements"`
	MissingRequirements []string                `json:"missing_requirements"`
	Validation          *types.ValidationResult `json:"validation"`
}

type screenState struct {
	input     ScreenInput
	chatModel model.ToolCallingChatModel
	threshold int
	rejected  bool
	result    ScreenResult
}

type screenCompareOutput struct {
	FitScore            int      `json:"fit_score"`
	Rationale           string   `json:"rationale"`
	MatchedRequirements []string `json:"matched_requirements"`
	MissingRequirements []string `json:"missing_requirements"`
}

// buildScreenGraph 编译初筛图: validate → compare_to_threshold → decide → end
func (e *Engine) buildScreenGraph() *Graph[screenState] {
	return NewGraph("screen",
		Node[screenState]{
			Name: "validate",
			Run: func(ctx context.Context, s *screenState) error {
				validation, err := e.validateResume(ctx, s.chatModel, s.input.ResumeText)
				if err != nil {
					return err
				}
				s.result.Validation = validation
				if validation.Classification == types.ClassNotResume {
					s.rejected = true
					return errHalt
				}
				return nil
			},
		},
		Node[screenState]{
			Name: "compare_to_threshold",
			Run: func(ctx context.Context, s *screenState) error {
				userPrompt := fmt.Sprintf(screenUserPrompt, s.input.JobText, s.input.ResumeText)
				var out screenCompareOutput
				// 匹配分是最终决定的输入，解析失败不能降级
				if err := llm.CallJSON(ctx, s.chatModel, screenComparePrompt, userPrompt, &out); err != nil {
					return err
				}
				s.result.FitScore = clampFitScore(out.FitScore)
				s.result.Rationale = out.Rationale
				s.result.MatchedRequirements = out.MatchedRequirements
				s.result.MissingRequirements = out.MissingRequirements
				return nil
			},
		},
		Node[screenState]{
			Name: "decide",
			Run: func(ctx context.Context, s *screenState) error {
				s.result.Threshold = s.threshold
				// 决定在Go侧推导，不信任模型自报的结论。
				// 简历残缺到无法可信打分时转人工，其余按分数线裁决，等于分数线算通过。
				switch {
				case s.result.Validation.Classification == types.ClassInvalidOrIncomplete:
					s.result.Decision = types.DecisionReview
				case s.result.FitScore >= s.threshold:
					s.result.Decision = types.DecisionPass
				default:
					s.result.Decision = types.DecisionFail
				}
				return nil
			},
		},
	)
}

// RunScreen 执行自动初筛流水线。
// 被判定为非简历时返回部分结果和 types.ErrValidationRejected。
func (e *Engine) RunScreen(ctx context.Context, in ScreenInput) (*ScreenResult, error) {
	if isBlank(in.ResumeText) || isBlank(in.JobText) {
		return nil, types.ErrInsufficientInput
	}

	chatModel, _, err := e.resolver.ModelForTask(ctx, string(types.TaskScreen), in.OwnerID, in.Config)
	if err != nil {
		return nil, err
	}

	threshold := in.Threshold
	if threshold <= 0 {
		threshold = e.threshold
	}

	state := &screenState{input: in, chatModel: chatModel, threshold: threshold}
	if err := e.screen.Execute(ctx, state); err != nil {
		return nil, err
	}

	if state.rejected {
		e.logActivity(ctx, in.OwnerID, types.ActivityScreen, in.Filename, 0, string(types.ClassNotResume))
		return &state.result, types.ErrValidationRejected
	}

	e.recordScreening(ctx, in, &state.result)
	e.logActivity(ctx, in.OwnerID, types.ActivityScreen, in.Filename, state.result.FitScore, string(state.result.Decision))
	return &state.result, nil
}

// recordScreening 初筛结果留痕，尽力而为
func (e *Engine) recordScreening(ctx context.Context, in ScreenInput, result *ScreenResult) {
	if e.screening == nil {
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		resultJSON = nil
	}
	record := &models.ScreeningRecord{
		OwnerID:    in.OwnerID,
		ResumeID:   in.ResumeID,
		JobID:      in.JobID,
		FitScore:   result.FitScore,
		Threshold:  result.Threshold,
		Passed:     result.Decision == types.DecisionPass,
		ResultJSON: resultJSON,
	}
	if err := e.screening.InsertScreeningRecord(ctx, record); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("resume_id", in.ResumeID).Msg("初筛结果留痕失败")
	}
}
