package workflow

import (
	"context"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"resume-agent-go/internal/types"
)

// ConvertInput 领英资料转简历流水线的输入，素材是抓取或粘贴的个人主页文本
type ConvertInput struct {
	OwnerID     string
	Filename    string
	ProfileText string
	Config      types.LLMConfig
}

type convertState struct {
	input      ConvertInput
	chatModel  model.ToolCallingChatModel
	normalized string
	result     GenerateResult
}

// 领英页面文本里常见的界面残留，按整行剔除
var linkedinNoiseRe = regexp.MustCompile(`(?i)^\s*(show (more|less|all.*)|see more|…more|\.\.\.more|connect|message|follow|endorse(ments)?|· (1st|2nd|3rd\+?)|\d+ (followers|connections)|people also viewed)\s*$`)

var blankRunsRe = regexp.MustCompile(`\n{3,}`)

// normalizeProfileText 清理抓取文本：剔除界面残留行、压缩连续空行。
// 残缺或乱序的文本原样保留，由起草提示词容错处理。
func normalizeProfileText(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if linkedinNoiseRe.MatchString(line) {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}
	result := strings.Join(kept, "\n")
	result = blankRunsRe.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

// buildConvertGraph 编译领英转换图: normalize_profile_text → draft_sections → end。
// 与生成图结构相同，但没有相关性门控：残缺的抓取文本照常起草，缺失的节静默省略。
func (e *Engine) buildConvertGraph() *Graph[convertState] {
	return NewGraph("linkedin_convert",
		Node[convertState]{
			Name: "normalize_profile_text",
			Run: func(ctx context.Context, s *convertState) error {
				s.normalized = normalizeProfileText(s.input.ProfileText)
				if s.normalized == "" {
					return types.ErrInsufficientInput
				}
				return nil
			},
		},
		Node[convertState]{
			Name: "draft_sections",
			Run: func(ctx context.Context, s *convertState) error {
				return e.draftSections(ctx, s.chatModel, s.normalized, &s.result)
			},
		},
	)
}

// RunConvert 执行领英资料转简历流水线
func (e *Engine) RunConvert(ctx context.Context, in ConvertInput) (*GenerateResult, error) {
	if isBlank(in.ProfileText) {
		return nil, types.ErrInsufficientInput
	}

	chatModel, _, err := e.resolver.ModelForTask(ctx, string(types.TaskLinkedInConvert), in.OwnerID, in.Config)
	if err != nil {
		return nil, err
	}

	state := &convertState{input: in, chatModel: chatModel}
	if err := e.convert.Execute(ctx, state); err != nil {
		return nil, err
	}

	score := 0
	if state.result.OutputValidation != nil {
		score = state.result.OutputValidation.TotalScore
	}
	e.logActivity(ctx, in.OwnerID, types.ActivityConvert, in.Filename, score, "")
	return &state.result, nil
}
