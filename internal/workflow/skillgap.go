package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"resume-agent-go/internal/llm"
	"resume-agent-go/internal/types"
)

// SkillGapInput 技能差距分析流水线的输入
type SkillGapInput struct {
	OwnerID    string
	Filename   string
	ResumeText string
	JobText    string
	Config     types.LLMConfig
}

// LearningItem 一条学习建议
type LearningItem struct {
	Skill    string `json:"skill"`
	Reason   string `json:"reason"`
	Resource string `json:"resource,omitempty"`
}

// SkillGapResult 技能差距分析的产物。
// MissingSkills 保证是 JDSkills 的子集(大小写不敏感)且不含候选人已有技能。
type SkillGapResult struct {
	ResumeSkills  []string       `json:"resume_skills"`
	JDSkills      []string       `json:"jd_skills"`
	MissingSkills []string       `json:"missing_skills"`
	Recommended   []LearningItem `json:"recommended"`
	NodeError     string         `json:"error,omitempty"`
}

type skillGapState struct {
	input     SkillGapInput
	chatModel model.ToolCallingChatModel
	result    SkillGapResult
}

type skillListOutput struct {
	Skills []string `json:"skills"`
}

type skillCompareOutput struct {
	MissingSkills []string       `json:"missing_skills"`
	Recommended   []LearningItem `json:"recommended"`
}

// buildSkillGapGraph 编译技能差距图: extract_resume_skills → extract_jd_skills → compare → end。
// 没有门控节点：输入质量差只会降低提取效果，不会中止。
func (e *Engine) buildSkillGapGraph() *Graph[skillGapState] {
	return NewGraph("skill_gap",
		Node[skillGapState]{
			Name: "extract_resume_skills",
			Run: func(ctx context.Context, s *skillGapState) error {
				skills, err := extractSkills(ctx, s.chatModel, skillExtractResumePrompt, s.input.ResumeText)
				var parseErr *types.ParseFailure
				if errors.As(err, &parseErr) {
					warnParseIssue(ctx, "skill_gap", "extract_resume_skills", err)
					s.result.NodeError = parseErr.Error()
					return nil
				}
				if err != nil {
					return err
				}
				s.result.ResumeSkills = skills
				return nil
			},
		},
		Node[skillGapState]{
			Name: "extract_jd_skills",
			Run: func(ctx context.Context, s *skillGapState) error {
				skills, err := extractSkills(ctx, s.chatModel, skillExtractJDPrompt, s.input.JobText)
				var parseErr *types.ParseFailure
				if errors.As(err, &parseErr) {
					warnParseIssue(ctx, "skill_gap", "extract_jd_skills", err)
					s.result.NodeError = parseErr.Error()
					return nil
				}
				if err != nil {
					return err
				}
				s.result.JDSkills = skills
				return nil
			},
		},
		Node[skillGapState]{
			Name: "compare",
			Run: func(ctx context.Context, s *skillGapState) error {
				userPrompt := fmt.Sprintf(skillComparePrompt,
					strings.Join(s.result.ResumeSkills, ", "),
					strings.Join(s.result.JDSkills, ", "))

				var out skillCompareOutput
				err := llm.CallJSON(ctx, s.chatModel, userPrompt, "请对比并输出结果。", &out)
				var parseErr *types.ParseFailure
				if errors.As(err, &parseErr) {
					// 解析失败退回纯字符串集合差，丢掉同义词识别但不中止
					warnParseIssue(ctx, "skill_gap", "compare", err)
					s.result.NodeError = parseErr.Error()
					s.result.MissingSkills = literalSetDifference(s.result.JDSkills, s.result.ResumeSkills)
					s.result.Recommended = []LearningItem{}
					return nil
				}
				if err != nil {
					return err
				}

				s.result.MissingSkills = enforceMissingSkills(out.MissingSkills, s.result.JDSkills, s.result.ResumeSkills)
				s.result.Recommended = out.Recommended
				if s.result.Recommended == nil {
					s.result.Recommended = []LearningItem{}
				}
				return nil
			},
		},
	)
}

func extractSkills(ctx context.Context, chatModel model.ToolCallingChatModel, systemPrompt, text string) ([]string, error) {
	var out skillListOutput
	if err := llm.CallJSON(ctx, chatModel, systemPrompt, text, &out); err != nil {
		return nil, err
	}
	if out.Skills == nil {
		return []string{}, nil
	}
	return out.Skills, nil
}

// enforceMissingSkills 对模型给出的缺失技能做Go侧约束：
// 必须来自岗位要求列表(取JD中的原写法)，且不能是候选人已有技能。
// 同义词判断交给模型，这里只挡住幻觉出来的新技能。
func enforceMissingSkills(missing, jdSkills, resumeSkills []string) []string {
	jdByLower := make(map[string]string, len(jdSkills))
	for _, skill := range jdSkills {
		jdByLower[strings.ToLower(strings.TrimSpace(skill))] = skill
	}
	resumeSet := make(map[string]struct{}, len(resumeSkills))
	for _, skill := range resumeSkills {
		resumeSet[strings.ToLower(strings.TrimSpace(skill))] = struct{}{}
	}

	result := make([]string, 0, len(missing))
	seen := make(map[string]struct{}, len(missing))
	for _, skill := range missing {
		key := strings.ToLower(strings.TrimSpace(skill))
		canonical, inJD := jdByLower[key]
		if !inJD {
			continue
		}
		if _, has := resumeSet[key]; has {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, canonical)
	}
	return result
}

// literalSetDifference 大小写不敏感的字面集合差，compare节点解析失败时的退路
func literalSetDifference(jdSkills, resumeSkills []string) []string {
	resumeSet := make(map[string]struct{}, len(resumeSkills))
	for _, skill := range resumeSkills {
		resumeSet[strings.ToLower(strings.TrimSpace(skill))] = struct{}{}
	}
	missing := make([]string, 0, len(jdSkills))
	for _, skill := range jdSkills {
		if _, has := resumeSet[strings.ToLower(strings.TrimSpace(skill))]; !has {
			missing = append(missing, skill)
		}
	}
	return missing
}

// RunSkillGap 执行技能差距分析流水线
func (e *Engine) RunSkillGap(ctx context.Context, in SkillGapInput) (*SkillGapResult, error) {
	if isBlank(in.ResumeText) || isBlank(in.JobText) {
		return nil, types.ErrInsufficientInput
	}

	chatModel, _, err := e.resolver.ModelForTask(ctx, string(types.TaskSkillGap), in.OwnerID, in.Config)
	if err != nil {
		return nil, err
	}

	state := &skillGapState{input: in, chatModel: chatModel}
	if err := e.skillGap.Execute(ctx, state); err != nil {
		return nil, err
	}

	e.logActivity(ctx, in.OwnerID, types.ActivitySkillGap, in.Filename, len(state.result.MissingSkills), "")
	return &state.result, nil
}
