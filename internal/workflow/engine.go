package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"resume-agent-go/internal/llm"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/types"
)

// ModelResolver 按任务和租户解析可用的聊天模型，由llm.Factory实现
type ModelResolver interface {
	ModelForTask(ctx context.Context, taskName string, ownerID string, override types.LLMConfig) (model.ToolCallingChatModel, types.LLMConfig, error)
}

// ActivityLogger 审计流水写入，由vectorstore.Client实现。尽力而为，失败不冒错。
type ActivityLogger interface {
	LogActivity(ctx context.Context, ownerID, activityType, filename string, score int, decision string)
}

// ScreeningRecorder 初筛结果留痕，由storage.MySQL实现
type ScreeningRecorder interface {
	InsertScreeningRecord(ctx context.Context, record *models.ScreeningRecord) error
}

// Engine 持有五条流水线的共享依赖。
// 图在构造时编译一次，之后可被并发调用共享；每次调用有自己的状态实例。
type Engine struct {
	resolver  ModelResolver
	activity  ActivityLogger    // 可为nil
	screening ScreeningRecorder // 可为nil
	threshold int

	quality  *Graph[qualityState]
	skillGap *Graph[skillGapState]
	screen   *Graph[screenState]
	generate *Graph[generateState]
	convert  *Graph[convertState]
}

// EngineOption 定义Engine构造选项
type EngineOption func(*Engine)

// WithActivityLogger 接入审计流水
func WithActivityLogger(logger ActivityLogger) EngineOption {
	return func(e *Engine) { e.activity = logger }
}

// WithScreeningRecorder 接入初筛留痕
func WithScreeningRecorder(recorder ScreeningRecorder) EngineOption {
	return func(e *Engine) { e.screening = recorder }
}

// WithScreeningThreshold 设置初筛通过分数线
func WithScreeningThreshold(threshold int) EngineOption {
	return func(e *Engine) {
		if threshold > 0 {
			e.threshold = threshold
		}
	}
}

// DefaultScreeningThreshold 初筛默认分数线，打分等于分数线算通过
const DefaultScreeningThreshold = 75

// NewEngine 创建流水线引擎并编译全部图
func NewEngine(resolver ModelResolver, opts ...EngineOption) *Engine {
	e := &Engine{
		resolver:  resolver,
		threshold: DefaultScreeningThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.quality = e.buildQualityGraph()
	e.skillGap = e.buildSkillGapGraph()
	e.screen = e.buildScreenGraph()
	e.generate = e.buildGenerateGraph()
	e.convert = e.buildConvertGraph()
	return e
}

func (e *Engine) logActivity(ctx context.Context, ownerID, activityType, filename string, score int, decision string) {
	if e.activity == nil {
		return
	}
	e.activity.LogActivity(ctx, ownerID, activityType, filename, score, decision)
}

// validateResume 共享的简历校验节点逻辑：质量评分、初筛和生成后校验都用它。
// 返回的结果已经过Normalize，总分和分级不信任模型原始输出。
func (e *Engine) validateResume(ctx context.Context, chatModel model.ToolCallingChatModel, text string) (*types.ValidationResult, error) {
	var result types.ValidationResult
	userPrompt := fmt.Sprintf(validationUserPrompt, text)
	if err := llm.CallJSON(ctx, chatModel, validationSystemPrompt, userPrompt, &result); err != nil {
		return nil, err
	}
	result.Normalize()
	return &result, nil
}

// draftStructuredResume 共享的简历起草节点逻辑，生成和领英转换都用它
func (e *Engine) draftStructuredResume(ctx context.Context, chatModel model.ToolCallingChatModel, profileText string) (*types.StructuredResume, error) {
	var resume types.StructuredResume
	if err := llm.CallJSON(ctx, chatModel, draftResumePrompt, profileText, &resume); err != nil {
		return nil, err
	}
	normalizeResume(&resume)
	return &resume, nil
}

// normalizeResume 清理模型输出：可选字段的空字符串占位一律转为缺失，
// 下游导出渲染方需要区分"未提供"和"空"。
func normalizeResume(r *types.StructuredResume) {
	if r.Contact != nil {
		r.Contact.Email = dropEmpty(r.Contact.Email)
		r.Contact.Phone = dropEmpty(r.Contact.Phone)
		r.Contact.Location = dropEmpty(r.Contact.Location)
		r.Contact.LinkedIn = dropEmpty(r.Contact.LinkedIn)
		if r.Contact.Name == "" && r.Contact.Email == nil && r.Contact.Phone == nil &&
			r.Contact.Location == nil && r.Contact.LinkedIn == nil {
			r.Contact = nil
		}
	}
	if r.Skills == nil {
		r.Skills = []string{}
	}
	if r.Experience == nil {
		r.Experience = []types.ResumeExperience{}
	}
	if r.Education == nil {
		r.Education = []types.ResumeEducation{}
	}

	kept := r.Certifications[:0]
	for _, cert := range r.Certifications {
		if cert.Name != "" {
			kept = append(kept, cert)
		}
	}
	r.Certifications = kept
}

func dropEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// renderResumeText 把结构化简历拍平成纯文本，供生成后的质量校验使用
func renderResumeText(r *types.StructuredResume) string {
	var sb strings.Builder
	if r.Contact != nil {
		sb.WriteString(r.Contact.Name)
		sb.WriteString("\n")
		for _, field := range []*string{r.Contact.Email, r.Contact.Phone, r.Contact.Location, r.Contact.LinkedIn} {
			if field != nil {
				sb.WriteString(*field)
				sb.WriteString("\n")
			}
		}
	}
	if r.Summary != "" {
		sb.WriteString("\n")
		sb.WriteString(r.Summary)
		sb.WriteString("\n")
	}
	if len(r.Skills) > 0 {
		sb.WriteString("\n技能: ")
		sb.WriteString(strings.Join(r.Skills, ", "))
		sb.WriteString("\n")
	}
	for _, exp := range r.Experience {
		sb.WriteString(fmt.Sprintf("\n%s | %s | %s\n", exp.Title, exp.Company, exp.Period))
		for _, bullet := range exp.Bullets {
			sb.WriteString("- ")
			sb.WriteString(bullet)
			sb.WriteString("\n")
		}
	}
	for _, edu := range r.Education {
		sb.WriteString(fmt.Sprintf("\n%s, %s, %s\n", edu.Degree, edu.School, edu.Year))
	}
	for _, cert := range r.Certifications {
		sb.WriteString(fmt.Sprintf("\n证书: %s %s %s\n", cert.Name, cert.Issuer, cert.Date))
	}
	return sb.String()
}

// clampFitScore 匹配分限制在[0,100]
func clampFitScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func warnParseIssue(ctx context.Context, graph, node string, err error) {
	logger.Ctx(ctx).Warn().Err(err).
		Str("graph", graph).
		Str("node", node).
		Msg("节点输出解析失败，按降级路径继续")
}
