package types

import (
	"time"
)

// TaskType 流水线任务类型
type TaskType string

const (
	// TaskQuality 简历质量评分
	TaskQuality TaskType = "quality"
	// TaskSkillGap 技能差距分析
	TaskSkillGap TaskType = "skill_gap"
	// TaskScreen 自动初筛
	TaskScreen TaskType = "screen"
	// TaskGenerate 根据个人描述生成简历
	TaskGenerate TaskType = "generate"
	// TaskLinkedInConvert 将粘贴的领英个人资料文本转换为简历
	TaskLinkedInConvert TaskType = "linkedin_convert"
)

// Classification 简历质量分级，按 total_score 单调划分
type Classification string

const (
	ClassNotResume           Classification = "not_resume"
	ClassInvalidOrIncomplete Classification = "resume_invalid_or_incomplete"
	ClassValidButWeak        Classification = "resume_valid_but_weak"
	ClassValidGood           Classification = "resume_valid_good"
	ClassValidStrong         Classification = "resume_valid_strong"
)

// ScoreKeys 六个子评分维度的固定顺序，total_score 必须等于它们的和
var ScoreKeys = []string{
	"document_type_validity",
	"completeness",
	"structure_readability",
	"achievement_quality",
	"credibility_consistency",
	"ats_friendliness",
}

// ValidationResult 简历校验报告
// total_score 在服务端重新计算，classification 由 total_score 推导，
// 不信任 LLM 返回的数值。
type ValidationResult struct {
	IsResume              bool           `json:"is_resume"`
	Classification        Classification `json:"classification"`
	Scores                map[string]int `json:"scores"`
	TotalScore            int            `json:"total_score"`
	MissingFields         []string       `json:"missing_fields"`
	TopIssues             []string       `json:"top_issues"`
	SuggestedImprovements []string       `json:"suggested_improvements"`
	Summary               string         `json:"summary"`
}

// ClampScore 将子评分限制在[0,5]区间，越界值取边界而非报错
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 5 {
		return 5
	}
	return v
}

// ClassifyByScore 根据总分推导分级。分级带对总分单调：分数越高，分级不会更差。
func ClassifyByScore(total int, isResume bool) Classification {
	if !isResume {
		return ClassNotResume
	}
	switch {
	case total <= 10:
		return ClassInvalidOrIncomplete
	case total <= 17:
		return ClassValidButWeak
	case total <= 24:
		return ClassValidGood
	default:
		return ClassValidStrong
	}
}

// Normalize 重新计算总分并强制分级规则，防止LLM幻觉导致分数与分级不一致
func (v *ValidationResult) Normalize() {
	if v.Scores == nil {
		v.Scores = make(map[string]int, len(ScoreKeys))
	}
	total := 0
	for _, key := range ScoreKeys {
		s := ClampScore(v.Scores[key])
		v.Scores[key] = s
		total += s
	}
	v.TotalScore = total
	v.Classification = ClassifyByScore(total, v.IsResume)
	if v.MissingFields == nil {
		v.MissingFields = []string{}
	}
	if v.TopIssues == nil {
		v.TopIssues = []string{}
	}
	if v.SuggestedImprovements == nil {
		v.SuggestedImprovements = []string{}
	}
}

// LLMConfig 单次请求的模型/凭证覆盖，状态记录必须携带该字段，
// 保证每个节点以相同方式构建LLM客户端。
type LLMConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
}

// ResumeContact 简历联系方式。可选字段缺失时必须为空指针/省略，
// 绝不能是空字符串占位，导出渲染方需要区分"未提供"和"空"。
type ResumeContact struct {
	Name     string  `json:"name"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Location *string `json:"location,omitempty"`
	LinkedIn *string `json:"linkedin,omitempty"`
}

// ResumeExperience 一段工作经历
type ResumeExperience struct {
	Title   string   `json:"title"`
	Company string   `json:"company"`
	Period  string   `json:"period"`
	Bullets []string `json:"bullets"`
}

// ResumeEducation 一段教育经历
type ResumeEducation struct {
	Degree string `json:"degree"`
	School string `json:"school"`
	Year   string `json:"year"`
}

// ResumeCertification 一项证书
type ResumeCertification struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer,omitempty"`
	Date   string `json:"date,omitempty"`
}

// StructuredResume 结构化简历，生成类流水线的产物
type StructuredResume struct {
	Contact        *ResumeContact        `json:"contact,omitempty"`
	Summary        string                `json:"summary"`
	Skills         []string              `json:"skills"`
	Experience     []ResumeExperience    `json:"experience"`
	Education      []ResumeEducation     `json:"education"`
	Certifications []ResumeCertification `json:"certifications,omitempty"`
}

// ScreeningDecision 初筛决定
type ScreeningDecision string

const (
	DecisionPass   ScreeningDecision = "pass"
	DecisionFail   ScreeningDecision = "fail"
	DecisionReview ScreeningDecision = "review"
)

// RankedDocument 检索结果中的一条文档，Score 为该文档所有分块的最大相似度
type RankedDocument struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Score      float32   `json:"score"`
	Excerpt    string    `json:"excerpt,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RankedJob 岗位匹配/检索结果中的一条
type RankedJob struct {
	JobID          string   `json:"job_id"`
	Title          string   `json:"title"`
	Level          string   `json:"level,omitempty"`
	Category       string   `json:"category,omitempty"`
	Score          float32  `json:"score"`
	RequiredSkills []string `json:"required_skills,omitempty"`
}

// ActivityType 活动日志类型
const (
	ActivityQuality  = "quality"
	ActivitySkillGap = "skill_gap"
	ActivityScreen   = "screen"
	ActivityGenerate = "generate"
	ActivityConvert  = "linkedin_convert"
)

// Activity 一条审计日志，只追加，不更新不删除
type Activity struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Type      string    `json:"type"`
	Filename  string    `json:"filename"`
	Score     int       `json:"score"`
	Decision  string    `json:"decision"`
	Timestamp time.Time `json:"timestamp"`
}

// DashboardStats 租户的汇总统计，来自活动日志
type DashboardStats struct {
	TotalResumes   int64      `json:"total_resumes"`
	AutoScreened   int64      `json:"auto_screened"`
	HighMatches    int64      `json:"high_matches"`
	SkillGaps      int64      `json:"skill_gaps"`
	QualityScored  int64      `json:"quality_scored"`
	RecentActivity []Activity `json:"recent_activity"`
}
