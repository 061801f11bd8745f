package orchestrator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/llm/llmtest"
	"resume-agent-go/internal/types"
	"resume-agent-go/internal/workflow"
)

type stubResolver struct {
	chatModel model.ToolCallingChatModel
	panicMsg  string
}

func (s *stubResolver) ModelForTask(_ context.Context, _ string, _ string, override types.LLMConfig) (model.ToolCallingChatModel, types.LLMConfig, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.chatModel, override, nil
}

func validResponse(t *testing.T, perScore int) string {
	t.Helper()
	scores := make(map[string]int, len(types.ScoreKeys))
	for _, key := range types.ScoreKeys {
		scores[key] = perScore
	}
	data, err := json.Marshal(map[string]interface{}{"is_resume": perScore > 0, "scores": scores})
	require.NoError(t, err)
	return string(data)
}

func newOrchestrator(mock *llmtest.MockChatModel) *Orchestrator {
	return New(workflow.NewEngine(&stubResolver{chatModel: mock}))
}

func TestRunUnknownTask(t *testing.T) {
	o := newOrchestrator(llmtest.NewMockChatModel("{}"))

	result := o.Run(context.Background(), types.TaskType("bogus"), Inputs{OwnerID: "t1", ResumeText: "文本"}, types.LLMConfig{})
	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "bogus")
	assert.Nil(t, result.Data)
}

func TestRunQualitySuccess(t *testing.T) {
	report := `{"strengths":["好"],"weaknesses":[],"section_feedback":{},"rewrite_examples":[],"overall_comment":"不错"}`
	o := newOrchestrator(llmtest.NewMockChatModel(validResponse(t, 4), report))

	result := o.Run(context.Background(), types.TaskQuality, Inputs{OwnerID: "t1", ResumeText: "一份足够长的简历文本"}, types.LLMConfig{})
	require.Equal(t, StatusSuccess, result.Status)

	data, ok := result.Data.(*workflow.QualityResult)
	require.True(t, ok)
	assert.Equal(t, 24, data.Validation.TotalScore)
	require.NotNil(t, data.Report)
}

func TestRunGateRejection(t *testing.T) {
	o := newOrchestrator(llmtest.NewMockChatModel(validResponse(t, 0)))

	result := o.Run(context.Background(), types.TaskQuality, Inputs{OwnerID: "t1", ResumeText: "五个字而已"}, types.LLMConfig{})
	assert.Equal(t, StatusRejected, result.Status)
	assert.NotEmpty(t, result.Rejection)
	assert.Empty(t, result.Error)

	// 拒绝结果照样带回结构化反馈
	data, ok := result.Data.(*workflow.QualityResult)
	require.True(t, ok)
	assert.Equal(t, types.ClassNotResume, data.Validation.Classification)
}

func TestRunGenerateRejectionCarriesReason(t *testing.T) {
	o := newOrchestrator(llmtest.NewMockChatModel(`{"is_relevant": false, "reason": "文本是一篇新闻报道，与个人职业背景无关"}`))

	result := o.Run(context.Background(), types.TaskGenerate, Inputs{OwnerID: "t1", ProfileText: "某公司今日发布新产品……"}, types.LLMConfig{})
	assert.Equal(t, StatusRejected, result.Status)

	data, ok := result.Data.(*workflow.GenerateResult)
	require.True(t, ok)
	assert.Contains(t, data.RejectionReason, "新闻报道")
	assert.Nil(t, data.Resume)
}

func TestRunInsufficientInput(t *testing.T) {
	mock := llmtest.NewMockChatModel("{}")
	o := newOrchestrator(mock)

	result := o.Run(context.Background(), types.TaskScreen, Inputs{OwnerID: "t1", ResumeText: " ", JobText: "岗位"}, types.LLMConfig{})
	assert.Equal(t, StatusRejected, result.Status)
	assert.Zero(t, mock.CallCount)
}

func TestRunPanicContained(t *testing.T) {
	o := New(workflow.NewEngine(&stubResolver{panicMsg: "boom"}))

	var result Result
	assert.NotPanics(t, func() {
		result = o.Run(context.Background(), types.TaskQuality, Inputs{OwnerID: "t1", ResumeText: "简历文本"}, types.LLMConfig{})
	})
	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "boom")
}

func TestRunCredentialMissing(t *testing.T) {
	// 空API key的mock工厂路径在llm包测试覆盖；这里验证错误转成结构化结果
	o := New(workflow.NewEngine(&failingResolver{}))

	result := o.Run(context.Background(), types.TaskGenerate, Inputs{OwnerID: "t1", ProfileText: "职业背景"}, types.LLMConfig{})
	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, types.ErrCredentialMissing.Error())
}

type failingResolver struct{}

func (f *failingResolver) ModelForTask(_ context.Context, _ string, _ string, _ types.LLMConfig) (model.ToolCallingChatModel, types.LLMConfig, error) {
	return nil, types.LLMConfig{}, types.ErrCredentialMissing
}
