package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/llm/llmtest"
	"resume-agent-go/internal/types"
)

func screenCompareJSON(fitScore int) string {
	return fmt.Sprintf(`{"fit_score":%d,"rationale":"测试依据","matched_requirements":["Go"],"missing_requirements":["AWS"]}`, fitScore)
}

func TestRunScreenThresholdInclusive(t *testing.T) {
	// 打分恰好等于分数线算通过
	mock := llmtest.NewMockChatModel(validationJSON(t, true, 4), screenCompareJSON(75))
	engine, _ := newTestEngine(mock)

	result, err := engine.RunScreen(context.Background(), ScreenInput{
		OwnerID: "t1", ResumeText: sampleResume, JobText: sampleJD,
	})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionPass, result.Decision)
	assert.Equal(t, 75, result.FitScore)
	assert.Equal(t, 75, result.Threshold)
}

func TestRunScreenBelowThreshold(t *testing.T) {
	mock := llmtest.NewMockChatModel(validationJSON(t, true, 4), screenCompareJSON(74))
	engine, activity := newTestEngine(mock)

	result, err := engine.RunScreen(context.Background(), ScreenInput{
		OwnerID: "t1", Filename: "resume.pdf", ResumeText: sampleResume, JobText: sampleJD,
	})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionFail, result.Decision)

	require.Len(t, activity.records, 1)
	assert.Equal(t, string(types.DecisionFail), activity.records[0].Decision)
	assert.Equal(t, 74, activity.records[0].Score)
}

func TestRunScreenCustomThreshold(t *testing.T) {
	mock := llmtest.NewMockChatModel(validationJSON(t, true, 4), screenCompareJSON(60))
	engine, _ := newTestEngine(mock)

	result, err := engine.RunScreen(context.Background(), ScreenInput{
		OwnerID: "t1", ResumeText: sampleResume, JobText: sampleJD, Threshold: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionPass, result.Decision)
	assert.Equal(t, 60, result.Threshold)
}

func TestRunScreenReviewOnIncompleteResume(t *testing.T) {
	// 残缺简历的打分不可信，转人工而不是机械裁决
	mock := llmtest.NewMockChatModel(validationJSON(t, true, 1), screenCompareJSON(90))
	engine, _ := newTestEngine(mock)

	result, err := engine.RunScreen(context.Background(), ScreenInput{
		OwnerID: "t1", ResumeText: sampleResume, JobText: sampleJD,
	})
	require.NoError(t, err)
	assert.Equal(t, types.ClassInvalidOrIncomplete, result.Validation.Classification)
	assert.Equal(t, types.DecisionReview, result.Decision)
}

func TestRunScreenNotResumeGate(t *testing.T) {
	mock := llmtest.NewMockChatModel(validationJSON(t, false, 0))
	engine, _ := newTestEngine(mock)

	result, err := engine.RunScreen(context.Background(), ScreenInput{
		OwnerID: "t1", ResumeText: "不是简历的文本", JobText: sampleJD,
	})
	assert.ErrorIs(t, err, types.ErrValidationRejected)
	require.NotNil(t, result)
	assert.Equal(t, types.ClassNotResume, result.Validation.Classification)
	assert.Equal(t, 1, mock.CallCount, "门控后不应再打分")
}

func TestRunScreenClampFitScore(t *testing.T) {
	mock := llmtest.NewMockChatModel(validationJSON(t, true, 4), screenCompareJSON(150))
	engine, _ := newTestEngine(mock)

	result, err := engine.RunScreen(context.Background(), ScreenInput{
		OwnerID: "t1", ResumeText: sampleResume, JobText: sampleJD,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, result.FitScore)
	assert.Equal(t, types.DecisionPass, result.Decision)
}

func TestRunScreenRecordsResult(t *testing.T) {
	recorder := &fakeScreeningRecorder{}
	mock := llmtest.NewMockChatModel(validationJSON(t, true, 4), screenCompareJSON(80))
	engine, _ := newTestEngine(mock, WithScreeningRecorder(recorder))

	_, err := engine.RunScreen(context.Background(), ScreenInput{
		OwnerID: "t1", ResumeID: "r-1", JobID: "j-1", ResumeText: sampleResume, JobText: sampleJD,
	})
	require.NoError(t, err)

	require.Len(t, recorder.records, 1)
	record := recorder.records[0]
	assert.Equal(t, "t1", record.OwnerID)
	assert.Equal(t, "r-1", record.ResumeID)
	assert.Equal(t, 80, record.FitScore)
	assert.True(t, record.Passed)
	assert.NotEmpty(t, record.ResultJSON)
}

func TestRunScreenRecorderFailureTolerated(t *testing.T) {
	recorder := &fakeScreeningRecorder{err: assert.AnError}
	mock := llmtest.NewMockChatModel(validationJSON(t, true, 4), screenCompareJSON(80))
	engine, _ := newTestEngine(mock, WithScreeningRecorder(recorder))

	result, err := engine.RunScreen(context.Background(), ScreenInput{
		OwnerID: "t1", ResumeText: sampleResume, JobText: sampleJD,
	})
	require.NoError(t, err, "留痕失败不影响初筛结果")
	assert.Equal(t, types.DecisionPass, result.Decision)
}
