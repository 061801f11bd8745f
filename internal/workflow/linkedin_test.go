package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/llm/llmtest"
	"resume-agent-go/internal/types"
)

const scrapedProfile = `王五
高级软件工程师 · 某科技公司
· 3rd
500 followers

Show more
负责广告投放系统的架构设计
Connect
Message

熟悉 Go、Redis、ClickHouse
see more


教育经历：某大学 计算机系`

func TestNormalizeProfileText(t *testing.T) {
	normalized := normalizeProfileText(scrapedProfile)

	assert.NotContains(t, normalized, "Show more")
	assert.NotContains(t, normalized, "Connect")
	assert.NotContains(t, normalized, "500 followers")
	assert.Contains(t, normalized, "负责广告投放系统的架构设计")
	assert.Contains(t, normalized, "熟悉 Go、Redis、ClickHouse")
	assert.NotContains(t, normalized, "\n\n\n", "连续空行应被压缩")
}

func TestRunConvertNoiseOnlyInput(t *testing.T) {
	mock := llmtest.NewMockChatModel("{}")
	engine, _ := newTestEngine(mock)

	_, err := engine.RunConvert(context.Background(), ConvertInput{OwnerID: "t1", ProfileText: "Show more\nConnect\nMessage"})
	assert.ErrorIs(t, err, types.ErrInsufficientInput)
	assert.Zero(t, mock.CallCount)
}

func TestRunConvertHappyPath(t *testing.T) {
	mock := llmtest.NewMockChatModel(draftJSON, validationJSON(t, true, 3))
	engine, activity := newTestEngine(mock)

	result, err := engine.RunConvert(context.Background(), ConvertInput{OwnerID: "t1", Filename: "linkedin.txt", ProfileText: scrapedProfile})
	require.NoError(t, err)
	require.NotNil(t, result.Resume)
	assert.Equal(t, []string{"Go", "MySQL", "Kafka"}, result.Resume.Skills)
	require.NotNil(t, result.OutputValidation)

	// 转换图没有相关性门控：两次调用分别是起草和产物校验
	assert.Equal(t, 2, mock.CallCount)
	require.Len(t, activity.records, 1)
	assert.Equal(t, types.ActivityConvert, activity.records[0].Type)
}

func TestRunConvertPartialProfileTolerated(t *testing.T) {
	// 残缺素材：起草结果缺教育和证书，静默省略而不是失败
	partial := `{"summary":"广告系统工程师","skills":["Go"],"experience":[],"education":[],"certifications":[]}`
	mock := llmtest.NewMockChatModel(partial, validationJSON(t, true, 2))
	engine, _ := newTestEngine(mock)

	result, err := engine.RunConvert(context.Background(), ConvertInput{OwnerID: "t1", ProfileText: "王五 广告系统 Go"})
	require.NoError(t, err)
	require.NotNil(t, result.Resume)
	assert.Nil(t, result.Resume.Contact)
	assert.Empty(t, result.Resume.Education)
}
