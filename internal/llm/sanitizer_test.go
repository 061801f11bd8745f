package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/types"
)

func TestExtractJSONFromCodeFence(t *testing.T) {
	text := "分析结果如下：\n```json\n{\"total_score\": 22, \"classification\": \"良好\"}\n```\n以上。"
	got := ExtractJSON(text)
	assert.Equal(t, `{"total_score": 22, "classification": "良好"}`, got)
}

func TestExtractJSONBareObject(t *testing.T) {
	text := `模型输出前缀 {"a": {"b": 1}, "c": [1, 2]} 尾部文字`
	got := ExtractJSON(text)
	assert.Equal(t, `{"a": {"b": 1}, "c": [1, 2]}`, got)
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	// 字符串值中的大括号不应干扰层级匹配
	text := `{"summary": "使用了{模板}语法", "ok": true}`
	got := ExtractJSON(text)
	assert.Equal(t, text, got)
}

func TestExtractJSONArray(t *testing.T) {
	text := `[{"skill": "go"}, {"skill": "mysql"}]`
	got := ExtractJSON(text)
	assert.Equal(t, text, got)
}

func TestExtractJSONNoJSON(t *testing.T) {
	assert.Equal(t, "", ExtractJSON("抱歉，我无法处理这份文档。"))
	assert.Equal(t, "", ExtractJSON(""))
}

func TestParseIntoSuccess(t *testing.T) {
	var out struct {
		Score int  `json:"score"`
		Pass  bool `json:"pass"`
	}
	err := ParseInto("```json\n{\"score\": 80, \"pass\": true}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, 80, out.Score)
	assert.True(t, out.Pass)
}

func TestParseIntoFailure(t *testing.T) {
	var out map[string]interface{}
	err := ParseInto("这不是JSON", &out)
	require.Error(t, err)

	var pf *types.ParseFailure
	require.True(t, errors.As(err, &pf))
	assert.Contains(t, pf.RawText, "这不是JSON")
}
