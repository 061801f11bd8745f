package tracing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("张"))
	assert.Equal(t, "张*", MaskPII("张三"))
	assert.Equal(t, "王*明", MaskPII("王小明"))
	assert.Equal(t, "13*******78", MaskPII("13812345678"))

	masked := MaskPII("myemail@example.com")
	assert.True(t, strings.HasPrefix(masked, "my"))
	assert.True(t, strings.HasSuffix(masked, "om"))
	assert.NotContains(t, masked, "example")
}

func TestSafeAttributeValue(t *testing.T) {
	// 属性名命中敏感关键字时值被掩码
	assert.Equal(t, "sk*******23", SafeAttributeValue("llm.api_key", "sk-abcde123", DefaultMaxLength))
	assert.Equal(t, "13*******78", SafeAttributeValue("candidate.phone", "13812345678", DefaultMaxLength))

	// 普通属性只做截断
	long := strings.Repeat("a", 300)
	got := SafeAttributeValue("db.operation", long, DefaultMaxLength)
	assert.LessOrEqual(t, len([]rune(got)), DefaultMaxLength)
	assert.Contains(t, got, "...")
	assert.Equal(t, "select", SafeAttributeValue("db.operation", "select", DefaultMaxLength))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "短文本", TruncateString("短文本", 10))

	got := TruncateString(strings.Repeat("x", 100), 21)
	assert.Len(t, []rune(got), 21)
	assert.Contains(t, got, "...")

	// maxLength过小时直接硬截断
	assert.Equal(t, "xxx", TruncateString(strings.Repeat("x", 100), 3))
}

func TestSafeSQL(t *testing.T) {
	sql := "SELECT * FROM activity_logs WHERE owner_id = ? " + strings.Repeat("AND 1=1 ", 200)
	got := SafeSQL(sql)
	assert.LessOrEqual(t, len([]rune(got)), MaxSQLLength)
	assert.True(t, strings.HasPrefix(got, "SELECT"))
}

func TestSafeResumeContent(t *testing.T) {
	content := strings.Repeat("工作经历", 100)
	got := SafeResumeContent(content)
	assert.LessOrEqual(t, len([]rune(got)), MaxResumeLength)
}

func TestSafeRedisKey(t *testing.T) {
	key := "credential:owner:" + strings.Repeat("t", 200)
	got := SafeRedisKey(key)
	assert.LessOrEqual(t, len([]rune(got)), MaxRedisLength)
}
