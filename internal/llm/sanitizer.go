package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"resume-agent-go/internal/types"
)

// jsonFenceRe 匹配 ```json ... ``` 代码块
var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*([\\{\\[].*?[\\}\\]])\\s*```")

// ExtractJSON 从LLM输出文本中提取JSON部分。
// 优先匹配Markdown代码块，其次通过括号层级匹配定位第一个完整的JSON值。
// 提取失败时返回空字符串。
func ExtractJSON(text string) string {
	matches := jsonFenceRe.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	// 回退：寻找第一个 { 或 [，再按层级匹配对应的闭合符
	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")

	start := objStart
	open, close := byte('{'), byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
		open, close = '[', ']'
	}
	if start == -1 {
		return ""
	}

	level := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
			// 字符串内部的括号不参与层级计数
		case ch == open:
			level++
		case ch == close:
			level--
			if level == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}

// ParseInto 从LLM输出中提取JSON并反序列化到目标结构。
// 失败时返回 *types.ParseFailure，携带截断后的原始文本用于诊断。
func ParseInto(raw string, v interface{}) error {
	jsonStr := ExtractJSON(raw)
	if jsonStr == "" {
		return &types.ParseFailure{
			Reason:  "无法从模型输出中提取有效的JSON",
			RawText: truncateRaw(raw),
		}
	}

	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return &types.ParseFailure{
			Reason:  "解析JSON失败: " + err.Error(),
			RawText: truncateRaw(jsonStr),
		}
	}
	return nil
}

// 原始文本只保留前若干字符，避免日志和span中出现整份简历
func truncateRaw(s string) string {
	const maxRaw = 500
	runes := []rune(s)
	if len(runes) <= maxRaw {
		return s
	}
	return string(runes[:maxRaw]) + "..."
}
