package vectorstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextEmpty(t *testing.T) {
	assert.Empty(t, ChunkText(""))
	assert.Empty(t, ChunkText("   \n\t  "))
}

func TestChunkTextShort(t *testing.T) {
	chunks := ChunkText("一段很短的简历文本")
	require.Len(t, chunks, 1)
	assert.Equal(t, "一段很短的简历文本", chunks[0])
}

func TestChunkTextExactWindow(t *testing.T) {
	text := strings.Repeat("a", ChunkWindow)
	chunks := ChunkText(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkTextCount(t *testing.T) {
	// len > window 时分块数 = ceil((len-overlap)/stride)
	cases := []struct {
		length int
		want   int
	}{
		{1001, 2},
		{1800, 2},
		{1801, 3},
		{2600, 3},
		{5000, 6},
	}
	for _, tc := range cases {
		text := strings.Repeat("x", tc.length)
		chunks := ChunkText(text)
		assert.Len(t, chunks, tc.want, "length=%d", tc.length)
	}
}

func TestChunkTextOverlap(t *testing.T) {
	// 用不重复的内容验证相邻分块之间恰好重叠 ChunkOverlap 个字符
	var sb strings.Builder
	for sb.Len() < 3000 {
		sb.WriteString("0123456789abcdefghijklmnopqrstuvwxyz")
	}
	text := sb.String()[:3000]

	chunks := ChunkText(text)
	require.Greater(t, len(chunks), 1)

	for i := 0; i < len(chunks)-1; i++ {
		prev := []rune(chunks[i])
		next := []rune(chunks[i+1])
		tail := string(prev[len(prev)-ChunkOverlap:])
		head := string(next[:ChunkOverlap])
		assert.Equal(t, tail, head, "chunk %d/%d 重叠区不一致", i, i+1)
	}
}

func TestChunkTextReconstruct(t *testing.T) {
	// 去掉重叠后拼接应还原原文
	text := strings.Repeat("简历内容测试段落。", 300)
	chunks := ChunkText(text)
	require.Greater(t, len(chunks), 1)

	var sb strings.Builder
	sb.WriteString(chunks[0])
	for _, chunk := range chunks[1:] {
		runes := []rune(chunk)
		sb.WriteString(string(runes[ChunkOverlap:]))
	}
	assert.Equal(t, text, sb.String())
}

func TestChunkTextUnicodeBoundary(t *testing.T) {
	// 分块按rune切分，多字节字符不会被截断
	text := strings.Repeat("简", 2500)
	chunks := ChunkText(text)
	for i, chunk := range chunks {
		for _, r := range chunk {
			assert.Equal(t, '简', r, "chunk %d 含被截断字符", i)
		}
	}
}
