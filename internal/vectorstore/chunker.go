package vectorstore

import "strings"

const (
	// ChunkWindow 分块窗口大小(字符)
	ChunkWindow = 1000
	// ChunkOverlap 相邻分块的重叠(字符)
	ChunkOverlap = 200
	// ChunkStride 分块步长
	ChunkStride = ChunkWindow - ChunkOverlap
)

// ChunkText 按固定窗口和重叠切分文本。
// 空白文本返回零个分块；末尾不足一个窗口的剩余文本并入最后一个分块的截取逻辑，
// 每个分块与前一个分块重叠 ChunkOverlap 个字符。
func ChunkText(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	if len(runes) <= ChunkWindow {
		return []string{string(runes)}
	}

	var chunks []string
	for start := 0; start < len(runes); start += ChunkStride {
		end := start + ChunkWindow
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
