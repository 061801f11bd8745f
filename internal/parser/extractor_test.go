package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExtractor(t *testing.T) *TextExtractor {
	t.Helper()
	extractor, err := NewTextExtractor(context.Background())
	require.NoError(t, err)
	return extractor
}

func TestExtractPlainText(t *testing.T) {
	extractor := newExtractor(t)

	text, err := extractor.Extract(context.Background(), []byte("张三的简历\nGo开发工程师"), "text/plain", "resume.txt")
	require.NoError(t, err)
	assert.Equal(t, "张三的简历\nGo开发工程师", text)
}

func TestExtractMimeWithCharset(t *testing.T) {
	extractor := newExtractor(t)

	text, err := extractor.Extract(context.Background(), []byte("resume"), "text/plain; charset=utf-8", "resume.txt")
	require.NoError(t, err)
	assert.Equal(t, "resume", text)
}

func TestExtractFallbackToExtension(t *testing.T) {
	extractor := newExtractor(t)

	// mime缺失时按扩展名判断
	text, err := extractor.Extract(context.Background(), []byte("markdown简历"), "", "resume.md")
	require.NoError(t, err)
	assert.Equal(t, "markdown简历", text)
}

func TestExtractUnsupportedFormat(t *testing.T) {
	extractor := newExtractor(t)

	cases := []struct {
		mime     string
		filename string
	}{
		{"application/msword", "resume.doc"},
		{"image/png", "resume.png"},
		{"", "resume"},
		{"application/octet-stream", "resume.bin"},
	}
	for _, tc := range cases {
		_, err := extractor.Extract(context.Background(), []byte{0x01, 0x02}, tc.mime, tc.filename)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, "mime=%q file=%q", tc.mime, tc.filename)
	}
}

func TestExtractInvalidUTF8(t *testing.T) {
	extractor := newExtractor(t)

	_, err := extractor.Extract(context.Background(), []byte{0xff, 0xfe, 0x00}, "text/plain", "resume.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractCorruptPDF(t *testing.T) {
	extractor := newExtractor(t)

	_, err := extractor.Extract(context.Background(), []byte("not a pdf"), "application/pdf", "resume.pdf")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat, "损坏的PDF是解析错误，不是格式不支持")
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, formatPlainText, detectFormat("text/plain", ""))
	assert.Equal(t, formatPDF, detectFormat("application/pdf", ""))
	assert.Equal(t, formatPDF, detectFormat("", "CV.PDF"))
	assert.Equal(t, formatUnknown, detectFormat("application/zip", "resume.zip"))
}
