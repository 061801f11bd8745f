package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"resume-agent-go/internal/logger"
)

var parserTracer = otel.Tracer("resume-agent-go/parser")

// ErrUnsupportedFormat 不认识的文件格式。提取器拒绝而不是猜测，
// 避免把二进制噪声当成简历文本送进流水线。
var ErrUnsupportedFormat = errors.New("不支持的文件格式")

const pdfParseTimeout = 30 * time.Second

// TextExtractor 从上传的文件字节中提取纯文本。
// 纯文本直接透传，PDF走eino解析器，其余格式一律拒绝。
type TextExtractor struct {
	pdfParser *pdf.PDFParser
}

// NewTextExtractor 创建文本提取器。
// PDF解析器配置为不按页分割，整份文档作为连续文本返回。
func NewTextExtractor(ctx context.Context) (*TextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("创建PDF解析器失败: %w", err)
	}
	return &TextExtractor{pdfParser: p}, nil
}

// Extract 提取文件的纯文本内容。格式由mimeType判断，缺失时回退到扩展名；
// 两者都判断不出时返回 ErrUnsupportedFormat。
func (e *TextExtractor) Extract(ctx context.Context, data []byte, mimeType, filename string) (string, error) {
	ctx, span := parserTracer.Start(ctx, "TextExtractor.Extract")
	defer span.End()

	span.SetAttributes(
		attribute.String("file.name", filename),
		attribute.String("file.mime_type", mimeType),
		attribute.Int("file.size", len(data)),
	)

	switch detectFormat(mimeType, filename) {
	case formatPlainText:
		if !utf8.Valid(data) {
			err := fmt.Errorf("%w: 文本文件不是有效的UTF-8", ErrUnsupportedFormat)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
		span.SetStatus(codes.Ok, "")
		return string(data), nil

	case formatPDF:
		text, err := e.extractPDF(ctx, data, filename)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
		span.SetAttributes(attribute.Int("text.length", len(text)))
		span.SetStatus(codes.Ok, "")
		return text, nil

	default:
		err := fmt.Errorf("%w: mime=%q file=%q", ErrUnsupportedFormat, mimeType, filename)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
}

type fileFormat int

const (
	formatUnknown fileFormat = iota
	formatPlainText
	formatPDF
)

func detectFormat(mimeType, filename string) fileFormat {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}

	switch mime {
	case "text/plain", "text/markdown":
		return formatPlainText
	case "application/pdf":
		return formatPDF
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return formatPlainText
	case ".pdf":
		return formatPDF
	}
	return formatUnknown
}

func (e *TextExtractor) extractPDF(ctx context.Context, data []byte, filename string) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, pdfParseTimeout)
	defer cancel()

	docs, err := e.pdfParser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(filename),
	)
	if err != nil {
		return "", fmt.Errorf("PDF解析失败(%s): %w", filename, err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("PDF解析无结果(%s)", filename)
	}

	var sb strings.Builder
	for i, doc := range docs {
		sb.WriteString(doc.Content)
		if i < len(docs)-1 {
			sb.WriteString("\n\n")
		}
	}

	logger.Ctx(ctx).Debug().
		Str("filename", filename).
		Int("chars", sb.Len()).
		Dur("duration", time.Since(start)).
		Msg("PDF文本提取完成")
	return sb.String(), nil
}
