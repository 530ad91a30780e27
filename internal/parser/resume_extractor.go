package parser

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	applogger "recruit-dashboard/internal/logger"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog"
)

// SupportedResumeExtensions 可以提取文本的简历格式
var SupportedResumeExtensions = []string{".txt", ".md", ".pdf", ".docx"}

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>`)
	docxBreak        = regexp.MustCompile(`<w:(br|cr)\s*/>`)
	xmlTag           = regexp.MustCompile(`<[^>]+>`)
	blankLines       = regexp.MustCompile(`\n{3,}`)
)

// ResumeExtractor 按扩展名从上传文件中提取纯文本
type ResumeExtractor struct {
	pdfParser *pdf.PDFParser
	timeout   time.Duration
	log       zerolog.Logger
}

// ResumeExtractorOption 提取器配置选项
type ResumeExtractorOption func(*ResumeExtractor)

// WithExtractTimeout 单个文件的解析超时
func WithExtractTimeout(d time.Duration) ResumeExtractorOption {
	return func(e *ResumeExtractor) {
		e.timeout = d
	}
}

// NewResumeExtractor 初始化提取器，PDF 不按页分割，整份文档作为一段文本
func NewResumeExtractor(ctx context.Context, options ...ResumeExtractorOption) (*ResumeExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}

	e := &ResumeExtractor{
		pdfParser: p,
		timeout:   30 * time.Second,
		log:       applogger.Component("resume_extractor"),
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// Supports 判断扩展名是否受支持，大小写不敏感
func (e *ResumeExtractor) Supports(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, s := range SupportedResumeExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Extract 提取文本。纯文本格式原样返回，PDF 与 DOCX 交给对应解析器。
func (e *ResumeExtractor) Extract(ctx context.Context, fileName string, data []byte) (string, error) {
	start := time.Now()
	ext := strings.ToLower(filepath.Ext(fileName))

	var (
		text string
		err  error
	)
	switch ext {
	case ".txt", ".md":
		text = string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	case ".pdf":
		text, err = e.extractPDF(ctx, fileName, data)
	case ".docx":
		text, err = extractDocx(data)
	default:
		return "", fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		e.log.Warn().Err(err).Str("file", fileName).Dur("elapsed", time.Since(start)).Msg("简历文本提取失败")
		return "", err
	}

	e.log.Debug().
		Str("file", fileName).
		Int("chars", len([]rune(text))).
		Dur("elapsed", time.Since(start)).
		Msg("简历文本提取完成")
	return text, nil
}

func (e *ResumeExtractor) extractPDF(ctx context.Context, fileName string, data []byte) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	docs, err := e.pdfParser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(fileName),
		einoParser.WithExtraMeta(map[string]any{"source_file_name": fileName}),
	)
	if err != nil {
		return "", fmt.Errorf("eino PDF parser failed for %s: %w", fileName, err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("eino PDF parser returned no documents for %s", fileName)
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}

// extractDocx 读取 word/document.xml，段落换行后去掉所有标签
func extractDocx(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	return docxXMLToText(doc.Editable().GetContent()), nil
}

func docxXMLToText(content string) string {
	content = docxParagraphEnd.ReplaceAllString(content, "\n")
	content = docxBreak.ReplaceAllString(content, "\n")
	content = xmlTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = blankLines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
