package document

import (
	"fmt"
	stdhtml "html"
	"io"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser Markdown文档解析器，渲染为HTML后去掉标签，整个文件视为一页
type MarkdownParser struct{}

// NewMarkdownParser 创建新的Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件
func (p *MarkdownParser) Parse(filePath string) (*Document, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析Markdown内容
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) (*Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown content: %w", err)
	}

	mdParser := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	htmlContent := markdown.Render(mdParser.Parse(content), renderer)

	text := extractTextFromHTML(string(htmlContent))
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	return NewDocument(filename, Markdown, []Page{{Number: 1, Text: text}}), nil
}

var (
	blockTagPattern = regexp.MustCompile(`(?i)</?(p|h[1-6]|ul|ol|li|pre|blockquote|tr|table|hr|br)[^>]*>`)
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
)

// extractTextFromHTML 从渲染结果中提取纯文本
// 块级标签转换为换行，其余标签直接去掉
func extractTextFromHTML(content string) string {
	content = blockTagPattern.ReplaceAllString(content, "\n")
	content = tagPattern.ReplaceAllString(content, "")
	content = stdhtml.UnescapeString(content)
	return normalizeWhitespace(content)
}

// normalizeWhitespace 行内空白压缩为单个空格，连续空行最多保留一个
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
