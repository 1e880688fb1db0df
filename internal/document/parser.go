package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Parser 文档解析器接口
// 负责把上传的文件解析为带页码的文本
type Parser interface {
	// Parse 解析文件路径指向的文档
	Parse(filePath string) (*Document, error)

	// ParseReader 从Reader解析文档，filename用于记录来源
	ParseReader(r io.Reader, filename string) (*Document, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// Page 单页文本
type Page struct {
	Number int    // 页码，从1开始
	Text   string // 页面文本
}

// Document 解析后的文档
// 创建后不再修改，只在一次分析请求内有效
type Document struct {
	FileName    string
	ContentType ContentType
	FullText    string // 所有页面文本按顺序拼接
	Pages       []Page
}

// PageCount 返回页数，至少为1
func (d *Document) PageCount() int {
	if len(d.Pages) == 0 {
		return 1
	}
	return len(d.Pages)
}

// TextLength 返回全文字符数（按rune计）
func (d *Document) TextLength() int {
	return utf8.RuneCountInString(d.FullText)
}

// NewDocument 由页面列表构建文档，全文为各页文本直接拼接
func NewDocument(filename string, contentType ContentType, pages []Page) *Document {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p.Text)
	}
	return &Document{
		FileName:    filename,
		ContentType: contentType,
		FullText:    sb.String(),
		Pages:       pages,
	}
}

// ParserFactory 根据文件扩展名创建对应的解析器
func ParserFactory(filePath string) (Parser, error) {
	switch DetectContentType(filePath) {
	case PDF:
		return NewPDFParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported document type %q", ErrExtraction, filepath.Ext(filePath))
	}
}

// DetectContentType 根据文件扩展名检测内容类型
func DetectContentType(filePath string) ContentType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// IsSupported 判断文件是否为支持的文档类型
func IsSupported(filePath string) bool {
	return DetectContentType(filePath) != Unknown
}

// ParseFile 按扩展名选择解析器解析文件
func ParseFile(filePath string) (*Document, error) {
	p, err := ParserFactory(filePath)
	if err != nil {
		return nil, err
	}
	return p.Parse(filePath)
}

// ParseReader 按文件名选择解析器解析Reader中的内容
func ParseReader(r io.Reader, filename string) (*Document, error) {
	p, err := ParserFactory(filename)
	if err != nil {
		return nil, err
	}
	return p.ParseReader(r, filename)
}

// parseFile 打开文件并交给ParseReader处理
func parseFile(p Parser, filePath string) (*Document, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.ParseReader(file, filepath.Base(filePath))
}
