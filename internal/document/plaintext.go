package document

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// PlainTextParser 纯文本解析器，整个文件视为一页
type PlainTextParser struct{}

// NewPlainTextParser 创建一个新的纯文本解析器
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse 解析纯文本文件
func (p *PlainTextParser) Parse(filePath string) (*Document, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader读取纯文本
func (p *PlainTextParser) ParseReader(r io.Reader, filename string) (*Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read text content: %w", err)
	}
	if !utf8.Valid(content) {
		return nil, extractionError(filename, fmt.Errorf("content is not valid utf-8"))
	}

	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	return NewDocument(filename, PlainText, []Page{{Number: 1, Text: text}}), nil
}
