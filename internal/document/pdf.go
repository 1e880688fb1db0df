package document

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFParser PDF文档解析器
// 先用pdfcpu校验文件结构，再逐页提取纯文本
type PDFParser struct {
	conf *model.Configuration
}

// NewPDFParser 创建一个新的PDF解析器
func NewPDFParser() Parser {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFParser{conf: conf}
}

// Parse 解析PDF文件
func (p *PDFParser) Parse(filePath string) (*Document, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析PDF
func (p *PDFParser) ParseReader(r io.Reader, filename string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf content: %w", err)
	}
	if len(data) == 0 {
		return nil, extractionError(filename, fmt.Errorf("empty file"))
	}

	// 结构校验，损坏或需要密码的文件在这里失败
	if err := api.Validate(bytes.NewReader(data), p.conf); err != nil {
		return nil, extractionError(filename, err)
	}

	pages, err := extractPages(data)
	if err != nil {
		return nil, extractionError(filename, err)
	}

	doc := NewDocument(filename, PDF, pages)
	if strings.TrimSpace(doc.FullText) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	return doc, nil
}

// extractPages 逐页提取文本，页码从1开始
func extractPages(data []byte) (pages []Page, err error) {
	// ledongthuc/pdf 遇到畸形对象时会panic
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	pages = make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}
