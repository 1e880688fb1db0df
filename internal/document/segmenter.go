package document

import (
	"strings"
)

// DefaultChunkSize 默认分块字符数
const DefaultChunkSize = 500

// Chunk 文档分块
type Chunk struct {
	Index         int    // 在保留下来的分块中的序号
	Text          string // 去除首尾空白后的文本
	StartOffset   int    // 窗口在全文中的起始字符偏移
	EstimatedPage int    // 按偏移比例估算的页码
}

// Segment 将全文切分为互不重叠的定长窗口
// 每个窗口去除首尾空白，空窗口被丢弃，保留下来的分块沿用原始偏移计算页码
// fullTextLength为0时返回ErrEmptyDocument
func Segment(fullText string, chunkSize, totalPages, fullTextLength int) ([]Chunk, error) {
	if fullTextLength <= 0 {
		return nil, ErrEmptyDocument
	}
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if totalPages < 1 {
		totalPages = 1
	}

	runes := []rune(fullText)
	chunks := make([]Chunk, 0, (len(runes)+chunkSize-1)/chunkSize)
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		text := strings.TrimSpace(string(runes[start:end]))
		if text == "" {
			continue
		}

		chunks = append(chunks, Chunk{
			Index:         len(chunks),
			Text:          text,
			StartOffset:   start,
			EstimatedPage: EstimatePage(start, fullTextLength, totalPages),
		})
	}
	return chunks, nil
}

// SegmentDocument 使用文档自身的页数和长度进行切分
func SegmentDocument(doc *Document, chunkSize int) ([]Chunk, error) {
	if doc == nil {
		return nil, ErrEmptyDocument
	}
	return Segment(doc.FullText, chunkSize, doc.PageCount(), doc.TextLength())
}

// EstimatePage 按偏移占全文的比例估算页码，结果限制在[1, totalPages]
func EstimatePage(offset, textLength, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if textLength <= 0 || offset <= 0 {
		return 1
	}

	page := int(int64(offset)*int64(totalPages)/int64(textLength)) + 1
	if page > totalPages {
		page = totalPages
	}
	return page
}
