package document

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDocument 文档中没有可提取的文本
	ErrEmptyDocument = errors.New("document has no extractable text")

	// ErrExtraction 文档损坏、加密或格式不受支持
	ErrExtraction = errors.New("document extraction failed")

	// ErrInvalidChunkSize 分块大小必须为正数
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)

// extractionError 包装底层错误为提取错误
func extractionError(filename string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrExtraction, filename)
	}
	return fmt.Errorf("%w: %s: %v", ErrExtraction, filename, err)
}
