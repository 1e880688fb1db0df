package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fyerfyer/resume-analyzer/api/middleware"
	"github.com/fyerfyer/resume-analyzer/internal/services"
)

// ToAppError 将服务层错误转换为带HTTP状态码的应用错误
func ToAppError(err error) middleware.AppError {
	var appErr middleware.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch services.ErrorKind(err) {
	case services.KindEmptyDocument:
		return middleware.NewEmptyDocumentError("Document contains no extractable text", err.Error())
	case services.KindExtraction:
		return middleware.NewExtractionError("Failed to extract document text", err.Error())
	case services.KindInvalidArgument:
		return middleware.NewValidationError("Invalid analysis parameters", err.Error())
	case services.KindEmbedding:
		return middleware.NewUpstreamError("Embedding service failed", err.Error())
	case services.KindGeneration:
		return middleware.NewUpstreamError("Generation service failed", err.Error())
	case services.KindNotFound:
		return middleware.NewNotFoundError(err.Error())
	case services.KindUnavailable:
		return middleware.NewUnavailableError("Feature not enabled", err.Error())
	}

	if isBodyTooLarge(err) {
		return middleware.NewPayloadTooLargeError("Uploaded file is too large")
	}
	return middleware.NewInternalError("Analysis failed", err.Error())
}

// isBodyTooLarge 判断是否因为超过上传限制而读取失败
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "request body too large")
}
