package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/fyerfyer/resume-analyzer/api/model"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 定义应用中的错误类型常量
const (
	ErrorTypeValidation      = "VALIDATION_ERROR"        // 输入验证错误
	ErrorTypeNotFound        = "NOT_FOUND_ERROR"         // 资源不存在错误
	ErrorTypeInternal        = "INTERNAL_ERROR"          // 内部服务器错误
	ErrorTypeEmptyDocument   = "EMPTY_DOCUMENT_ERROR"    // 文档无可用文本
	ErrorTypeExtraction      = "EXTRACTION_ERROR"        // 文档解析错误
	ErrorTypeUpstream        = "UPSTREAM_ERROR"          // 嵌入或生成服务错误
	ErrorTypeUnavailable     = "UNAVAILABLE_ERROR"       // 功能未启用
	ErrorTypePayloadTooLarge = "PAYLOAD_TOO_LARGE_ERROR" // 上传文件过大
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // HTTP状态码
}

// Error 实现error接口的方法
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func newAppError(errType string, code int, message string, details []string) AppError {
	return AppError{
		Type:    errType,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    code,
	}
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message, details)
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, message, nil)
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message, details)
}

// NewEmptyDocumentError 文档中没有可用文本
func NewEmptyDocumentError(message string, details ...string) AppError {
	return newAppError(ErrorTypeEmptyDocument, http.StatusUnprocessableEntity, message, details)
}

// NewExtractionError 文档无法解析或格式不支持
func NewExtractionError(message string, details ...string) AppError {
	return newAppError(ErrorTypeExtraction, http.StatusBadRequest, message, details)
}

// NewUpstreamError 嵌入或生成服务调用失败
func NewUpstreamError(message string, details ...string) AppError {
	return newAppError(ErrorTypeUpstream, http.StatusBadGateway, message, details)
}

// NewUnavailableError 依赖的功能未启用
func NewUnavailableError(message string, details ...string) AppError {
	return newAppError(ErrorTypeUnavailable, http.StatusServiceUnavailable, message, details)
}

// NewPayloadTooLargeError 上传内容超过限制
func NewPayloadTooLargeError(message string, details ...string) AppError {
	return newAppError(ErrorTypePayloadTooLarge, http.StatusRequestEntityTooLarge, message, details)
}

// ErrorHandler 统一错误处理中间件
// 捕获panic，并把处理器通过HandleError记录的错误渲染为统一响应
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(logrus.Fields{
					FieldError:   err,
					"stack":      string(debug.Stack()),
					FieldPath:    c.Request.URL.Path,
					FieldTraceID: GetTraceID(c),
				}).Error("Panic recovered in API request")

				errorResponse := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)
				if gin.Mode() == gin.DebugMode {
					errorResponse.Message = fmt.Sprintf("Panic: %v", err)
				}
				errorResponse.TraceID = GetTraceID(c)

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		traceID := GetTraceID(c)

		var appErr AppError
		var appErrPtr *AppError
		switch {
		case errors.As(err, &appErr):
		case errors.As(err, &appErrPtr):
			appErr = *appErrPtr
		default:
			appErr = NewInternalError("Internal server error")
			if gin.Mode() == gin.DebugMode {
				appErr.Message = err.Error()
			}
		}

		entry := log.WithFields(logrus.Fields{
			"error_type":  appErr.Type,
			FieldTraceID: traceID,
			FieldPath:    c.Request.URL.Path,
			FieldStatus:  appErr.Code,
		})
		if appErr.Details != "" {
			entry = entry.WithField("details", appErr.Details)
		}
		if appErr.Code >= http.StatusInternalServerError {
			entry.Error(appErr.Message)
		} else {
			entry.Warn(appErr.Message)
		}

		message := appErr.Message
		if appErr.Details != "" {
			message = appErr.Message + ": " + appErr.Details
		}
		errResp := model.NewErrorResponse(appErr.Code, message)
		errResp.TraceID = traceID

		c.AbortWithStatusJSON(appErr.Code, errResp)
	}
}

// HandleError 在处理器中使用的错误处理辅助函数
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}
