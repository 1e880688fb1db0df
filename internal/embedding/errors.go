package embedding

import (
	"errors"
	"fmt"
)

// EmbeddingError 嵌入服务错误类型
// 网络失败、限流、响应格式错误都以该类型返回给调用方
type EmbeddingError struct {
	Code    int    // 错误码
	Message string // 错误消息
	Err     error  // 底层错误，可能为nil
}

// Error 实现error接口
func (e EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error (code=%d): %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e EmbeddingError) Unwrap() error {
	return e.Err
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey     = 1001 // 无效的API密钥
	ErrCodeInvalidRequest    = 1002 // 无效的请求
	ErrCodeNetworkError      = 1003 // 网络连接错误
	ErrCodeRateLimited       = 1004 // 请求频率超限
	ErrCodeServerError       = 1005 // 服务器错误
	ErrCodeTimeout           = 1006 // 请求超时
	ErrCodeEmptyInput        = 1007 // 输入为空
	ErrCodeMalformedResponse = 1008 // 响应缺少向量或格式不正确
)

// 错误消息常量
const (
	ErrMsgInvalidAPIKey     = "invalid API key"
	ErrMsgInvalidRequest    = "invalid request parameters"
	ErrMsgRateLimited       = "too many requests, rate limit exceeded"
	ErrMsgServerError       = "server error occurred"
	ErrMsgTimeout           = "request timed out"
	ErrMsgEmptyInput        = "input text cannot be empty"
	ErrMsgNetworkError      = "network connection error"
	ErrMsgMalformedResponse = "malformed embedding response"
)

// NewEmbeddingError 创建新的嵌入错误
func NewEmbeddingError(code int, message string) EmbeddingError {
	return EmbeddingError{
		Code:    code,
		Message: message,
	}
}

// WrapError 包装底层错误
func WrapError(err error, code int, message string) EmbeddingError {
	var embErr EmbeddingError
	if errors.As(err, &embErr) {
		return embErr
	}
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	return EmbeddingError{Code: code, Message: message, Err: err}
}

// AsEmbeddingError 判断err链中是否包含嵌入错误
func AsEmbeddingError(err error) (EmbeddingError, bool) {
	var embErr EmbeddingError
	ok := errors.As(err, &embErr)
	return embErr, ok
}
